package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"srtools/internal/models"
)

// maxMoreChildren is the per-request cap of /api/morechildren.
const maxMoreChildren = 100

// CommentOptions controls how a comment tree is fetched.
type CommentOptions struct {
	// Sort is the comment order requested from the API (top, new, ...).
	Sort string
	// MoreLimit is the number of "load more" placeholders to expand.
	// Zero drops every placeholder without fetching; negative expands all.
	MoreLimit int
}

type moreChildrenResponse struct {
	JSON struct {
		Errors [][]any `json:"errors"`
		Data   struct {
			Things []json.RawMessage `json:"things"`
		} `json:"data"`
	} `json:"json"`
}

// CommentTree fetches the full detail of submission id with its comment tree
// and replaces "load more" placeholders according to opts.
func (c *Client) CommentTree(ctx context.Context, id string, opts CommentOptions) (*models.CommentTree, error) {
	params := url.Values{}
	if opts.Sort != "" {
		params.Set("sort", opts.Sort)
	}

	var pages []listing

	err := c.withBackoff(ctx, func(ctx context.Context) error {
		return c.get(ctx, "/comments/"+id, params, &pages)
	})
	if err != nil {
		return nil, err
	}

	if len(pages) != 2 || len(pages[0].Data.Children) == 0 {
		return nil, fmt.Errorf("%w: comments of %s", ErrUnexpectedShape, id)
	}

	sub, ok, err := decodeSubmission(pages[0].Data.Children[0])
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, fmt.Errorf("%w: comments of %s has no link", ErrUnexpectedShape, id)
	}

	f, err := decodeForest(pages[1].Data.Children)
	if err != nil {
		return nil, err
	}

	tree := &models.CommentTree{
		Submission: sub,
		Comments:   f.nodes,
		More:       f.more,
	}

	if err := c.ReplaceMore(ctx, tree, opts); err != nil {
		return nil, err
	}

	return tree, nil
}

// ReplaceMore expands up to opts.MoreLimit placeholders of tree in place,
// attaching the fetched comments under their parents. Remaining placeholders
// are dropped.
func (c *Client) ReplaceMore(ctx context.Context, tree *models.CommentTree, opts CommentOptions) error {
	queue := tree.More
	tree.More = nil

	if opts.MoreLimit == 0 || len(queue) == 0 {
		return nil
	}

	index := make(map[string]*models.CommentNode)

	var walk func(nodes []*models.CommentNode)

	walk = func(nodes []*models.CommentNode) {
		for _, n := range nodes {
			index[KindComment+"_"+n.Comment.ID] = n
			walk(n.Replies)
		}
	}

	walk(tree.Comments)

	expanded := 0

	for len(queue) > 0 {
		if opts.MoreLimit > 0 && expanded >= opts.MoreLimit {
			break
		}

		more := queue[0]
		queue = queue[1:]

		// "continue this thread" stubs carry no children ids
		if len(more.Children) == 0 {
			continue
		}

		expanded++

		for start := 0; start < len(more.Children); start += maxMoreChildren {
			end := min(start+maxMoreChildren, len(more.Children))

			things, err := c.moreChildren(ctx, tree.Submission.Fullname(), more.Children[start:end], opts.Sort)
			if err != nil {
				return err
			}

			f, err := decodeForest(things)
			if err != nil {
				return err
			}

			for _, node := range f.nodes {
				index[KindComment+"_"+node.Comment.ID] = node

				if parent, ok := index[node.Comment.ParentID]; ok {
					parent.Replies = append(parent.Replies, node)
				} else {
					tree.Comments = append(tree.Comments, node)
				}
			}

			queue = append(queue, f.more...)
		}
	}

	return nil
}

func (c *Client) moreChildren(ctx context.Context, linkID string, children []string, sort string) ([]json.RawMessage, error) {
	params := url.Values{
		"api_type": {"json"},
		"link_id":  {linkID},
		"children": {strings.Join(children, ",")},
	}

	if sort != "" {
		params.Set("sort", sort)
	}

	var resp moreChildrenResponse

	err := c.withBackoff(ctx, func(ctx context.Context) error {
		return c.get(ctx, "/api/morechildren", params, &resp)
	})
	if err != nil {
		return nil, err
	}

	if err := firstAPIError(resp.JSON.Errors, 0); err != nil {
		return nil, err
	}

	return resp.JSON.Data.Things, nil
}
