package reddit

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"strconv"

	"srtools/internal/models"
)

// Relationship categories of a subreddit.
const (
	Banned      = "banned"
	Contributor = "contributor"
	Moderator   = "moderator"
)

// ErrUnknownRelationship is returned for a category outside Banned, Contributor and Moderator.
var ErrUnknownRelationship = errors.New("unknown relationship")

// relationships maps a category to its listing path and the friend type used to add to it.
var relationships = map[string]struct {
	about  string
	friend string
}{
	Banned:      {about: "banned", friend: "banned"},
	Contributor: {about: "contributors", friend: "contributor"},
	Moderator:   {about: "moderators", friend: "moderator_invite"},
}

type flairListResponse struct {
	Users []models.Flair `json:"users"`
	Next  string         `json:"next"`
}

// Me returns the name of the authenticated account.
func (c *Client) Me(ctx context.Context) (string, error) {
	var me struct {
		Name string `json:"name"`
	}

	err := c.withBackoff(ctx, func(ctx context.Context) error {
		return c.get(ctx, "/api/v1/me", nil, &me)
	})
	if err != nil {
		return "", err
	}

	if me.Name == "" {
		return "", fmt.Errorf("%w: identity has no name", ErrUnexpectedShape)
	}

	return me.Name, nil
}

// FlairList iterates every user flair assignment of subreddit.
func (c *Client) FlairList(ctx context.Context, subreddit string) iter.Seq2[models.Flair, error] {
	return func(yield func(models.Flair, error) bool) {
		next := ""

		for {
			params := url.Values{"limit": {strconv.Itoa(1000)}}
			if next != "" {
				params.Set("after", next)
			}

			var page flairListResponse

			err := c.withBackoff(ctx, func(ctx context.Context) error {
				return c.get(ctx, "/r/"+subreddit+"/api/flairlist", params, &page)
			})
			if err != nil {
				yield(models.Flair{}, err)
				return
			}

			for _, f := range page.Users {
				if !yield(f, nil) {
					return
				}
			}

			if page.Next == "" || len(page.Users) == 0 {
				return
			}

			next = page.Next
		}
	}
}

// ClearFlairTemplates removes every user flair template of subreddit.
func (c *Client) ClearFlairTemplates(ctx context.Context, subreddit string) error {
	return c.postChecked(ctx, "/r/"+subreddit+"/api/clearflairtemplates", url.Values{
		"flair_type": {"USER_FLAIR"},
	})
}

// AddFlairTemplate adds a user flair template to subreddit.
func (c *Client) AddFlairTemplate(ctx context.Context, subreddit string, t models.FlairTemplate) error {
	return c.postChecked(ctx, "/r/"+subreddit+"/api/flairtemplate", url.Values{
		"flair_type":    {"USER_FLAIR"},
		"text":          {t.Text},
		"css_class":     {t.CSSClass},
		"text_editable": {strconv.FormatBool(t.Editable)},
	})
}

// DeleteFlair removes the flair of user in subreddit.
func (c *Client) DeleteFlair(ctx context.Context, subreddit, user string) error {
	return c.postChecked(ctx, "/r/"+subreddit+"/api/deleteflair", url.Values{
		"name": {user},
	})
}

// Relationship iterates the users of subreddit in category.
func (c *Client) Relationship(ctx context.Context, subreddit, category string) iter.Seq2[models.User, error] {
	rel, ok := relationships[category]
	if !ok {
		return func(yield func(models.User, error) bool) {
			yield(models.User{}, fmt.Errorf("%w: %q", ErrUnknownRelationship, category))
		}
	}

	return paginate(ctx, c, "/r/"+subreddit+"/about/"+rel.about, nil, ListingOptions{}, decodeUser)
}

// AddRelationship adds user to category in subreddit. Moderators receive an invite.
func (c *Client) AddRelationship(ctx context.Context, subreddit, category, user string) error {
	rel, ok := relationships[category]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRelationship, category)
	}

	return c.postChecked(ctx, "/r/"+subreddit+"/api/friend", url.Values{
		"name": {user},
		"type": {rel.friend},
	})
}

// postChecked posts form and converts json.errors, backing off on rate limits.
func (c *Client) postChecked(ctx context.Context, path string, form url.Values) error {
	return c.withBackoff(ctx, func(ctx context.Context) error {
		var resp postResponse
		if err := c.post(ctx, path, form, &resp); err != nil {
			return err
		}

		return firstAPIError(resp.JSON.Errors, resp.JSON.Ratelimit)
	})
}
