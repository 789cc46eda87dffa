package reddit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"srtools/internal/models"
)

// Thing kinds.
const (
	KindComment = "t1"
	KindAccount = "t2"
	KindLink    = "t3"
	KindMessage = "t4"
	KindMore    = "more"
	KindListing = "Listing"
)

// deletedAuthor is what the API reports for removed accounts.
const deletedAuthor = "[deleted]"

type thing struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

type listing struct {
	Kind string `json:"kind"`
	Data struct {
		After    string            `json:"after"`
		Before   string            `json:"before"`
		Children []json.RawMessage `json:"children"`
	} `json:"data"`
}

type linkData struct {
	Distinguished *string `json:"distinguished"`
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Author        string  `json:"author"`
	Title         string  `json:"title"`
	Permalink     string  `json:"permalink"`
	URL           string  `json:"url"`
	Subreddit     string  `json:"subreddit"`
	Selftext      string  `json:"selftext"`
	CreatedUTC    float64 `json:"created_utc"`
	Score         int     `json:"score"`
	NumComments   int     `json:"num_comments"`
	IsSelf        bool    `json:"is_self"`
}

type commentData struct {
	Distinguished *string         `json:"distinguished"`
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Author        string          `json:"author"`
	Body          string          `json:"body"`
	Subreddit     string          `json:"subreddit"`
	LinkID        string          `json:"link_id"`
	ParentID      string          `json:"parent_id"`
	Replies       json.RawMessage `json:"replies"`
	CreatedUTC    float64         `json:"created_utc"`
	Score         int             `json:"score"`
}

type moreData struct {
	ID       string   `json:"id"`
	ParentID string   `json:"parent_id"`
	Children []string `json:"children"`
	Count    int      `json:"count"`
}

func unixTime(sec float64) time.Time {
	whole, frac := math.Modf(sec)

	return time.Unix(int64(whole), int64(frac*1e9)).UTC()
}

func author(name string) string {
	if name == deletedAuthor {
		return ""
	}

	return name
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}

func (d *linkData) toModel() models.Submission {
	return models.Submission{
		ID:            d.ID,
		Author:        author(d.Author),
		Created:       unixTime(d.CreatedUTC),
		Score:         d.Score,
		NumComments:   d.NumComments,
		Permalink:     d.Permalink,
		URL:           d.URL,
		Title:         d.Title,
		Subreddit:     d.Subreddit,
		Distinguished: deref(d.Distinguished),
		Selftext:      d.Selftext,
		IsSelf:        d.IsSelf,
	}
}

func (d *commentData) toModel() models.Comment {
	return models.Comment{
		ID:            d.ID,
		Author:        author(d.Author),
		Created:       unixTime(d.CreatedUTC),
		Score:         d.Score,
		Body:          d.Body,
		Subreddit:     d.Subreddit,
		LinkID:        d.LinkID,
		ParentID:      d.ParentID,
		Distinguished: deref(d.Distinguished),
	}
}

// decodeSubmission converts a listing child into a Submission, skipping other kinds.
func decodeSubmission(raw json.RawMessage) (models.Submission, bool, error) {
	var th thing
	if err := json.Unmarshal(raw, &th); err != nil {
		return models.Submission{}, false, fmt.Errorf("failed to parse thing: %w", err)
	}

	if th.Kind != KindLink {
		return models.Submission{}, false, nil
	}

	var d linkData
	if err := json.Unmarshal(th.Data, &d); err != nil {
		return models.Submission{}, false, fmt.Errorf("failed to parse link: %w", err)
	}

	return d.toModel(), true, nil
}

// decodeComment converts a listing child into a Comment, skipping other kinds.
func decodeComment(raw json.RawMessage) (models.Comment, bool, error) {
	var th thing
	if err := json.Unmarshal(raw, &th); err != nil {
		return models.Comment{}, false, fmt.Errorf("failed to parse thing: %w", err)
	}

	if th.Kind != KindComment {
		return models.Comment{}, false, nil
	}

	var d commentData
	if err := json.Unmarshal(th.Data, &d); err != nil {
		return models.Comment{}, false, fmt.Errorf("failed to parse comment: %w", err)
	}

	return d.toModel(), true, nil
}

// decodeUser converts a relationship listing child (not a thing) into a User.
func decodeUser(raw json.RawMessage) (models.User, bool, error) {
	var u models.User
	if err := json.Unmarshal(raw, &u); err != nil {
		return models.User{}, false, fmt.Errorf("failed to parse user: %w", err)
	}

	return u, u.Name != "", nil
}

// forest holds comment nodes decoded from a tree along with its placeholders.
type forest struct {
	nodes []*models.CommentNode
	more  []models.MoreComments
}

// decodeForest turns listing children (t1 and more) into comment nodes,
// descending into replies.
func decodeForest(children []json.RawMessage) (forest, error) {
	var f forest

	for _, raw := range children {
		var th thing
		if err := json.Unmarshal(raw, &th); err != nil {
			return f, fmt.Errorf("failed to parse thing: %w", err)
		}

		switch th.Kind {
		case KindComment:
			node, more, err := decodeNode(th.Data)
			if err != nil {
				return f, err
			}

			f.nodes = append(f.nodes, node)
			f.more = append(f.more, more...)
		case KindMore:
			var m moreData
			if err := json.Unmarshal(th.Data, &m); err != nil {
				return f, fmt.Errorf("failed to parse more: %w", err)
			}

			f.more = append(f.more, models.MoreComments{
				ParentID: m.ParentID,
				Children: m.Children,
				Count:    m.Count,
			})
		}
	}

	return f, nil
}

func decodeNode(data json.RawMessage) (*models.CommentNode, []models.MoreComments, error) {
	var d commentData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, nil, fmt.Errorf("failed to parse comment: %w", err)
	}

	node := &models.CommentNode{Comment: d.toModel()}

	// replies is "" when empty, a listing otherwise
	replies := bytes.TrimSpace(d.Replies)
	if len(replies) == 0 || replies[0] != '{' {
		return node, nil, nil
	}

	var l listing
	if err := json.Unmarshal(replies, &l); err != nil {
		return nil, nil, fmt.Errorf("failed to parse replies: %w", err)
	}

	sub, err := decodeForest(l.Data.Children)
	if err != nil {
		return nil, nil, err
	}

	node.Replies = sub.nodes

	return node, sub.more, nil
}
