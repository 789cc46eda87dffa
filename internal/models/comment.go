package models

import (
	"strings"
	"time"
)

// Comment is a single comment of a submission's comment tree.
type Comment struct {
	Created       time.Time   `json:"created"`
	Submission    *Submission `json:"-"` // back reference, not owned
	ID            string      `json:"id"`
	Author        string      `json:"author,omitempty"`
	Body          string      `json:"body"`
	Subreddit     string      `json:"subreddit"`
	LinkID        string      `json:"link_id"`
	ParentID      string      `json:"parent_id"`
	Distinguished string      `json:"distinguished,omitempty"`
	Score         int         `json:"score"`
}

// IsDistinguished reports whether the comment carries a moderator/admin marker.
func (c Comment) IsDistinguished() bool {
	return c.Distinguished != ""
}

// AuthorName implements the authored-item contract used for grouping.
func (c Comment) AuthorName() string {
	return c.Author
}

// SubmissionID returns the id of the owning submission without its type prefix.
func (c Comment) SubmissionID() string {
	if c.Submission != nil {
		return c.Submission.ID
	}

	return strings.TrimPrefix(c.LinkID, "t3_")
}

// MoreComments is a "load more" placeholder left in a comment tree.
type MoreComments struct {
	ParentID string
	Children []string
	Count    int
}

// CommentTree is a submission with its top-level comment forest.
type CommentTree struct {
	Submission Submission
	Comments   []*CommentNode
	More       []MoreComments
}

// CommentNode is a comment and its direct replies.
type CommentNode struct {
	Comment Comment
	Replies []*CommentNode
}

// Flatten returns every comment of the tree in depth-first order.
func (t *CommentTree) Flatten() []Comment {
	var out []Comment

	var walk func(nodes []*CommentNode)

	walk = func(nodes []*CommentNode) {
		for _, n := range nodes {
			out = append(out, n.Comment)
			walk(n.Replies)
		}
	}

	walk(t.Comments)

	return out
}
