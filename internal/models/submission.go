// Package models holds the data-transfer types shared by the tools.
//
// Values are copied out of API responses at fetch time; nothing here keeps a
// handle on the remote object graph.
package models

import "time"

// Submission is a link or self post in a subreddit.
type Submission struct {
	Created       time.Time `json:"created"`
	ID            string    `json:"id"`
	Author        string    `json:"author,omitempty"` // empty for deleted accounts
	Title         string    `json:"title"`
	Permalink     string    `json:"permalink"`
	URL           string    `json:"url"`
	Subreddit     string    `json:"subreddit"`
	Distinguished string    `json:"distinguished,omitempty"`
	Selftext      string    `json:"selftext,omitempty"`
	Score         int       `json:"score"`
	NumComments   int       `json:"num_comments"`
	IsSelf        bool      `json:"is_self"`
}

// Fullname returns the type-prefixed identifier used by the API ("t3_<id>").
func (s Submission) Fullname() string {
	return "t3_" + s.ID
}

// IsDistinguished reports whether the post carries a moderator/admin marker.
func (s Submission) IsDistinguished() bool {
	return s.Distinguished != ""
}

// AuthorName implements the authored-item contract used for grouping.
func (s Submission) AuthorName() string {
	return s.Author
}

// Post is the handle returned after a successful submission.
type Post struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	Permalink string `json:"permalink,omitempty"`
}
