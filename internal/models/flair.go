package models

// Flair is a user's flair assignment in a subreddit.
type Flair struct {
	User     string `json:"user"`
	Text     string `json:"flair_text"`
	CSSClass string `json:"flair_css_class"`
}

// IsEmpty reports whether neither text nor css class is set.
func (f Flair) IsEmpty() bool {
	return f.Text == "" && f.CSSClass == ""
}

// FlairTemplate is a user flair template offered by a subreddit.
type FlairTemplate struct {
	Text     string `json:"text"`
	CSSClass string `json:"css_class"`
	Editable bool   `json:"text_editable"`
}

// User is an account listed in a subreddit relationship (banned, contributor, moderator).
type User struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

func (u User) String() string {
	return u.Name
}
