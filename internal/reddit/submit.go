package reddit

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"srtools/internal/models"
)

// postResponse is the api_type=json envelope of POST endpoints.
type postResponse struct {
	JSON struct {
		Errors    [][]any `json:"errors"`
		Ratelimit float64 `json:"ratelimit"`
		Data      struct {
			URL  string `json:"url"`
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	} `json:"json"`
}

var rateLimitWait = regexp.MustCompile(`(?i)(\d+) (millisecond|second|minute)s?`)

// firstAPIError converts a json.errors array into an error. A RATELIMIT
// entry anywhere in the array wins and becomes *RateLimitError using hint
// seconds, or the delay quoted in its message when the hint is absent.
// Otherwise the first entry becomes *APIError.
func firstAPIError(errs [][]any, hint float64) error {
	if len(errs) == 0 {
		return nil
	}

	for _, entry := range errs {
		fields := errorFields(entry)
		if fields[0] != "RATELIMIT" {
			continue
		}

		wait := time.Duration(hint * float64(time.Second))
		if wait <= 0 {
			wait = parseWait(fields[1])
		}

		return &RateLimitError{Message: fields[1], SleepTime: wait}
	}

	fields := errorFields(errs[0])

	return &APIError{Code: fields[0], Message: fields[1], Field: fields[2]}
}

// errorFields returns the code, message and field of one json.errors entry.
func errorFields(entry []any) [3]string {
	var fields [3]string

	for i := 0; i < len(entry) && i < len(fields); i++ {
		if s, ok := entry[i].(string); ok {
			fields[i] = s
		}
	}

	return fields
}

// parseWait reads "try again in 6 minutes" style messages.
func parseWait(msg string) time.Duration {
	m := rateLimitWait.FindStringSubmatch(msg)
	if m == nil {
		return defaultRateLimitSleep
	}

	n, _ := strconv.Atoi(m[1])

	switch m[2] {
	case "millisecond":
		return time.Duration(n) * time.Millisecond
	case "second":
		return time.Duration(n) * time.Second
	default:
		return time.Duration(n) * time.Minute
	}
}

// Submit creates a self post in subreddit. A RATELIMIT response is returned
// as *RateLimitError without sleeping so the caller controls back-off.
func (c *Client) Submit(ctx context.Context, subreddit, title, body string) (models.Post, error) {
	form := url.Values{
		"sr":          {subreddit},
		"kind":        {"self"},
		"title":       {title},
		"text":        {body},
		"resubmit":    {"true"},
		"sendreplies": {"false"},
	}

	var resp postResponse
	if err := c.post(ctx, "/api/submit", form, &resp); err != nil {
		return models.Post{}, err
	}

	if err := firstAPIError(resp.JSON.Errors, resp.JSON.Ratelimit); err != nil {
		return models.Post{}, err
	}

	if resp.JSON.Data.ID == "" && resp.JSON.Data.URL == "" {
		return models.Post{}, fmt.Errorf("%w: submit returned no post", ErrUnexpectedShape)
	}

	post := models.Post{
		ID:   resp.JSON.Data.ID,
		Name: resp.JSON.Data.Name,
		URL:  resp.JSON.Data.URL,
	}

	if u, err := url.Parse(post.URL); err == nil {
		post.Permalink = u.Path
	}

	c.logger.Info("submitted post", "subreddit", subreddit, "url", post.URL)

	return post, nil
}

// SendMessage sends a private message to user.
func (c *Client) SendMessage(ctx context.Context, to, subject, text string) error {
	form := url.Values{
		"to":      {to},
		"subject": {subject},
		"text":    {text},
	}

	return c.postChecked(ctx, "/api/compose", form)
}
