package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"srtools/internal/models"
)

// TimeFilters are the windows accepted by top listings.
var TimeFilters = []string{"day", "week", "month", "year", "all"}

// ErrInvalidTimeFilter is returned for a top window outside TimeFilters.
var ErrInvalidTimeFilter = errors.New("invalid time filter")

// IsTimeFilter reports whether s is one of TimeFilters.
func IsTimeFilter(s string) bool {
	for _, f := range TimeFilters {
		if s == f {
			return true
		}
	}

	return false
}

// ListingOptions bounds a paginated listing.
type ListingOptions struct {
	// After is the fullname to start after.
	After string
	// Limit is the maximum number of items yielded; zero means no limit.
	Limit int
	// PageSize is the number of items requested per page, 100 by default.
	PageSize int
}

func (o ListingOptions) pageSize() int {
	if o.PageSize <= 0 || o.PageSize > 100 {
		return 100
	}

	return o.PageSize
}

// paginate walks a listing endpoint page by page following the "after"
// cursor. A rate-limited page is refetched after the signalled delay.
func paginate[T any](ctx context.Context, c *Client, path string, params url.Values, opts ListingOptions,
	decode func(json.RawMessage) (T, bool, error),
) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T

		after := opts.After
		count := 0

		for {
			q := url.Values{}
			for k, v := range params {
				q[k] = v
			}

			q.Set("limit", strconv.Itoa(opts.pageSize()))
			q.Set("count", strconv.Itoa(count))

			if after != "" {
				q.Set("after", after)
			}

			var page listing

			err := c.withBackoff(ctx, func(ctx context.Context) error {
				return c.get(ctx, path, q, &page)
			})
			if err != nil {
				yield(zero, err)
				return
			}

			for _, raw := range page.Data.Children {
				item, ok, err := decode(raw)
				if err != nil {
					yield(zero, err)
					return
				}

				if !ok {
					continue
				}

				if !yield(item, nil) {
					return
				}

				count++
				if opts.Limit > 0 && count >= opts.Limit {
					return
				}
			}

			if page.Data.After == "" || len(page.Data.Children) == 0 {
				return
			}

			after = page.Data.After
		}
	}
}

// New iterates the newest submissions of subreddit, newest first.
func (c *Client) New(ctx context.Context, subreddit string, opts ListingOptions) iter.Seq2[models.Submission, error] {
	return paginate(ctx, c, "/r/"+subreddit+"/new", nil, opts, decodeSubmission)
}

// Top iterates the top submissions of subreddit within timeFilter.
func (c *Client) Top(ctx context.Context, subreddit, timeFilter string, opts ListingOptions) iter.Seq2[models.Submission, error] {
	if !IsTimeFilter(timeFilter) {
		return func(yield func(models.Submission, error) bool) {
			yield(models.Submission{}, fmt.Errorf("%w: %q", ErrInvalidTimeFilter, timeFilter))
		}
	}

	return paginate(ctx, c, "/r/"+subreddit+"/top", url.Values{"t": {timeFilter}}, opts, decodeSubmission)
}

// RecentComments iterates the newest comments of subreddit (or "a+b" multis), newest first.
func (c *Client) RecentComments(ctx context.Context, subreddit string, opts ListingOptions) iter.Seq2[models.Comment, error] {
	return paginate(ctx, c, "/r/"+subreddit+"/comments", nil, opts, decodeComment)
}

// Submission fetches a single submission by id.
func (c *Client) Submission(ctx context.Context, id string) (models.Submission, error) {
	var page listing

	err := c.withBackoff(ctx, func(ctx context.Context) error {
		return c.get(ctx, "/api/info", url.Values{"id": {KindLink + "_" + id}}, &page)
	})
	if err != nil {
		return models.Submission{}, err
	}

	for _, raw := range page.Data.Children {
		sub, ok, err := decodeSubmission(raw)
		if err != nil {
			return models.Submission{}, err
		}

		if ok {
			return sub, nil
		}
	}

	return models.Submission{}, fmt.Errorf("%w: submission %s not found", ErrUnexpectedShape, id)
}

var permalinkID = regexp.MustCompile(`/comments/([a-z0-9]+)`)

// SubmissionIDFromURL extracts the submission id from a permalink or full url.
func SubmissionIDFromURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPermalink, err)
	}

	if m := permalinkID.FindStringSubmatch(u.Path); m != nil {
		return m[1], nil
	}

	// short links: https://redd.it/<id>
	if strings.HasSuffix(u.Host, "redd.it") {
		if id := strings.Trim(u.Path, "/"); id != "" {
			return id, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrInvalidPermalink, raw)
}
