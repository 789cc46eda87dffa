// Package mod implements the moderator utilities: relationship lists,
// flair listing and cleanup, flair template synchronisation and bulk
// messages.
package mod

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"regexp"
	"slices"
	"strings"

	"srtools/internal/logger"
	"srtools/internal/models"
	"srtools/internal/reddit"
)

// Categories are the relationship categories the utilities accept.
var Categories = []string{reddit.Banned, reddit.Contributor, reddit.Moderator}

// Utility errors.
var (
	ErrInvalidCategory = errors.New("category must be one of banned, contributor, moderator")
	ErrNoFlairField    = errors.New("at least one of text or css must be used")
	ErrInvalidSort     = errors.New("sort must be one of: alpha, size")
	ErrStaticFormat    = errors.New("static template must be \"text,css\" when syncing text and css")
	ErrAborted         = errors.New("aborted")
)

// Client is the part of the API the utilities use.
type Client interface {
	FlairList(ctx context.Context, subreddit string) iter.Seq2[models.Flair, error]
	ClearFlairTemplates(ctx context.Context, subreddit string) error
	AddFlairTemplate(ctx context.Context, subreddit string, t models.FlairTemplate) error
	DeleteFlair(ctx context.Context, subreddit, user string) error
	Relationship(ctx context.Context, subreddit, category string) iter.Seq2[models.User, error]
	AddRelationship(ctx context.Context, subreddit, category, user string) error
	SendMessage(ctx context.Context, to, subject, text string) error
}

// ValidCategory reports whether category is one of Categories.
func ValidCategory(category string) bool {
	return slices.Contains(Categories, category)
}

// FlairCache fetches the flair list of a subreddit once and returns the
// cached copy afterwards.
type FlairCache struct {
	client    Client
	logger    *logger.Logger
	subreddit string
	flair     []models.Flair
	loaded    bool
}

// NewFlairCache creates an empty cache for subreddit.
func NewFlairCache(client Client, subreddit string, log *logger.Logger) *FlairCache {
	if log == nil {
		log = logger.Discard()
	}

	return &FlairCache{client: client, subreddit: subreddit, logger: log}
}

// Get returns the flair list, fetching it on first use. A failed fetch
// leaves the cache empty so the next call retries.
func (c *FlairCache) Get(ctx context.Context) ([]models.Flair, error) {
	if c.loaded {
		return c.flair, nil
	}

	c.logger.Info("fetching flair list", "subreddit", c.subreddit)

	var flair []models.Flair

	for f, err := range c.client.FlairList(ctx, c.subreddit) {
		if err != nil {
			return nil, fmt.Errorf("failed to fetch flair list: %w", err)
		}

		flair = append(flair, f)
	}

	c.flair = flair
	c.loaded = true

	return c.flair, nil
}

// Utils runs moderator actions against one subreddit and writes their
// output to out.
type Utils struct {
	client    Client
	out       io.Writer
	logger    *logger.Logger
	flair     *FlairCache
	subreddit string
}

// NewUtils creates the utilities for subreddit.
func NewUtils(client Client, subreddit string, out io.Writer, log *logger.Logger) *Utils {
	if log == nil {
		log = logger.Discard()
	}

	log = log.With("subreddit", subreddit)

	return &Utils{
		client:    client,
		out:       out,
		logger:    log,
		flair:     NewFlairCache(client, subreddit, log),
		subreddit: subreddit,
	}
}

// Users returns every user of subreddit in category.
func (u *Utils) Users(ctx context.Context, category string) ([]models.User, error) {
	if !ValidCategory(category) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}

	var users []models.User

	for user, err := range u.client.Relationship(ctx, u.subreddit, category) {
		if err != nil {
			return nil, fmt.Errorf("failed to list %s users: %w", category, err)
		}

		users = append(users, user)
	}

	return users, nil
}

// ListUsers prints the users of category.
func (u *Utils) ListUsers(ctx context.Context, category string) error {
	users, err := u.Users(ctx, category)
	if err != nil {
		return err
	}

	fmt.Fprintf(u.out, "%s users:\n", category)

	for _, user := range users {
		fmt.Fprintf(u.out, "  %s\n", user)
	}

	return nil
}

var nameSeparator = regexp.MustCompile(`[^A-Za-z0-9_]+`)

// ParseNames splits free-form input into user names.
func ParseNames(input string) []string {
	var names []string

	for _, name := range nameSeparator.Split(input, -1) {
		if name != "" {
			names = append(names, name)
		}
	}

	return names
}

// AddUsers adds every name found in input to category and returns the
// names that were added. It stops at the first failure.
func (u *Utils) AddUsers(ctx context.Context, category, input string) ([]string, error) {
	if !ValidCategory(category) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}

	var added []string

	for _, name := range ParseNames(input) {
		if err := u.client.AddRelationship(ctx, u.subreddit, category, name); err != nil {
			return added, fmt.Errorf("failed to add %s to %s: %w", name, category, err)
		}

		fmt.Fprintf(u.out, "Added %q to %s\n", name, category)

		added = append(added, name)
	}

	return added, nil
}

// ClearEmpty removes flair assignments with neither text nor css class.
func (u *Utils) ClearEmpty(ctx context.Context) (int, error) {
	flair, err := u.flair.Get(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0

	for _, f := range flair {
		if !f.IsEmpty() {
			continue
		}

		if err := u.client.DeleteFlair(ctx, u.subreddit, f.User); err != nil {
			return removed, fmt.Errorf("failed to remove flair of %s: %w", f.User, err)
		}

		fmt.Fprintf(u.out, "Removed flair for %s\n", f.User)

		removed++
	}

	return removed, nil
}

// OutputFlair prints the current flair of every user sorted by name,
// either as text or as indented JSON.
func (u *Utils) OutputFlair(ctx context.Context, asJSON bool) error {
	flair, err := u.flair.Get(ctx)
	if err != nil {
		return err
	}

	sorted := slices.Clone(flair)
	slices.SortStableFunc(sorted, func(a, b models.Flair) int {
		return cmp.Compare(a.User, b.User)
	})

	if asJSON {
		if sorted == nil {
			sorted = []models.Flair{}
		}

		data, err := json.MarshalIndent(sorted, "", "    ")
		if err != nil {
			return fmt.Errorf("failed to encode flair: %w", err)
		}

		_, err = fmt.Fprintln(u.out, string(data))

		return err
	}

	for _, f := range sorted {
		fmt.Fprintf(u.out, "%s\n  Text: %s\n   CSS: %s\n", f.User, f.Text, f.CSSClass)
	}

	return nil
}

// Count is a flair value and the number of users wearing it.
type Count struct {
	Value string
	Users int
}

// FlairStats counts users per css class, ascending, and per text, descending.
func (u *Utils) FlairStats(ctx context.Context) (css, text []Count, err error) {
	flair, err := u.flair.Get(ctx)
	if err != nil {
		return nil, nil, err
	}

	cssCounts := map[string]int{}
	textCounts := map[string]int{}

	for _, f := range flair {
		if f.CSSClass != "" {
			cssCounts[f.CSSClass]++
		}

		if f.Text != "" {
			textCounts[f.Text]++
		}
	}

	byCount := func(a, b Count) int {
		return cmp.Or(cmp.Compare(a.Users, b.Users), cmp.Compare(a.Value, b.Value))
	}

	css = toCounts(cssCounts)
	slices.SortFunc(css, byCount)

	text = toCounts(textCounts)
	slices.SortFunc(text, func(a, b Count) int { return byCount(b, a) })

	return css, text, nil
}

func toCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for v, n := range m {
		out = append(out, Count{Value: v, Users: n})
	}

	return out
}

// OutputFlairStats prints FlairStats.
func (u *Utils) OutputFlairStats(ctx context.Context) error {
	css, text, err := u.FlairStats(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(u.out, "Flair CSS Statistics")

	for _, c := range css {
		fmt.Fprintf(u.out, "%3d %s\n", c.Users, c.Value)
	}

	fmt.Fprintln(u.out, "Flair Text Statistics")

	for _, c := range text {
		fmt.Fprintf(u.out, "%3d %s\n", c.Users, c.Value)
	}

	return nil
}

// Message sends subject and body to every user of category once confirm
// accepts the recipient list. It returns the number of messages sent.
func (u *Utils) Message(ctx context.Context, category, subject, body string, confirm func(users []models.User) bool) (int, error) {
	users, err := u.Users(ctx, category)
	if err != nil {
		return 0, err
	}

	if len(users) == 0 {
		fmt.Fprintf(u.out, "There are no %s users on %s.\n", category, u.subreddit)
		return 0, nil
	}

	if confirm != nil && !confirm(users) {
		return 0, ErrAborted
	}

	sent := 0

	for _, user := range users {
		if err := u.client.SendMessage(ctx, user.Name, subject, body); err != nil {
			return sent, fmt.Errorf("failed to message %s: %w", user.Name, err)
		}

		fmt.Fprintf(u.out, "Sent to: %s\n", user.Name)

		sent++
	}

	return sent, nil
}

// UserNames joins the names of users with ", ".
func UserNames(users []models.User) string {
	names := make([]string, 0, len(users))
	for _, user := range users {
		names = append(names, user.Name)
	}

	return strings.Join(names, ", ")
}
