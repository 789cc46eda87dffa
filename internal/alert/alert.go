// Package alert watches a comment stream and reports comments that mention
// any of a set of keywords.
package alert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"regexp"
	"slices"
	"strings"
	"time"
	"unicode"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"srtools/internal/logger"
	"srtools/internal/models"
	"srtools/internal/reddit"
)

// Alert errors.
var (
	ErrNoKeywords = errors.New("at least one keyword must be provided")
	ErrInterval   = errors.New("poll interval must be positive")
)

// Defaults of Options.
const (
	DefaultInterval  = 30 * time.Second
	DefaultCacheSize = 10_000
	pollSize         = 100
)

// Matcher finds the first keyword mentioned in a comment body. Keywords
// only match on word boundaries made of non-letters, and accents are
// ignored on both sides.
type Matcher struct {
	re       *regexp.Regexp
	keywords []string
}

// NewMatcher compiles keywords into a single case-insensitive pattern.
func NewMatcher(keywords []string) (*Matcher, error) {
	var quoted, kept []string

	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(fold(k)))
		if k == "" || slices.Contains(kept, k) {
			continue
		}

		kept = append(kept, k)
		quoted = append(quoted, regexp.QuoteMeta(k))
	}

	if len(kept) == 0 {
		return nil, ErrNoKeywords
	}

	re, err := regexp.Compile(`(?i)(?:^|[^a-z])(` + strings.Join(quoted, "|") + `)(?:$|[^a-z])`)
	if err != nil {
		return nil, fmt.Errorf("failed to compile keywords: %w", err)
	}

	slices.Sort(kept)

	return &Matcher{re: re, keywords: kept}, nil
}

// Keywords returns the normalised keywords, sorted.
func (m *Matcher) Keywords() []string {
	return slices.Clone(m.keywords)
}

// Match returns the lowercased keyword found in body.
func (m *Matcher) Match(body string) (string, bool) {
	sub := m.re.FindStringSubmatch(fold(body))
	if sub == nil {
		return "", false
	}

	return strings.ToLower(sub[1]), true
}

// fold strips combining marks so "café" matches "cafe".
func fold(s string) string {
	// transformers keep state, build a fresh chain per call
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}

	return out
}

// Source is the comment stream the watcher polls.
type Source interface {
	RecentComments(ctx context.Context, subreddit string, opts reddit.ListingOptions) iter.Seq2[models.Comment, error]
}

// Messenger delivers alerts as private messages.
type Messenger interface {
	SendMessage(ctx context.Context, to, subject, text string) error
}

// Options configures a Watcher.
type Options struct {
	// Subreddits restricts the stream; empty means r/all.
	Subreddits []string
	// IgnoreUsers are skipped, compared case-insensitively.
	IgnoreUsers []string
	// MessageTo receives a private message per alert when set.
	MessageTo string
	Interval  time.Duration
	CacheSize int
}

// Watcher polls the newest comments and reports keyword matches.
type Watcher struct {
	source    Source
	messenger Messenger
	matcher   *Matcher
	out       io.Writer
	logger    *logger.Logger
	seen      *lru.Cache[string, struct{}]
	ignore    map[string]struct{}
	subreddit string
	messageTo string
	interval  time.Duration
}

// NewWatcher validates opts and creates a watcher writing alerts to out.
// messenger may be nil when opts.MessageTo is empty.
func NewWatcher(source Source, messenger Messenger, matcher *Matcher, out io.Writer, log *logger.Logger, opts Options) (*Watcher, error) {
	if opts.Interval == 0 {
		opts.Interval = DefaultInterval
	}

	if opts.Interval < 0 {
		return nil, ErrInterval
	}

	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}

	if opts.MessageTo != "" && messenger == nil {
		return nil, errors.New("a messenger is required to send alerts")
	}

	if log == nil {
		log = logger.Discard()
	}

	seen, err := lru.New[string, struct{}](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create seen cache: %w", err)
	}

	ignore := make(map[string]struct{}, len(opts.IgnoreUsers))
	for _, u := range opts.IgnoreUsers {
		ignore[strings.ToLower(u)] = struct{}{}
	}

	return &Watcher{
		source:    source,
		messenger: messenger,
		matcher:   matcher,
		out:       out,
		logger:    log,
		seen:      seen,
		ignore:    ignore,
		subreddit: StreamName(opts.Subreddits),
		messageTo: opts.MessageTo,
		interval:  opts.Interval,
	}, nil
}

// StreamName joins subreddits into a sorted multireddit name, "all" when empty.
func StreamName(subreddits []string) string {
	if len(subreddits) == 0 {
		return "all"
	}

	sorted := slices.Clone(subreddits)
	slices.Sort(sorted)

	return strings.Join(slices.Compact(sorted), "+")
}

// Subreddit returns the stream the watcher polls.
func (w *Watcher) Subreddit() string {
	return w.subreddit
}

// CommentURL links to a comment with three levels of context, without
// fetching its submission.
func CommentURL(c models.Comment) string {
	return fmt.Sprintf("https://www.reddit.com/r/%s/comments/%s/_/%s?context=3", c.Subreddit, c.SubmissionID(), c.ID)
}

// Run polls until ctx is cancelled. Failed polls are logged and retried on
// the next tick.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}

			w.logger.Warn("poll failed", "subreddit", w.subreddit, "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll fetches the newest comments once and handles those not seen before,
// oldest first. It returns the number of alerts raised. A comment is only
// marked seen once handled, so a failed message is retried by the next poll.
func (w *Watcher) Poll(ctx context.Context) (int, error) {
	var fresh []models.Comment

	for c, err := range w.source.RecentComments(ctx, w.subreddit, reddit.ListingOptions{Limit: pollSize}) {
		if err != nil {
			return 0, fmt.Errorf("failed to fetch comments: %w", err)
		}

		if w.seen.Contains(c.ID) || slices.ContainsFunc(fresh, func(f models.Comment) bool { return f.ID == c.ID }) {
			continue
		}

		fresh = append(fresh, c)
	}

	w.logger.Debug("polled comments", "subreddit", w.subreddit, "new", len(fresh))

	alerts := 0

	for _, c := range slices.Backward(fresh) {
		raised, err := w.handle(ctx, c)
		if err != nil {
			return alerts, err
		}

		w.seen.Add(c.ID, struct{}{})

		if raised {
			alerts++
		}
	}

	return alerts, nil
}

func (w *Watcher) handle(ctx context.Context, c models.Comment) (bool, error) {
	if _, ok := w.ignore[strings.ToLower(c.Author)]; ok {
		return false, nil
	}

	keyword, ok := w.matcher.Match(c.Body)
	if !ok {
		return false, nil
	}

	url := CommentURL(c)
	fmt.Fprintf(w.out, "%s: %s\n", keyword, url)

	if w.messageTo == "" {
		return true, nil
	}

	subject := "Reddit Alert: " + keyword
	text := fmt.Sprintf("%s\n\nby /u/%s\n\n---\n\n%s", url, c.Author, c.Body)

	if err := w.messenger.SendMessage(ctx, w.messageTo, subject, text); err != nil {
		return true, fmt.Errorf("failed to message %s: %w", w.messageTo, err)
	}

	return true, nil
}
