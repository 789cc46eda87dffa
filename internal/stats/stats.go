// Package stats builds the subreddit statistics report.
//
// A run is a single linear pass: fetch submissions (recent window or top
// listing), group them by author, expand every submission's comment tree,
// group the commenters, render a size-bounded markdown report and publish it,
// falling back to a local file when publishing fails.
package stats

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"
	"time"

	"srtools/internal/logger"
	"srtools/internal/models"
	"srtools/internal/reddit"
	"srtools/internal/retry"
)

// Stats errors.
var (
	ErrInvalidView           = errors.New("view must be day, week, month, year, all or a number of days")
	ErrConflictingExclusions = errors.New("cannot exclude both self posts and link posts")
	ErrMarkerNotFound        = errors.New("marker not found in previous report")
	ErrNoSubreddit           = errors.New("subreddit is required")
)

// Source is the read side of the API used by a run.
type Source interface {
	New(ctx context.Context, subreddit string, opts reddit.ListingOptions) iter.Seq2[models.Submission, error]
	Top(ctx context.Context, subreddit, timeFilter string, opts reddit.ListingOptions) iter.Seq2[models.Submission, error]
	Submission(ctx context.Context, id string) (models.Submission, error)
	CommentTree(ctx context.Context, id string, opts reddit.CommentOptions) (*models.CommentTree, error)
	Username() string
}

// Publisher posts the finished report.
type Publisher interface {
	Submit(ctx context.Context, subreddit, title, body string) (models.Post, error)
}

// Client is everything a run needs from the API.
type Client interface {
	Source
	Publisher
}

// View selects the submissions of a run: a top listing or a recent window.
type View struct {
	// Top is one of reddit.TimeFilters; empty selects the recent window.
	Top string
	// Days bounds the recent window; zero means unlimited.
	Days int
}

// ParseView parses the VIEW argument of the command line.
func ParseView(s string) (View, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if reddit.IsTimeFilter(s) {
		return View{Top: s}, nil
	}

	days, err := strconv.Atoi(s)
	if err != nil || days < 0 {
		return View{}, fmt.Errorf("%w: %q", ErrInvalidView, s)
	}

	return View{Days: days}, nil
}

// IsTop reports whether v selects a top listing.
func (v View) IsTop() bool {
	return v.Top != ""
}

func (v View) String() string {
	if v.IsTop() {
		return "top/" + v.Top
	}

	return strconv.Itoa(v.Days) + " days"
}

// Options configures a run.
type Options struct {
	// RetryBackoff returns the wait before retry attempt n of a comment fetch.
	RetryBackoff func(attempt int) time.Duration
	Subreddit    string
	// PublishTo is the subreddit receiving the report; Subreddit when empty.
	PublishTo string
	// After starts the recent listing after this fullname.
	After string
	// PrevURL is the permalink of the previous report.
	PrevURL   string
	ReportDir string
	// Output is the path of the optional CSV export.
	Output string
	// Submitters and Commenters are the number of authors shown per section.
	Submitters int
	Commenters int
	// MoreLimit is the number of "load more" placeholders expanded per
	// submission; zero drops them.
	MoreLimit            int
	IncludeDistinguished bool
	// SkipDistinguishedThreads drops every comment of distinguished
	// submissions when distinguished content is excluded.
	SkipDistinguishedThreads bool
	ExcludeSelf              bool
	ExcludeLink              bool
	// SinceLast resumes from the marker of the newest previous report.
	SinceLast bool
	DryRun    bool
}

// Stats holds the state of one run.
type Stats struct {
	client Client
	logger *logger.Logger
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error

	MinDate       time.Time
	MaxDate       time.Time
	Submitters    map[string][]models.Submission
	Commenters    map[string][]models.Comment
	PrevPermalink string
	top           string
	Submissions   []models.Submission
	Comments      []models.Comment
	opts          Options
}

// Result describes how a run ended.
type Result struct {
	Report *Report
	Post   *models.Post
	// SavedPath is set when the report was written to disk instead of posted.
	SavedPath string
	// SubmitErr is the error that caused the fallback save.
	SubmitErr error
	// NoData is set when the window held no submissions.
	NoData bool
}

// New validates opts and creates a run. Configuration errors are reported
// here, before any request is made.
func New(client Client, log *logger.Logger, opts Options) (*Stats, error) {
	if opts.Subreddit == "" {
		return nil, ErrNoSubreddit
	}

	if opts.ExcludeSelf && opts.ExcludeLink {
		return nil, ErrConflictingExclusions
	}

	if log == nil {
		log = logger.Discard()
	}

	if opts.PublishTo == "" {
		opts.PublishTo = opts.Subreddit
	}

	if opts.ReportDir == "" {
		opts.ReportDir = "."
	}

	return &Stats{
		client:     client,
		logger:     log.With("subreddit", opts.Subreddit),
		now:        time.Now,
		sleep:      retry.SleepContext,
		opts:       opts,
		Submitters: map[string][]models.Submission{},
		Commenters: map[string][]models.Comment{},
	}, nil
}

// Run performs a complete run for view.
func (s *Stats) Run(ctx context.Context, view View) (*Result, error) {
	if err := s.Fetch(ctx, view); err != nil {
		return nil, err
	}

	if len(s.Submissions) == 0 {
		s.logger.Warn("No submissions were found", "view", view.String())

		return &Result{NoData: true}, nil
	}

	s.ProcessSubmitters()

	if s.opts.Commenters > 0 {
		if err := s.ProcessCommenters(ctx); err != nil {
			return nil, err
		}
	}

	if s.opts.Output != "" {
		if err := s.SaveCSV(s.opts.Output); err != nil {
			return nil, err
		}
	}

	return s.Publish(ctx, s.Render())
}

// Fetch collects the submissions selected by view.
func (s *Stats) Fetch(ctx context.Context, view View) error {
	if view.IsTop() {
		return s.FetchTop(ctx, view.Top)
	}

	if s.opts.PrevURL != "" {
		if err := s.LoadPrevious(ctx, s.opts.PrevURL); err != nil {
			return err
		}
	}

	return s.FetchRecent(ctx, view.Days)
}
