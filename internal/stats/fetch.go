package stats

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"srtools/internal/models"
	"srtools/internal/reddit"
	"srtools/pkg/marker"
)

const (
	day = 24 * time.Hour
	// stabilityWindow keeps posts whose score is still moving out of the report.
	stabilityWindow = day
)

// LoadPrevious reads the marker of the report at permalink and uses it as
// the lower bound of the recent window.
func (s *Stats) LoadPrevious(ctx context.Context, permalink string) error {
	id, err := reddit.SubmissionIDFromURL(permalink)
	if err != nil {
		return err
	}

	prev, err := s.client.Submission(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load previous report: %w", err)
	}

	mark, err := marker.Extract(prev.Selftext)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrMarkerNotFound, permalink)
	}

	s.MinDate = mark
	s.PrevPermalink = prev.Permalink

	s.logger.Info("loaded previous report", "permalink", prev.Permalink, "marker", mark.Unix())

	return nil
}

// FetchRecent collects submissions of the last days days, newest first,
// leaving out the most recent day whose scores are not yet stable. Zero days
// means no lower bound besides a previous report's marker.
func (s *Stats) FetchRecent(ctx context.Context, days int) error {
	if s.opts.ExcludeSelf && s.opts.ExcludeLink {
		return ErrConflictingExclusions
	}

	s.top = ""
	s.MaxDate = s.now().UTC().Add(-stabilityWindow)

	if days > 0 {
		floor := s.MaxDate.Add(-time.Duration(days) * day)
		if floor.After(s.MinDate) {
			s.MinDate = floor
		}
	}

	s.logger.Debug("fetching submissions", "min", s.MinDate, "max", s.MaxDate)

	opts := reddit.ListingOptions{After: s.opts.After}

	for sub, err := range s.client.New(ctx, s.opts.Subreddit, opts) {
		if err != nil {
			return fmt.Errorf("failed to fetch submissions: %w", err)
		}

		if sub.Created.After(s.MaxDate) {
			continue
		}

		if !sub.Created.After(s.MinDate) {
			break
		}

		if s.opts.SinceLast && s.isPreviousReport(sub) {
			if err := s.usePreviousReport(sub); err != nil {
				return err
			}

			continue
		}

		if s.excluded(sub) {
			continue
		}

		s.Submissions = append(s.Submissions, sub)
	}

	s.updateDates()

	return nil
}

// FetchTop collects the top submissions of timeFilter without date bounds.
func (s *Stats) FetchTop(ctx context.Context, timeFilter string) error {
	if s.opts.ExcludeSelf && s.opts.ExcludeLink {
		return ErrConflictingExclusions
	}

	if !reddit.IsTimeFilter(timeFilter) {
		return fmt.Errorf("%w: %q", ErrInvalidView, timeFilter)
	}

	s.top = timeFilter

	s.logger.Debug("fetching top submissions", "filter", timeFilter)

	for sub, err := range s.client.Top(ctx, s.opts.Subreddit, timeFilter, reddit.ListingOptions{}) {
		if err != nil {
			return fmt.Errorf("failed to fetch submissions: %w", err)
		}

		if s.excluded(sub) {
			continue
		}

		s.Submissions = append(s.Submissions, sub)
	}

	s.updateDates()

	return nil
}

// isPreviousReport reports whether sub is a report posted by this account.
func (s *Stats) isPreviousReport(sub models.Submission) bool {
	user := s.client.Username()

	return user != "" && strings.EqualFold(sub.Author, user) && strings.HasPrefix(sub.Title, TitlePrefix)
}

// usePreviousReport raises the lower bound to the marker of the newest
// previous report. Older reports are only skipped.
func (s *Stats) usePreviousReport(sub models.Submission) error {
	s.logger.Info("found previous report", "title", sub.Title)

	if s.PrevPermalink != "" {
		return nil
	}

	mark, err := marker.Extract(sub.Selftext)
	if err != nil {
		if errors.Is(err, marker.ErrNoMarker) {
			return fmt.Errorf("%w: %s", ErrMarkerNotFound, sub.Permalink)
		}

		return err
	}

	if mark.After(s.MinDate) {
		s.MinDate = mark
	}

	s.PrevPermalink = sub.Permalink

	return nil
}

func (s *Stats) excluded(sub models.Submission) bool {
	return (s.opts.ExcludeSelf && sub.IsSelf) || (s.opts.ExcludeLink && !sub.IsSelf)
}

// updateDates orders the collected submissions by creation time and derives
// MinDate and MaxDate from them.
func (s *Stats) updateDates() {
	s.logger.Debug("found submissions", "count", len(s.Submissions))

	if len(s.Submissions) == 0 {
		return
	}

	slices.SortStableFunc(s.Submissions, func(a, b models.Submission) int {
		return a.Created.Compare(b.Created)
	})

	s.MinDate = s.Submissions[0].Created
	s.MaxDate = s.Submissions[len(s.Submissions)-1].Created
}
