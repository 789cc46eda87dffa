package stats

import (
	"context"
	"fmt"
	"slices"
	"time"

	"srtools/internal/models"
	"srtools/internal/reddit"
	"srtools/internal/retry"
)

const (
	// commentAttempts bounds the fetches of one submission's comment tree.
	commentAttempts = 3
	// progressInterval is how many submissions pass between progress logs.
	progressInterval = 50
)

// Authored is an item attributed to an author that may be distinguished.
type Authored interface {
	AuthorName() string
	IsDistinguished() bool
}

// GroupByAuthor buckets items by author name. Items of deleted accounts are
// left out, as are distinguished items unless includeDistinguished is set.
// Within a bucket items keep their input order.
func GroupByAuthor[T Authored](items []T, includeDistinguished bool) map[string][]T {
	groups := make(map[string][]T)

	for _, item := range items {
		name := item.AuthorName()
		if name == "" {
			continue
		}

		if !includeDistinguished && item.IsDistinguished() {
			continue
		}

		groups[name] = append(groups[name], item)
	}

	return groups
}

// ProcessSubmitters groups the fetched submissions by author.
func (s *Stats) ProcessSubmitters() {
	s.logger.Debug("processing submitters", "submissions", len(s.Submissions))
	s.Submitters = GroupByAuthor(s.Submissions, s.opts.IncludeDistinguished)
}

// ProcessCommenters expands the comments of every fetched submission and
// groups them by author.
func (s *Stats) ProcessCommenters(ctx context.Context) error {
	total := len(s.Submissions)
	s.logger.Debug("processing commenters", "submissions", total)

	var comments []models.Comment

	for i := range s.Submissions {
		sub := &s.Submissions[i]

		if i > 0 && i%progressInterval == 0 {
			s.logger.Debug("expanding comments", "done", i, "total", total)
		}

		if s.opts.SkipDistinguishedThreads && !s.opts.IncludeDistinguished && sub.IsDistinguished() {
			continue
		}

		expanded, err := s.ExpandComments(ctx, sub)
		if err != nil {
			return err
		}

		for _, c := range expanded {
			if !s.opts.IncludeDistinguished && c.IsDistinguished() {
				continue
			}

			comments = append(comments, c)
		}
	}

	slices.SortStableFunc(comments, func(a, b models.Comment) int {
		return a.Created.Compare(b.Created)
	})

	s.Comments = comments
	s.Commenters = GroupByAuthor(comments, s.opts.IncludeDistinguished)

	s.logger.Debug("processed commenters", "comments", len(comments), "commenters", len(s.Commenters))

	return nil
}

// ExpandComments fetches the full comment tree of sub sorted by score and
// returns it flattened. Transient request failures are retried up to three
// times in total; the last error is returned once attempts run out.
func (s *Stats) ExpandComments(ctx context.Context, sub *models.Submission) ([]models.Comment, error) {
	if sub.NumComments == 0 {
		return nil, nil
	}

	policy := retry.Policy{
		Classify:    retry.When(reddit.IsTransient, s.opts.RetryBackoff),
		Sleep:       s.sleep,
		MaxAttempts: commentAttempts,
		OnRetry: func(err error, attempt int, wait time.Duration) {
			s.logger.Warn("retrying comment fetch", "submission", sub.ID, "attempt", attempt, "wait", wait, "error", err)
		},
	}

	opts := reddit.CommentOptions{Sort: "top", MoreLimit: s.opts.MoreLimit}

	tree, err := retry.Do(ctx, policy, func(ctx context.Context) (*models.CommentTree, error) {
		return s.client.CommentTree(ctx, sub.ID, opts)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to expand comments of %s: %w", sub.ID, err)
	}

	comments := tree.Flatten()
	for i := range comments {
		comments[i].Submission = sub
	}

	return comments, nil
}
