package stats

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"srtools/internal/models"
	"srtools/internal/reddit"
	"srtools/internal/retry"
)

// Publish posts r to the target subreddit. Rate limits are waited out for
// as long as the API asks; any other failure saves r to a local file and is
// reported through Result rather than as an error.
func (s *Stats) Publish(ctx context.Context, r *Report) (*Result, error) {
	if s.opts.DryRun {
		path, err := s.SaveReport(r)
		if err != nil {
			return nil, err
		}

		s.logger.Info("dry run, report saved", "path", path)

		return &Result{Report: r, SavedPath: path}, nil
	}

	policy := retry.Policy{
		Classify: reddit.RateLimitClassifier,
		Sleep:    s.sleep,
		OnRetry: func(err error, attempt int, wait time.Duration) {
			s.logger.Warn("sleeping before resubmitting", "seconds", int(wait.Seconds()), "attempt", attempt)
		},
	}

	post, err := retry.Do(ctx, policy, func(ctx context.Context) (models.Post, error) {
		return s.client.Submit(ctx, s.opts.PublishTo, r.Title, r.Body)
	})
	if err != nil {
		// interruption aborts the run without a fallback file
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		s.logger.Error("the submission failed", "subreddit", s.opts.PublishTo, "error", err)

		path, saveErr := s.SaveReport(r)
		if saveErr != nil {
			return nil, fmt.Errorf("failed to save report after submit error (%v): %w", err, saveErr)
		}

		s.logger.Warn("report saved locally", "path", path)

		return &Result{Report: r, SavedPath: path, SubmitErr: err}, nil
	}

	s.logger.Info("report published", "permalink", post.Permalink)

	return &Result{Report: r, Post: &post}, nil
}

// SaveReport writes the title and body of r to a uniquely named markdown
// file in the report directory and returns its path.
func (s *Stats) SaveReport(r *Report) (string, error) {
	if err := os.MkdirAll(s.opts.ReportDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	path := filepath.Join(s.opts.ReportDir, "report-"+uuid.NewString()+".md")

	if err := os.WriteFile(path, []byte(r.Title+"\n\n"+r.Body), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	return path, nil
}
