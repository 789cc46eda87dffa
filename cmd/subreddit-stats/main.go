// Command subreddit-stats builds a statistics report of a subreddit's recent
// or top submissions and posts it as a self post.
package main

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v2"

	"srtools/internal/cliutil"
	"srtools/internal/stats"
)

func main() {
	app := &cli.App{
		Name:      "subreddit-stats",
		Usage:     "post statistics of a subreddit's submitters and commenters",
		UsageText: "subreddit-stats [options] SUBREDDIT VIEW\n\nVIEW is one of day, week, month, year, all (top listing) or a number of days (0 for unlimited)",
		Version:   cliutil.Version(),
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:    "submitters",
				Aliases: []string{"s"},
				Usage:   "number of top submitters to display",
				Value:   -1,
			},
			&cli.IntFlag{
				Name:    "commenters",
				Aliases: []string{"c"},
				Usage:   "number of top commenters to display",
				Value:   -1,
			},
			&cli.StringFlag{
				Name:    "after",
				Aliases: []string{"a"},
				Usage:   "submission fullname to fetch after",
			},
			&cli.StringFlag{
				Name:  "prev",
				Usage: "URL of the previous report, its marker bounds this one",
			},
			&cli.BoolFlag{
				Name:  "include-prev",
				Usage: "do not avoid overlap with the newest previous report",
			},
			&cli.BoolFlag{
				Name:  "no-self",
				Usage: "exclude self posts and their comments",
			},
			&cli.BoolFlag{
				Name:  "no-link",
				Usage: "exclude link posts and their comments",
			},
			&cli.BoolFlag{
				Name:  "distinguished",
				Usage: "include distinguished submissions and comments",
			},
			&cli.BoolFlag{
				Name:  "skip-distinguished-threads",
				Usage: "also drop every comment of a distinguished submission",
			},
			&cli.StringFlag{
				Name:    "submission-reddit",
				Aliases: []string{"R"},
				Usage:   "subreddit to post the report to, the analysed one by default",
			},
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"D"},
				Usage:   "save the report to a file instead of posting it",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "save a CSV export of every counted item",
			},
			&cli.IntFlag{
				Name:  "more-limit",
				Usage: "number of \"load more\" placeholders expanded per submission, -1 for all",
				Value: -2,
			},
			&cli.StringFlag{
				Name:  "report-dir",
				Usage: "directory for reports that could not be posted",
			},
		}, cliutil.Flags...),
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(cctx *cli.Context) error {
	if cctx.NArg() != 2 {
		return cli.Exit("expected SUBREDDIT and VIEW arguments", 2)
	}

	view, err := stats.ParseView(cctx.Args().Get(1))
	if err != nil {
		return err
	}

	// reject flag conflicts before logging in
	if cctx.Bool("no-self") && cctx.Bool("no-link") {
		return stats.ErrConflictingExclusions
	}

	ctx, stop := cliutil.SignalContext(cctx.Context)
	defer stop()

	cctx.Context = ctx

	env, err := cliutil.Setup(cctx)
	if err != nil {
		return err
	}

	defaults := env.Config.Stats

	opts := stats.Options{
		RetryBackoff:             env.Config.Retry.GetRetryDelay,
		Subreddit:                cctx.Args().Get(0),
		PublishTo:                cctx.String("submission-reddit"),
		After:                    cctx.String("after"),
		PrevURL:                  cctx.String("prev"),
		ReportDir:                defaults.ReportDir,
		Output:                   cctx.String("output"),
		Submitters:               defaults.Submitters,
		Commenters:               defaults.Commenters,
		MoreLimit:                defaults.MoreLimit,
		IncludeDistinguished:     cctx.Bool("distinguished"),
		SkipDistinguishedThreads: cctx.Bool("skip-distinguished-threads"),
		ExcludeSelf:              cctx.Bool("no-self"),
		ExcludeLink:              cctx.Bool("no-link"),
		SinceLast:                !cctx.Bool("include-prev"),
		DryRun:                   cctx.Bool("dry-run"),
	}

	if n := cctx.Int("submitters"); n >= 0 {
		opts.Submitters = n
	}

	if n := cctx.Int("commenters"); n >= 0 {
		opts.Commenters = n
	}

	if n := cctx.Int("more-limit"); n >= -1 {
		opts.MoreLimit = n
	}

	if dir := cctx.String("report-dir"); dir != "" {
		opts.ReportDir = dir
	}

	s, err := stats.New(env.Client, env.Logger, opts)
	if err != nil {
		return err
	}

	res, err := s.Run(ctx, view)
	if err != nil {
		return err
	}

	switch {
	case res.NoData:
		fmt.Println("No submissions were found.")
	case res.SubmitErr != nil:
		fmt.Printf("The submission failed: %v\nThe report was saved to %s\n", res.SubmitErr, res.SavedPath)
	case res.SavedPath != "":
		fmt.Printf("Report saved to %s\n", res.SavedPath)
	default:
		fmt.Println(res.Post.Permalink)
	}

	return nil
}
