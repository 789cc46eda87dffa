// Command reddit-alert prints a line, and optionally sends a private message,
// whenever a new comment mentions one of the given keywords.
package main

import (
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v2"

	"srtools/internal/alert"
	"srtools/internal/cliutil"
)

func main() {
	app := &cli.App{
		Name:      "reddit-alert",
		Usage:     "alert when keywords appear in reddit comments",
		UsageText: "reddit-alert [options] KEYWORD...",
		Version:   cliutil.Version(),
		Flags: append([]cli.Flag{
			&cli.StringSliceFlag{
				Name:    "subreddit",
				Aliases: []string{"s"},
				Usage:   "only alert on comments in this subreddit, may be repeated",
			},
			&cli.StringSliceFlag{
				Name:    "ignore-user",
				Aliases: []string{"I"},
				Usage:   "ignore comments by this user, may be repeated",
			},
			&cli.StringFlag{
				Name:    "message",
				Aliases: []string{"m"},
				Usage:   "send each alert as a private message to this user",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Usage: "time between polls of the comment stream",
				Value: alert.DefaultInterval,
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
	matcher, err := alert.NewMatcher(cctx.Args().Slice())
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	ctx, stop := cliutil.SignalContext(cctx.Context)
	defer stop()

	cctx.Context = ctx

	env, err := cliutil.Setup(cctx)
	if err != nil {
		return err
	}

	w, err := alert.NewWatcher(env.Client, env.Client, matcher, os.Stdout, env.Logger, alert.Options{
		Subreddits:  cctx.StringSlice("subreddit"),
		IgnoreUsers: cctx.StringSlice("ignore-user"),
		MessageTo:   cctx.String("message"),
		Interval:    cctx.Duration("interval"),
	})
	if err != nil {
		return err
	}

	fmt.Println("Alerting on:")

	for _, k := range matcher.Keywords() {
		fmt.Printf(" * %s\n", k)
	}

	fmt.Printf("using the comment stream: https://www.reddit.com/r/%s/comments\n", w.Subreddit())

	if err := w.Run(ctx); err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr)
	fmt.Println("Goodbye!")

	return nil
}
