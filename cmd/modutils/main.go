// Command modutils runs moderator utilities against a subreddit: relationship
// lists, flair listing and cleanup, flair template synchronisation and bulk
// messages.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v2"

	"srtools/internal/cliutil"
	"srtools/internal/mod"
	"srtools/internal/models"
)

func main() {
	categories := strings.Join(mod.Categories, ", ")

	app := &cli.App{
		Name:      "modutils",
		Usage:     "moderator utilities for a subreddit",
		UsageText: "modutils [options] SUBREDDIT",
		Version:   cliutil.Version(),
		Flags: append([]cli.Flag{
			&cli.StringFlag{
				Name:    "add",
				Aliases: []string{"a"},
				Usage:   "add user names read from stdin to one of: " + categories,
			},
			&cli.StringSliceFlag{
				Name:    "list",
				Aliases: []string{"l"},
				Usage:   "list the users of a category, may be repeated",
			},
			&cli.BoolFlag{
				Name:    "clear-empty",
				Aliases: []string{"c"},
				Usage:   "remove flair assignments with neither text nor css",
			},
			&cli.BoolFlag{
				Name:    "flair",
				Aliases: []string{"f"},
				Usage:   "list the flair of every user",
			},
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "print --flair as JSON",
			},
			&cli.BoolFlag{
				Name:  "flair-stats",
				Usage: "display the number of users wearing each flair",
			},
			&cli.StringFlag{
				Name:    "message",
				Aliases: []string{"m"},
				Usage:   "message every user of one of: " + categories,
			},
			&cli.StringFlag{
				Name:  "subject",
				Usage: "subject of --message",
			},
			&cli.StringFlag{
				Name:    "file",
				Aliases: []string{"F"},
				Usage:   "file holding the --message body, stdin when unset",
			},
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "send --message without asking for confirmation",
			},
			&cli.BoolFlag{
				Name:  "sync",
				Usage: "synchronise flair templates with current user flair",
			},
			&cli.StringSliceFlag{
				Name:    "static",
				Aliases: []string{"s"},
				Usage:   "template always added on --sync, \"text,css\" when syncing both",
			},
			&cli.BoolFlag{
				Name:  "editable",
				Usage: "mark synchronised templates as editable",
			},
			&cli.BoolFlag{
				Name:  "ignore-css",
				Usage: "ignore the css class when synchronising",
			},
			&cli.BoolFlag{
				Name:  "ignore-text",
				Usage: "ignore the text when synchronising",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "minimum number of users sharing a flair for it to become a template",
				Value: 2,
			},
			&cli.StringFlag{
				Name:  "sort",
				Usage: "template order, alpha or size",
				Value: mod.SortAlpha,
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
	if cctx.NArg() != 1 {
		return cli.Exit("expected a SUBREDDIT argument", 2)
	}

	if cctx.String("message") != "" && cctx.String("subject") == "" {
		return cli.Exit("--subject is required with --message", 2)
	}

	ctx, stop := cliutil.SignalContext(cctx.Context)
	defer stop()

	cctx.Context = ctx

	env, err := cliutil.Setup(cctx)
	if err != nil {
		return err
	}

	out := os.Stdout
	stdin := bufio.NewReader(os.Stdin)
	utils := mod.NewUtils(env.Client, cctx.Args().First(), out, env.Logger)

	if category := cctx.String("add"); category != "" {
		fmt.Fprintln(out, "Enter user names (any separation should suffice):")

		input, err := io.ReadAll(stdin)
		if err != nil {
			return fmt.Errorf("failed to read user names: %w", err)
		}

		if _, err := utils.AddUsers(ctx, category, string(input)); err != nil {
			return err
		}
	}

	if cctx.Bool("clear-empty") {
		if _, err := utils.ClearEmpty(ctx); err != nil {
			return err
		}
	}

	for _, category := range cctx.StringSlice("list") {
		if err := utils.ListUsers(ctx, category); err != nil {
			return err
		}
	}

	if cctx.Bool("flair") {
		if err := utils.OutputFlair(ctx, cctx.Bool("json")); err != nil {
			return err
		}
	}

	if cctx.Bool("flair-stats") {
		if err := utils.OutputFlairStats(ctx); err != nil {
			return err
		}
	}

	if cctx.Bool("sync") {
		_, err := utils.SyncTemplates(ctx, mod.SyncOptions{
			Sort:     cctx.String("sort"),
			Static:   cctx.StringSlice("static"),
			Limit:    cctx.Int("limit"),
			Editable: cctx.Bool("editable"),
			UseText:  !cctx.Bool("ignore-text"),
			UseCSS:   !cctx.Bool("ignore-css"),
		})
		if err != nil {
			return err
		}
	}

	if category := cctx.String("message"); category != "" {
		return sendMessage(cctx, utils, stdin, category)
	}

	return nil
}

func sendMessage(cctx *cli.Context, utils *mod.Utils, stdin *bufio.Reader, category string) error {
	var body []byte

	var err error

	if path := cctx.String("file"); path != "" {
		body, err = os.ReadFile(path)
	} else {
		fmt.Println("Enter message:")

		body, err = io.ReadAll(stdin)
	}

	if err != nil {
		return fmt.Errorf("failed to read message: %w", err)
	}

	confirm := func(users []models.User) bool {
		fmt.Printf("You are about to send the following message to the users %s:\n", mod.UserNames(users))
		fmt.Printf("---BEGIN MESSAGE---\n%s\n---END MESSAGE---\n", body)

		if cctx.Bool("yes") {
			return true
		}

		fmt.Print("Are you sure? yes/[no]: ")

		// stdin may already be drained by the message body
		answer, _ := stdin.ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))

		return answer == "y" || answer == "yes"
	}

	_, err = utils.Message(cctx.Context, category, cctx.String("subject"), string(body), confirm)
	if errors.Is(err, mod.ErrAborted) {
		fmt.Println("Message sending aborted.")
		return nil
	}

	return err
}
