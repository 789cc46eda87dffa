// Command report-format normalises saved report files: it aligns their
// markdown tables and rewrites the stats marker in its current form, so a
// report saved after a failed submission can be posted by hand.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"srtools/internal/cliutil"
	"srtools/internal/formatter"
	"srtools/internal/stats"
	"srtools/internal/validator"
	"srtools/pkg/marker"
	"srtools/pkg/utils"
)

func main() {
	app := &cli.App{
		Name:      "report-format",
		Usage:     "align tables and normalise the marker of saved reports",
		UsageText: "report-format [options] [PATH...]",
		Version:   cliutil.Version(),
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "write",
				Aliases: []string{"w"},
				Usage:   "write changes to the files instead of listing them",
			},
			&cli.TimestampFlag{
				Name:   "stamp",
				Usage:  "marker time for reports that carry none",
				Layout: time.RFC3339,
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type summary struct {
	scanned, changed, unmarked, invalid, failed int
}

func run(cctx *cli.Context) error {
	paths := cctx.Args().Slice()
	if len(paths) == 0 {
		paths = []string{"."}
	}

	write := cctx.Bool("write")

	var stamp *time.Time
	if t := cctx.Timestamp("stamp"); t != nil {
		utc := t.UTC()
		stamp = &utc
	}

	v, err := validator.NewReportValidator(stats.TitlePrefix, stats.MaxBodySize)
	if err != nil {
		return err
	}

	var sum summary

	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				fmt.Fprintf(os.Stderr, "cannot access %s: %v\n", path, err)
				sum.failed++

				return nil
			}

			if d.IsDir() {
				if strings.HasPrefix(d.Name(), ".") && path != root {
					return filepath.SkipDir
				}

				return nil
			}

			if !strings.EqualFold(filepath.Ext(path), ".md") {
				return nil
			}

			sum.scanned++

			changed, marked, err := processFile(path, write, stamp)
			if err == nil && !check(v, path) {
				sum.invalid++
			}

			switch {
			case err != nil:
				fmt.Fprintf(os.Stderr, "failed to process %s: %v\n", path, err)
				sum.failed++
			case changed && write:
				fmt.Printf("formatted %s\n", path)
			case changed:
				fmt.Printf("would format %s\n", path)
			}

			if err == nil && !marked {
				sum.unmarked++
			}

			if changed {
				sum.changed++
			}

			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to walk %s: %w", root, err)
		}
	}

	fmt.Printf("%s scanned, %s changed, %s without marker, %d invalid, %s\n",
		utils.Plural(sum.scanned, "file"), utils.Plural(sum.changed, "file"),
		utils.Plural(sum.unmarked, "file"), sum.invalid, utils.Plural(sum.failed, "error"))

	if sum.failed > 0 {
		return errors.New("some files could not be processed")
	}

	if sum.changed > 0 && !write {
		return cli.Exit("run with --write to apply changes", 1)
	}

	return nil
}

// processFile reports whether path needs changes and whether the result
// carries a marker.
func processFile(path string, write bool, stamp *time.Time) (changed, marked bool, err error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return false, false, err
	}

	original := string(content)
	formatted := formatter.AlignTables(original)

	mark, err := marker.Extract(formatted)

	switch {
	case err == nil:
		formatted = marker.Append(formatted, mark)
		marked = true
	case errors.Is(err, marker.ErrNoMarker) && stamp != nil:
		formatted = marker.Append(formatted, *stamp)
		marked = true
	case errors.Is(err, marker.ErrNoMarker):
		title, _, _ := strings.Cut(original, "\n")
		fmt.Printf("no marker in %s (%s)\n", path, utils.Truncate(title, 60))
	default:
		return false, false, err
	}

	if formatted == original {
		return false, marked, nil
	}

	if write {
		if err := os.WriteFile(path, []byte(formatted), 0o644); err != nil {
			return false, marked, err
		}
	}

	return true, marked, nil
}

// check validates the report stored at path and prints what is wrong with it.
func check(v *validator.ReportValidator, path string) bool {
	content, err := os.ReadFile(path)
	if err != nil {
		return false
	}

	result := v.ValidateReport(string(content))
	if !result.IsValid || len(result.Warnings) > 0 {
		fmt.Printf("%s: %s\n", path, result)
		result.PrintErrors(os.Stdout)
		result.PrintWarnings(os.Stdout)
	}

	return result.IsValid
}
