package stats

import (
	"cmp"
	"encoding/csv"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
)

// csvBaseURL makes the exported permalinks usable outside reddit.
const csvBaseURL = "https://www.reddit.com"

// WriteCSV writes one row per submission and comment of every redditor:
// username, type, permalink, score. Permalinks of both types are absolute
// short links. Redditors are sorted case-insensitively, their submissions
// before their comments.
func (s *Stats) WriteCSV(w io.Writer) error {
	names := make(map[string]struct{}, len(s.Submitters)+len(s.Commenters))
	for name := range s.Submitters {
		names[name] = struct{}{}
	}

	for name := range s.Commenters {
		names[name] = struct{}{}
	}

	redditors := slices.SortedFunc(maps.Keys(names), func(a, b string) int {
		return cmp.Or(cmp.Compare(strings.ToLower(a), strings.ToLower(b)), cmp.Compare(a, b))
	})

	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"username", "type", "permalink", "score"}); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, name := range redditors {
		for _, sub := range s.Submitters[name] {
			if err := cw.Write([]string{name, "submission", csvBaseURL + submissionPermalink(sub), strconv.Itoa(sub.Score)}); err != nil {
				return fmt.Errorf("failed to write csv row: %w", err)
			}
		}

		for _, c := range s.Commenters[name] {
			if err := cw.Write([]string{name, "comment", csvBaseURL + commentPermalink(c), strconv.Itoa(c.Score)}); err != nil {
				return fmt.Errorf("failed to write csv row: %w", err)
			}
		}
	}

	cw.Flush()

	return cw.Error()
}

// SaveCSV writes the CSV export to path.
func (s *Stats) SaveCSV(path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create csv file: %w", err)
	}

	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close csv file: %w", cerr)
		}
	}()

	if err := s.WriteCSV(f); err != nil {
		return err
	}

	s.logger.Info("saved csv", "path", path)

	return nil
}
