package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeReport(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "report.md")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	return path
}

func TestProcessFile(t *testing.T) {
	const legacy = "Title\n\n| a | bb |\n|---|---|\n| ccc | d |\n\n^SRS Marker: 1700000000.0"

	tests := []struct {
		name        string
		content     string
		stamp       *time.Time
		wantChanged bool
		wantMarked  bool
		wantSuffix  string
	}{
		{
			name:        "legacy marker rewritten",
			content:     legacy,
			wantChanged: true,
			wantMarked:  true,
			wantSuffix:  "Stats Marker: 1700000000",
		},
		{
			name:        "formatted report unchanged",
			content:     "Title\n\nbody\n\nStats Marker: 1700000000",
			wantChanged: false,
			wantMarked:  true,
			wantSuffix:  "Stats Marker: 1700000000",
		},
		{
			name:        "generated footer unchanged",
			content:     "Title\n\nbody\n\n>Generated with srtools Subreddit Stats  \n[Previous Stats](/r/test/comments/p/)  \n\nStats Marker: 1700000000",
			wantChanged: false,
			wantMarked:  true,
			wantSuffix:  "Stats  \n[Previous Stats](/r/test/comments/p/)  \n\nStats Marker: 1700000000",
		},
		{
			name:        "missing marker left alone",
			content:     "Title\n\nbody",
			wantChanged: false,
			wantMarked:  false,
			wantSuffix:  "body",
		},
		{
			name:        "missing marker stamped",
			content:     "Title\n\nbody",
			stamp:       func() *time.Time { t := time.Unix(1600000000, 0).UTC(); return &t }(),
			wantChanged: true,
			wantMarked:  true,
			wantSuffix:  "body\n\nStats Marker: 1600000000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeReport(t, tt.content)

			changed, marked, err := processFile(path, true, tt.stamp)
			if err != nil {
				t.Fatalf("processFile() error = %v", err)
			}

			if changed != tt.wantChanged || marked != tt.wantMarked {
				t.Errorf("processFile() = (%v, %v), want (%v, %v)", changed, marked, tt.wantChanged, tt.wantMarked)
			}

			got, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}

			if !strings.HasSuffix(string(got), tt.wantSuffix) {
				t.Errorf("file = %q, want suffix %q", got, tt.wantSuffix)
			}
		})
	}
}

func TestProcessFile_DryRun(t *testing.T) {
	const content = "Title\n\n^SRS Marker: 1700000000"

	path := writeReport(t, content)

	changed, _, err := processFile(path, false, nil)
	if err != nil {
		t.Fatal(err)
	}

	if !changed {
		t.Error("expected a pending change")
	}

	got, _ := os.ReadFile(path)
	if string(got) != content {
		t.Errorf("dry run modified the file: %q", got)
	}
}
