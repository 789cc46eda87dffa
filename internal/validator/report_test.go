package validator

import (
	"bytes"
	"strings"
	"testing"
)

const validReport = "Subreddit Stats: golang (2024-06-01 00:00 UTC to 2024-06-14 00:00 UTC)\n\n" +
	"---\n### Basic Data\n\n" +
	"| Type | Total |\n" +
	"|:-----|------:|\n" +
	"| Submissions | 3 |\n" +
	"| Comments \\| replies | 0 |\n\n" +
	"Stats Marker: 1718323200"

func newValidator(t *testing.T, maxBody int) *ReportValidator {
	t.Helper()

	v, err := NewReportValidator("Subreddit Stats:", maxBody)
	if err != nil {
		t.Fatalf("NewReportValidator failed: %v", err)
	}

	return v
}

func TestNewReportValidator_InvalidLimit(t *testing.T) {
	if _, err := NewReportValidator("x", 0); err == nil {
		t.Fatal("Expected error for zero limit")
	}
}

func TestValidateReport_Valid(t *testing.T) {
	result := newValidator(t, 40000).ValidateReport(validReport)

	if !result.IsValid {
		var buf bytes.Buffer
		result.PrintErrors(&buf)
		t.Fatalf("Expected valid report, got:\n%s", buf.String())
	}

	if result.Stats.Sections != 1 || result.Stats.Tables != 1 || result.Stats.TableRows != 3 {
		t.Errorf("unexpected stats: %+v", result.Stats)
	}

	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
}

func TestValidateReport_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		maxBody int
		field   string
	}{
		{
			name:    "missing title separator",
			content: "just one line",
			maxBody: 100,
			field:   "title",
		},
		{
			name:    "body too large",
			content: validReport,
			maxBody: 10,
			field:   "body",
		},
		{
			name:    "missing marker",
			content: strings.Replace(validReport, "Stats Marker: 1718323200", "", 1),
			maxBody: 40000,
			field:   "marker",
		},
		{
			name:    "ragged table",
			content: strings.Replace(validReport, "| Submissions | 3 |", "| Submissions | 3 | extra |", 1),
			maxBody: 40000,
			field:   "table",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := newValidator(t, tt.maxBody).ValidateReport(tt.content)

			if result.IsValid {
				t.Fatal("Expected invalid report")
			}

			found := false

			for _, e := range result.Errors {
				if e.Field == tt.field {
					found = true
				}
			}

			if !found {
				t.Errorf("Expected a %q error, got %+v", tt.field, result.Errors)
			}
		})
	}
}

func TestValidateReport_RaggedTableLine(t *testing.T) {
	content := strings.Replace(validReport, "| Submissions | 3 |", "| Submissions |", 1)
	result := newValidator(t, 40000).ValidateReport(content)

	if len(result.Errors) != 1 {
		t.Fatalf("Expected 1 error, got %d", len(result.Errors))
	}

	// title, blank, "---", "### Basic Data", blank, header, separator, row
	if got := result.Errors[0].Line; got != 8 {
		t.Errorf("Line = %d, want 8", got)
	}
}

func TestValidateReport_TitleWarning(t *testing.T) {
	content := strings.Replace(validReport, "Subreddit Stats:", "Weekly stats:", 1)
	result := newValidator(t, 40000).ValidateReport(content)

	if !result.IsValid {
		t.Fatal("A title without the prefix is only a warning")
	}

	if len(result.Warnings) != 1 {
		t.Fatalf("Expected 1 warning, got %v", result.Warnings)
	}

	var buf bytes.Buffer
	result.PrintWarnings(&buf)

	if !strings.Contains(buf.String(), "Weekly") && !strings.Contains(buf.String(), "Subreddit Stats:") {
		t.Errorf("unexpected warning output %q", buf.String())
	}
}

func TestValidationResult_String(t *testing.T) {
	result := newValidator(t, 40000).ValidateReport(validReport)

	if got := result.String(); !strings.HasPrefix(got, "VALID | Body:") {
		t.Errorf("String() = %q", got)
	}
}
