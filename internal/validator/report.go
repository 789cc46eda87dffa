// Package validator checks saved report files before they are posted by hand.
package validator

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"srtools/pkg/marker"
)

// ErrInvalidLimit is returned for a non-positive body size limit.
var ErrInvalidLimit = errors.New("max body size must be positive")

// ValidationError represents a validation error with context.
type ValidationError struct {
	Field   string
	Value   string
	Message string
	Line    int
	Column  int
}

// ValidationResult contains validation results.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []string
	Stats    ValidationStats
	IsValid  bool
}

// ValidationStats counts what was found in the report.
type ValidationStats struct {
	BodyBytes int
	Sections  int
	Tables    int
	TableRows int
}

// ReportValidator validates a saved report: the title line, a blank line,
// then the body that would have been submitted.
type ReportValidator struct {
	titlePrefix string
	maxBodySize int
}

// NewReportValidator creates a validator for bodies of at most maxBodySize
// bytes whose title starts with titlePrefix.
func NewReportValidator(titlePrefix string, maxBodySize int) (*ReportValidator, error) {
	if maxBodySize <= 0 {
		return nil, ErrInvalidLimit
	}

	return &ReportValidator{titlePrefix: titlePrefix, maxBodySize: maxBodySize}, nil
}

// ValidateReport validates content.
func (v *ReportValidator) ValidateReport(content string) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	title, body, found := strings.Cut(content, "\n\n")
	if !found || strings.TrimSpace(title) == "" {
		result.addError(ValidationError{Line: 1, Field: "title", Message: "report must start with a title line followed by a blank line"})

		return result
	}

	if strings.Contains(title, "\n") {
		result.addError(ValidationError{Line: 1, Field: "title", Value: title, Message: "title must be a single line"})
	}

	if v.titlePrefix != "" && !strings.HasPrefix(title, v.titlePrefix) {
		result.Warnings = append(result.Warnings, fmt.Sprintf("title does not start with %q", v.titlePrefix))
	}

	result.Stats.BodyBytes = len(body)
	if len(body) > v.maxBodySize {
		result.addError(ValidationError{
			Field:   "body",
			Message: fmt.Sprintf("body is %d bytes, the limit is %d", len(body), v.maxBodySize),
		})
	}

	if _, err := marker.Extract(body); err != nil {
		result.addError(ValidationError{Field: "marker", Message: err.Error()})
	}

	// title line and the blank line precede the body
	v.validateTables(body, 2, result)

	return result
}

func (v *ReportValidator) validateTables(body string, offset int, result *ValidationResult) {
	columns := 0

	for i, line := range strings.Split(body, "\n") {
		lineNum := i + 1 + offset
		trimmed := strings.TrimSpace(line)

		if strings.HasPrefix(trimmed, "### ") {
			result.Stats.Sections++
		}

		if !strings.HasPrefix(trimmed, "|") || !strings.HasSuffix(trimmed, "|") || len(trimmed) < 2 {
			columns = 0
			continue
		}

		cells := countCells(trimmed)

		if columns == 0 {
			columns = cells
			result.Stats.Tables++

			continue
		}

		result.Stats.TableRows++

		if cells != columns {
			result.addError(ValidationError{
				Line:    lineNum,
				Column:  1,
				Field:   "table",
				Value:   trimmed,
				Message: fmt.Sprintf("expected %d cells, got %d", columns, cells),
			})
		}
	}
}

// countCells counts the cells of a pipe table row, ignoring escaped pipes.
func countCells(row string) int {
	row = strings.ReplaceAll(row, `\|`, "")

	return strings.Count(row, "|") - 1
}

func (r *ValidationResult) addError(e ValidationError) {
	r.IsValid = false
	r.Errors = append(r.Errors, e)
}

// String returns string representation of validation result.
func (r *ValidationResult) String() string {
	status := "VALID"
	if !r.IsValid {
		status = "INVALID"
	}

	return fmt.Sprintf(
		"%s | Body: %d bytes | Sections: %d | Tables: %d | Rows: %d | Warnings: %d",
		status,
		r.Stats.BodyBytes,
		r.Stats.Sections,
		r.Stats.Tables,
		r.Stats.TableRows,
		len(r.Warnings),
	)
}

// PrintErrors writes validation errors in readable format.
func (r *ValidationResult) PrintErrors(w io.Writer) {
	if len(r.Errors) == 0 {
		return
	}

	fmt.Fprintln(w, "Validation errors:")

	for _, err := range r.Errors {
		if err.Line > 0 {
			fmt.Fprintf(w, "  Line %d", err.Line)

			if err.Column > 0 {
				fmt.Fprintf(w, ", Col %d", err.Column)
			}

			if err.Field != "" {
				fmt.Fprintf(w, " [%s]", err.Field)
			}

			fmt.Fprintf(w, ": %s\n", err.Message)

			if err.Value != "" {
				fmt.Fprintf(w, "    Found: %q\n", err.Value)
			}
		} else {
			fmt.Fprintf(w, "  [%s] %s\n", err.Field, err.Message)
		}
	}
}

// PrintWarnings writes validation warnings.
func (r *ValidationResult) PrintWarnings(w io.Writer) {
	if len(r.Warnings) == 0 {
		return
	}

	fmt.Fprintln(w, "Validation warnings:")

	for _, warn := range r.Warnings {
		fmt.Fprintf(w, "  %s\n", warn)
	}
}
