package schema

import (
	"fmt"
	"strings"
)

// ValidationSeverity separates issues that block a script from advisory ones.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue points at one template field, e.g. "phases[3].steps[4].disagreement".
type ValidationIssue struct {
	Path     string             `json:"path"`
	Code     string             `json:"code"`
	Message  string             `json:"message"`
	Severity ValidationSeverity `json:"severity"`
}

func (i ValidationIssue) String() string {
	if i.Severity == SeverityWarning {
		return fmt.Sprintf("warning %s: %s", i.Path, i.Message)
	}
	return fmt.Sprintf("error   %s: %s (%s)", i.Path, i.Message, i.Code)
}

// ValidationResult collects the issues found in one script.
// Warnings never make a script unplayable.
type ValidationResult struct {
	Script   string            `json:"script,omitempty"`
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

func (r *ValidationResult) AddError(path, code, message string) {
	r.add(SeverityError, path, code, message)
}

func (r *ValidationResult) AddWarning(path, code, message string) {
	r.add(SeverityWarning, path, code, message)
}

func (r *ValidationResult) add(severity ValidationSeverity, path, code, message string) {
	issue := ValidationIssue{Path: path, Code: code, Message: message, Severity: severity}
	if severity == SeverityWarning {
		r.Warnings = append(r.Warnings, issue)
		return
	}
	r.Errors = append(r.Errors, issue)
}

// Merge appends the issues of other. The script name is kept unless unset.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	if r.Script == "" {
		r.Script = other.Script
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// Report renders warnings first, then errors, one per line.
func (r *ValidationResult) Report() string {
	var b strings.Builder
	for _, issue := range r.Warnings {
		b.WriteString(issue.String())
		b.WriteByte('\n')
	}
	for _, issue := range r.Errors {
		b.WriteString(issue.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// ToError returns nil for a playable script, otherwise a VALIDATION_ERROR
// whose details carry every issue.
func (r *ValidationResult) ToError() error {
	if r.Valid() {
		return nil
	}

	var msg string
	switch {
	case len(r.Errors) == 1:
		msg = r.Errors[0].Message
	case r.Script != "":
		msg = fmt.Sprintf("script %q has %d errors", r.Script, len(r.Errors))
	default:
		msg = fmt.Sprintf("script has %d errors", len(r.Errors))
	}

	paths := make([]string, 0, len(r.Errors))
	for _, issue := range r.Errors {
		paths = append(paths, issue.Path)
	}

	return NewError(ErrCodeValidation, msg).
		WithDetails(map[string]any{
			"script":        r.Script,
			"error_count":   len(r.Errors),
			"warning_count": len(r.Warnings),
			"paths":         paths,
			"errors":        r.Errors,
			"warnings":      r.Warnings,
		})
}
