package scan

import "fmt"

const (
	// SeverityWarning marks an issue that does not lose any definition.
	SeverityWarning Severity = "warning"
	// SeverityError marks a skipped source or section.
	SeverityError Severity = "error"
)

// Diagnostic codes.
const (
	CodeSourceMissing     = "source_missing"
	CodeSourceUnreadable  = "source_unreadable"
	CodeSourceParseFailed = "source_parse_failed"
	CodeSectionNoBody     = "section_missing_body"
	CodeSectionNoName     = "section_missing_name"
	CodeSectionMalformed  = "section_malformed"
)

type (
	// Severity represents diagnostic severity.
	Severity string

	// Diagnostic reports a non-fatal scan issue. A scan never aborts; issues
	// are returned alongside the definitions that could be read.
	Diagnostic struct {
		Severity Severity
		// Code is a machine-readable identifier such as "section_missing_body".
		Code    string
		Message string
		// Path is the source file the issue belongs to.
		Path string
		// Section is the offending section name, if any.
		Section string
		Cause   error
	}
)

func (d Diagnostic) String() string {
	loc := d.Path
	if d.Section != "" {
		loc = fmt.Sprintf("%s [%s]", d.Path, d.Section)
	}
	return fmt.Sprintf("%s: %s: %s", d.Severity, loc, d.Message)
}
