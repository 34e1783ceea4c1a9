package diag

import (
	"fmt"
	"sort"
)

// Severity of a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue codes reported by table validation.
const (
	CodeInvalidSyntax    = "E001"
	CodeUnterminated     = "E002"
	CodeMissingSemicolon = "E003"
	CodeInvalidEscape    = "E004"
	CodeDuplicateKey     = "E005"
	CodeMissingKey       = "W001"
	CodePlaceholders     = "W002"
	CodeEmptyValue       = "W003"
	CodeUntranslated     = "W004"
	CodeStale            = "W005"
	CodeExtraKey         = "I001"
	CodeTodo             = "I002"
)

// Issue is one validation finding.
type Issue struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	File     string   `json:"file"`
	Line     int      `json:"line,omitempty"`
	Key      string   `json:"key,omitempty"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	loc := i.File
	if i.Line > 0 {
		loc = fmt.Sprintf("%s:%d", i.File, i.Line)
	}
	return fmt.Sprintf("%s %s: %s", i.Code, loc, i.Message)
}

// SortIssues orders issues by file, line, code, then key.
func SortIssues(issues []Issue) {
	sort.SliceStable(issues, func(a, b int) bool {
		x, y := issues[a], issues[b]
		if x.File != y.File {
			return x.File < y.File
		}
		if x.Line != y.Line {
			return x.Line < y.Line
		}
		if x.Code != y.Code {
			return x.Code < y.Code
		}
		return x.Key < y.Key
	})
}

// CountIssues returns (errors, warnings, infos).
func CountIssues(issues []Issue) (errs, warns, infos int) {
	for _, i := range issues {
		switch i.Severity {
		case SeverityError:
			errs++
		case SeverityWarning:
			warns++
		default:
			infos++
		}
	}
	return
}
