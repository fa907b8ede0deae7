package errors

import (
	"fmt"
	"strings"
)

// FormatForCLI formats an error for CLI output.
// Uses a concise format suitable for terminal display.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	ie, ok := err.(*IndexError)
	if !ok {
		// Wrap standard error
		ie = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder

	// Error message with code
	sb.WriteString(fmt.Sprintf("Error: %s\n", ie.Message))

	// Suggestion if available
	if ie.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("Suggestion: %s\n", ie.Suggestion))
	}

	sb.WriteString(fmt.Sprintf("[%s]", ie.Code))

	return sb.String()
}

// FormatForUser returns a user-friendly error message.
// If debug is true, includes the underlying cause chain.
func FormatForUser(err error, debug bool) string {
	if err == nil {
		return ""
	}

	ie, ok := err.(*IndexError)
	if !ok {
		return err.Error()
	}

	var sb strings.Builder

	sb.WriteString("Error: ")
	sb.WriteString(ie.Message)
	sb.WriteString("\n")

	if ie.Suggestion != "" {
		sb.WriteString("\nSuggestion: ")
		sb.WriteString(ie.Suggestion)
		sb.WriteString("\n")
	}

	if debug {
		if ie.Cause != nil {
			sb.WriteString(fmt.Sprintf("\nCause: %v\n", ie.Cause))
		}
		for k, v := range ie.Details {
			sb.WriteString(fmt.Sprintf("  %s: %s\n", k, v))
		}
	}

	sb.WriteString(fmt.Sprintf("\n[%s]", ie.Code))

	return sb.String()
}
