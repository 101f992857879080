package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound marks a missing input file or repository object.
	ErrNotFound = errors.New("not found")
	// ErrExhausted marks a conversion that failed every allowed attempt.
	ErrExhausted = errors.New("attempts exhausted")
	// ErrExternalTool marks a non-retried failure of an external command.
	ErrExternalTool = errors.New("external tool error")
	// ErrConfiguration marks unusable configuration detected at startup.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransient marks a failure worth retrying within the attempt budget.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
