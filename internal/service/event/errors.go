package event

import "fmt"

// InvalidDraftError reports user input that cannot be minted.
type InvalidDraftError struct {
	Reason string
}

func (e *InvalidDraftError) Error() string {
	return "invalid event draft: " + e.Reason
}

func invalid(format string, args ...any) error {
	return &InvalidDraftError{Reason: fmt.Sprintf(format, args...)}
}
