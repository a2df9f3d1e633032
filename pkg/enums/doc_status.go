package enums

import "fmt"

// DocStatus maps to the doc_status enum in Postgres. Transitions are one-way:
// draft -> submitted -> cancelled.
type DocStatus string

const (
	DocStatusDraft     DocStatus = "draft"
	DocStatusSubmitted DocStatus = "submitted"
	DocStatusCancelled DocStatus = "cancelled"
)

var validDocStatuses = []DocStatus{
	DocStatusDraft,
	DocStatusSubmitted,
	DocStatusCancelled,
}

// IsValid reports whether the value matches the canonical doc status enum.
func (s DocStatus) IsValid() bool {
	for _, candidate := range validDocStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving to next.
func (s DocStatus) CanTransitionTo(next DocStatus) bool {
	switch s {
	case DocStatusDraft:
		return next == DocStatusSubmitted
	case DocStatusSubmitted:
		return next == DocStatusCancelled
	default:
		return false
	}
}

// ParseDocStatus converts raw input into DocStatus.
func ParseDocStatus(value string) (DocStatus, error) {
	for _, candidate := range validDocStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid document status %q", value)
}
