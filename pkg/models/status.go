package models

import (
	"fmt"
	"strings"
)

// Status selects records by resolution state.
type Status string

const (
	StatusAll        Status = "all"
	StatusResolved   Status = "resolved"
	StatusUnresolved Status = "unresolved"
)

// ParseStatus accepts the lower- or upper-case name of a Status. An empty string means StatusAll.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case "", StatusAll:
		return StatusAll, nil
	case StatusResolved:
		return StatusResolved, nil
	case StatusUnresolved:
		return StatusUnresolved, nil
	default:
		return "", fmt.Errorf("%w: status must be one of all, resolved, unresolved; got %q", ErrInvalidArgument, s)
	}
}
