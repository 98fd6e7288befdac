package entity

import "fmt"

// LinkStatus is the check state of a LinkRecord. The zero value is StatusUnchecked.
type LinkStatus int

const (
	StatusUnchecked LinkStatus = iota
	StatusOk
	StatusBroken
)

func (s LinkStatus) String() string {
	switch s {
	case StatusOk:
		return "ok"
	case StatusBroken:
		return "broken"
	default:
		return "unchecked"
	}
}

// MarshalText lets LinkStatus render as its name in JSON.
func (s LinkStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseLinkStatus is the inverse of String.
func ParseLinkStatus(s string) (LinkStatus, error) {
	switch s {
	case "", "unchecked":
		return StatusUnchecked, nil
	case "ok":
		return StatusOk, nil
	case "broken":
		return StatusBroken, nil
	}
	return StatusUnchecked, fmt.Errorf("unknown link status %q", s)
}

// LinkRecord mirrors the `link_report` PostgreSQL table schema.
// One row per URL found inside one tracked entity field.
type LinkRecord struct {
	ID          int64      `json:"id"`
	EntityType  string     `json:"entity"`
	EntityField string     `json:"entity_field"`
	EntityID    int64      `json:"entity_id"`
	Alias       string     `json:"alias"`
	URL         string     `json:"url"`
	Status      LinkStatus `json:"status"`
	Reason      *string    `json:"reason,omitempty"`
}

// CheckResult is the outcome of a single URL liveness check.
type CheckResult struct {
	Status LinkStatus
	Reason string
}
