package sourceinfo

import (
	"strings"

	"github.com/ajitpratap0/nebula-sourceinfo/pkg/errors"
)

// SnapshotState is the connector's position within its initial snapshot
type SnapshotState int

const (
	// SnapshotNone means no snapshot is running; events come from the change log
	SnapshotNone SnapshotState = iota
	// SnapshotInProgress marks events read by a running snapshot
	SnapshotInProgress
	// SnapshotLast marks the final event of a snapshot
	SnapshotLast
	// SnapshotCompleted means the snapshot finished and streaming resumed
	SnapshotCompleted
)

var snapshotStateNames = [...]string{
	SnapshotNone:       "NONE",
	SnapshotInProgress: "IN_PROGRESS",
	SnapshotLast:       "LAST",
	SnapshotCompleted:  "COMPLETED",
}

// String returns the upper-case state name
func (s SnapshotState) String() string {
	if s < 0 || int(s) >= len(snapshotStateNames) {
		return "UNKNOWN"
	}
	return snapshotStateNames[s]
}

// IsLast reports whether the event closes the snapshot
func (s SnapshotState) IsLast() bool {
	return s == SnapshotLast
}

// InEffect reports whether the event was read by the snapshot
func (s SnapshotState) InEffect() bool {
	return s == SnapshotInProgress || s == SnapshotLast
}

// ParseSnapshotState parses a state name, case-insensitively. The empty
// string parses as NONE.
func ParseSnapshotState(name string) (SnapshotState, error) {
	if name == "" {
		return SnapshotNone, nil
	}
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range snapshotStateNames {
		if n == upper {
			return SnapshotState(i), nil
		}
	}
	return SnapshotNone, errors.Newf(errors.ErrorTypeData, "unknown snapshot state %q", name)
}

// MarshalText implements encoding.TextMarshaler
func (s SnapshotState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *SnapshotState) UnmarshalText(text []byte) error {
	parsed, err := ParseSnapshotState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
