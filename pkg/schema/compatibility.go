package schema

import (
	"strings"

	"github.com/ajitpratap0/nebula-sourceinfo/pkg/errors"
)

// CompatibilityMode defines how schema changes are validated
type CompatibilityMode string

const (
	// CompatibilityNone allows any schema change
	CompatibilityNone CompatibilityMode = "NONE"
	// CompatibilityBackward ensures new schema can read old data
	CompatibilityBackward CompatibilityMode = "BACKWARD"
	// CompatibilityForward ensures old schema can read new data
	CompatibilityForward CompatibilityMode = "FORWARD"
	// CompatibilityFull ensures bidirectional compatibility
	CompatibilityFull CompatibilityMode = "FULL"
)

// ParseCompatibilityMode parses a mode name, ignoring case
func ParseCompatibilityMode(name string) (CompatibilityMode, error) {
	mode := CompatibilityMode(strings.ToUpper(strings.TrimSpace(name)))
	if !mode.IsValid() {
		return "", errors.Newf(errors.ErrorTypeConfig, "unknown compatibility mode %q", name).
			WithDetail("supported", []CompatibilityMode{
				CompatibilityNone, CompatibilityBackward, CompatibilityForward, CompatibilityFull,
			})
	}
	return mode, nil
}

// IsValid reports whether m is one of the defined modes
func (m CompatibilityMode) IsValid() bool {
	switch m {
	case CompatibilityNone, CompatibilityBackward, CompatibilityForward, CompatibilityFull:
		return true
	}
	return false
}

// CheckCompatibility validates a change from old to new under mode
func CheckCompatibility(old, new *Schema, mode CompatibilityMode) error {
	switch mode {
	case CompatibilityNone:
		return nil
	case CompatibilityBackward:
		return checkBackward(old, new)
	case CompatibilityForward:
		return checkForward(old, new)
	case CompatibilityFull:
		if err := checkBackward(old, new); err != nil {
			return err
		}
		return checkForward(old, new)
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown compatibility mode: %s", mode)
	}
}

// checkBackward: readers using new must understand records written with old.
// New mandatory fields cannot appear, and shared fields may only widen.
func checkBackward(old, new *Schema) error {
	for _, nf := range new.fields {
		of, exists := old.Field(nf.Name)
		if !exists {
			if !nf.Optional {
				return conflict(new, "cannot add mandatory field %q", nf.Name)
			}
			continue
		}
		if !canPromote(of.Type, nf.Type) {
			return conflict(new, "incompatible type change for field %q: %s -> %s", nf.Name, of.Type, nf.Type)
		}
		if of.Optional && !nf.Optional {
			return conflict(new, "field %q cannot become mandatory", nf.Name)
		}
	}
	return nil
}

// checkForward: readers still using old must understand records written with new.
// Old mandatory fields cannot disappear.
func checkForward(old, new *Schema) error {
	for _, of := range old.fields {
		nf, exists := new.Field(of.Name)
		if !exists {
			if !of.Optional {
				return conflict(new, "cannot remove mandatory field %q", of.Name)
			}
			continue
		}
		if !canPromote(nf.Type, of.Type) {
			return conflict(new, "incompatible type change for field %q: %s -> %s", of.Name, of.Type, nf.Type)
		}
		if nf.Optional && !of.Optional {
			return conflict(new, "mandatory field %q cannot become optional", of.Name)
		}
	}
	return nil
}

// canPromote reports whether values written as from can be read as to
func canPromote(from, to Type) bool {
	if from == to {
		return true
	}
	switch from {
	case TypeInt8:
		return to == TypeInt16 || to == TypeInt32 || to == TypeInt64
	case TypeInt16:
		return to == TypeInt32 || to == TypeInt64
	case TypeInt32:
		return to == TypeInt64
	case TypeFloat32:
		return to == TypeFloat64
	}
	return false
}

func conflict(s *Schema, format string, args ...interface{}) error {
	return errors.Newf(errors.ErrorTypeConflict, format, args...).WithDetail("schema", s.Name())
}
