package schema

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-sourceinfo/pkg/errors"
	jsonpool "github.com/ajitpratap0/nebula-sourceinfo/pkg/json"
)

// SchemaVersion represents a registered version of a schema
type SchemaVersion struct {
	Version       int               `json:"version"`
	Schema        *Schema           `json:"schema"`
	CreatedAt     time.Time         `json:"created_at"`
	Fingerprint   string            `json:"fingerprint"`
	Compatibility CompatibilityMode `json:"compatibility"`
}

// Registry tracks the versions of source schemas per subject and rejects
// changes that break the subject's compatibility mode
type Registry struct {
	schemas       map[string][]*SchemaVersion // subject -> versions
	compatibility map[string]CompatibilityMode
	defaultMode   CompatibilityMode
	mu            sync.RWMutex
	logger        *zap.Logger

	// Hooks for schema changes
	onSchemaChange []func(subject string, old, new *SchemaVersion)
}

// NewRegistry creates a new schema registry with BACKWARD as default mode
func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		schemas:       make(map[string][]*SchemaVersion),
		compatibility: make(map[string]CompatibilityMode),
		defaultMode:   CompatibilityBackward,
		logger:        logger.With(zap.String("component", "schema_registry")),
	}
}

// RegisterSchema registers s under subject. Registering an identical schema
// again returns the existing version.
func (r *Registry) RegisterSchema(ctx context.Context, subject string, s *Schema) (*SchemaVersion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	compatMode := r.getCompatibilityMode(subject)
	fingerprint := Fingerprint(s)

	for _, existing := range r.schemas[subject] {
		if existing.Fingerprint == fingerprint {
			r.logger.Debug("schema already registered",
				zap.String("subject", subject),
				zap.Int("version", existing.Version))
			return existing, nil
		}
	}

	versions := r.schemas[subject]
	if len(versions) > 0 {
		latest := versions[len(versions)-1]
		if err := CheckCompatibility(latest.Schema, s, compatMode); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConflict, "schema incompatible with mode "+string(compatMode)).
				WithDetail("subject", subject).
				WithDetail("latest_version", latest.Version)
		}
	}

	version := &SchemaVersion{
		Version:       len(versions) + 1,
		Schema:        s,
		CreatedAt:     time.Now().UTC(),
		Fingerprint:   fingerprint,
		Compatibility: compatMode,
	}
	r.schemas[subject] = append(versions, version)

	if len(versions) > 0 {
		previous := versions[len(versions)-1]
		for _, hook := range r.onSchemaChange {
			hook(subject, previous, version)
		}
	}

	r.logger.Info("schema registered",
		zap.String("subject", subject),
		zap.Int("version", version.Version),
		zap.String("fingerprint", version.Fingerprint))

	return version, nil
}

// GetSchema retrieves a specific schema version
func (r *Registry) GetSchema(subject string, version int) (*SchemaVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, exists := r.schemas[subject]
	if !exists || len(versions) == 0 {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "subject %s not found", subject)
	}

	if version <= 0 || version > len(versions) {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "version %d not found for subject %s", version, subject)
	}

	return versions[version-1], nil
}

// GetLatestSchema retrieves the latest schema version
func (r *Registry) GetLatestSchema(subject string) (*SchemaVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, exists := r.schemas[subject]
	if !exists || len(versions) == 0 {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "subject %s not found", subject)
	}

	return versions[len(versions)-1], nil
}

// GetSchemaHistory returns all versions of a subject
func (r *Registry) GetSchemaHistory(subject string) ([]*SchemaVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	versions, exists := r.schemas[subject]
	if !exists {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "subject %s not found", subject)
	}

	history := make([]*SchemaVersion, len(versions))
	copy(history, versions)
	return history, nil
}

// SetCompatibilityMode sets the compatibility mode for a subject
func (r *Registry) SetCompatibilityMode(subject string, mode CompatibilityMode) error {
	if !mode.IsValid() {
		return errors.Newf(errors.ErrorTypeConfig, "unknown compatibility mode %q", mode).
			WithDetail("subject", subject)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.compatibility[subject] = mode
	r.logger.Info("compatibility mode set",
		zap.String("subject", subject),
		zap.String("mode", string(mode)))
	return nil
}

// OnSchemaChange registers a callback invoked synchronously when a subject
// gains a new version. Callbacks run under the registry lock and must not
// call back into the registry.
func (r *Registry) OnSchemaChange(callback func(subject string, old, new *SchemaVersion)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onSchemaChange = append(r.onSchemaChange, callback)
}

type registryState struct {
	Schemas       map[string][]*SchemaVersion  `json:"schemas"`
	Compatibility map[string]CompatibilityMode `json:"compatibility"`
}

// Export exports the registry state
func (r *Registry) Export() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return jsonpool.MarshalIndent(registryState{
		Schemas:       r.schemas,
		Compatibility: r.compatibility,
	}, "", "  ")
}

// Import replaces the registry state with a previous Export
func (r *Registry) Import(data []byte) error {
	var state registryState
	if err := jsonpool.Unmarshal(data, &state); err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to unmarshal registry state")
	}
	if state.Schemas == nil {
		state.Schemas = make(map[string][]*SchemaVersion)
	}
	if state.Compatibility == nil {
		state.Compatibility = make(map[string]CompatibilityMode)
	}
	for subject, mode := range state.Compatibility {
		if !mode.IsValid() {
			return errors.Newf(errors.ErrorTypeData, "unknown compatibility mode %q", mode).
				WithDetail("subject", subject)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.schemas = state.Schemas
	r.compatibility = state.Compatibility
	return nil
}

func (r *Registry) getCompatibilityMode(subject string) CompatibilityMode {
	if mode, exists := r.compatibility[subject]; exists {
		return mode
	}
	return r.defaultMode
}

// Fingerprint hashes the schema name and its ordered field declarations.
// Field order is part of the contract, so reordering changes the fingerprint.
func Fingerprint(s *Schema) string {
	var b strings.Builder
	b.WriteString(s.name)
	for _, f := range s.fields {
		b.WriteByte(';')
		b.WriteString(f.String())
	}
	return strconv.FormatUint(xxhash.Sum64String(b.String()), 16)
}
