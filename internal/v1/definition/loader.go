package definition

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/playforge/gamehost/internal/v1/metrics"
)

// RoomOptions are the creation options a room is opened with. Definition
// carries the full document inline; otherwise DefinitionID names a document
// resolvable by the loader. Config is opaque per-room data; Load does not
// read it, and it is not passed on to the room. Guards and actions see under
// context.config only the config given to room.NewRoom.
type RoomOptions struct {
	ProjectID    string          `json:"projectId,omitempty"`
	DefinitionID string          `json:"definitionId,omitempty"`
	Version      string          `json:"version,omitempty"`
	Definition   json.RawMessage `json:"definition,omitempty"`
	Config       map[string]any  `json:"config,omitempty"`
}

// Loader resolves definitions from room options, a local directory, or a
// remote registry, in that order.
type Loader struct {
	dir      string
	registry *RegistryClient
}

// NewLoader builds a loader. dir may be empty (no local discovery);
// registry may be nil (no remote fallback).
func NewLoader(dir string, registry *RegistryClient) *Loader {
	return &Loader{dir: dir, registry: registry}
}

// Load resolves the definition for the given room options.
func (l *Loader) Load(ctx context.Context, opts RoomOptions) (*Definition, error) {
	if len(opts.Definition) > 0 {
		def, err := Parse(opts.Definition)
		l.observe("inline", err)
		if err != nil {
			return nil, err
		}
		return def, nil
	}

	if opts.DefinitionID == "" {
		return nil, fmt.Errorf("definition: room options name no definition")
	}
	if err := validateID(opts.DefinitionID); err != nil {
		return nil, err
	}

	if l.dir != "" {
		path := filepath.Join(l.dir, opts.DefinitionID+".json")
		raw, err := os.ReadFile(path)
		if err == nil {
			def, perr := Parse(raw)
			l.observe("file", perr)
			if perr != nil {
				return nil, perr
			}
			return def, nil
		}
		if !os.IsNotExist(err) {
			l.observe("file", err)
			return nil, fmt.Errorf("definition: read %s: %w", path, err)
		}
	}

	if l.registry != nil {
		def, err := l.registry.Fetch(ctx, opts.DefinitionID, opts.Version)
		l.observe("registry", err)
		return def, err
	}

	err := fmt.Errorf("definition %q not found", opts.DefinitionID)
	l.observe("file", err)
	return nil, err
}

func (l *Loader) observe(source string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.DefinitionLoads.WithLabelValues(source, status).Inc()
}

// validateID keeps definition ids path-safe before they touch the
// filesystem or a registry URL.
func validateID(id string) error {
	if strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return fmt.Errorf("definition: invalid id %q", id)
	}
	return nil
}
