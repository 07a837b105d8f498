package catalog

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/pdp-engine/go-core/internal/condition"
)

// Loader parses catalog files into validated snapshots. Guard conditions are
// compiled at load so malformed expressions are rejected before serving.
type Loader struct {
	conditions *condition.Engine
	logger     *zap.Logger
}

// NewLoader creates a catalog loader
func NewLoader(conditions *condition.Engine, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		conditions: conditions,
		logger:     logger,
	}
}

// LoadFile reads and validates a catalog YAML (or JSON) file
func (l *Loader) LoadFile(path string) (*Snapshot, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return l.Load(content)
}

// Load parses catalog bytes into a snapshot
func (l *Loader) Load(content []byte) (*Snapshot, error) {
	doc := &Document{}
	if err := yaml.Unmarshal(content, doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	snap, err := NewSnapshot(doc)
	if err != nil {
		return nil, fmt.Errorf("build catalog snapshot: %w", err)
	}

	if l.conditions != nil {
		for _, res := range snap.Resources {
			if res.Condition == "" {
				continue
			}
			if err := l.conditions.Compile(res.Condition); err != nil {
				return nil, fmt.Errorf("resource %q: %w", res.Name, err)
			}
		}
	}

	l.logger.Debug("Catalog loaded",
		zap.String("version", snap.Version),
		zap.Int("roles", len(snap.Roles)),
		zap.Int("resources", len(snap.Resources)),
	)
	return snap, nil
}
