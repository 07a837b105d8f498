// Package catalog provides the role/permission catalog snapshot consumed by
// the evaluation pipeline. The snapshot is read-mostly and refreshed
// out-of-band so the decision hot path never does catalog I/O.
package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// RoleDefinition maps a role code to its numeric privilege level
type RoleDefinition struct {
	Code  string `yaml:"code" json:"code"`
	Level int    `yaml:"level" json:"level"`
}

// PermissionDefinition ties a permission code to a (resource, action) pair
type PermissionDefinition struct {
	Code     string `yaml:"code" json:"code"`
	Resource string `yaml:"resource" json:"resource"`
	Action   string `yaml:"action" json:"action"`
	Category string `yaml:"category,omitempty" json:"category,omitempty"`
	MinLevel int    `yaml:"minLevel,omitempty" json:"minLevel,omitempty"`
}

// ResourceDefinition describes a protected resource: the permission codes
// registered for it, the subject categories allowed to hold them, and an
// optional guard condition evaluated in the resource-policy stage.
type ResourceDefinition struct {
	Name              string   `yaml:"name" json:"name"`
	Permissions       []string `yaml:"permissions" json:"permissions"`
	AllowedCategories []string `yaml:"allowedCategories" json:"allowedCategories"`
	Condition         string   `yaml:"condition,omitempty" json:"condition,omitempty"`
}

// Snapshot is one immutable version of the catalog. Built once at load,
// shared by all concurrent evaluations, replaced wholesale on reload.
type Snapshot struct {
	Version   string
	Roles     map[string]*RoleDefinition
	Resources map[string]*ResourceDefinition

	// permission code by "resource:action", built at construction
	actionIndex map[string]string
}

// Document is the wire shape of a catalog file
type Document struct {
	Version     string                  `yaml:"version" json:"version"`
	Roles       []*RoleDefinition       `yaml:"roles" json:"roles"`
	Permissions []*PermissionDefinition `yaml:"permissions" json:"permissions"`
	Resources   []*ResourceDefinition   `yaml:"resources" json:"resources"`
}

// NewSnapshot validates a catalog document and builds the indexed snapshot.
// When the document carries no version, a content hash is used so any change
// yields a new version (and therefore new cache fingerprints).
func NewSnapshot(doc *Document) (*Snapshot, error) {
	if doc == nil {
		return nil, fmt.Errorf("catalog document is nil")
	}

	snap := &Snapshot{
		Version:     doc.Version,
		Roles:       make(map[string]*RoleDefinition, len(doc.Roles)),
		Resources:   make(map[string]*ResourceDefinition, len(doc.Resources)),
		actionIndex: make(map[string]string, len(doc.Permissions)),
	}

	for _, role := range doc.Roles {
		if role.Code == "" {
			return nil, fmt.Errorf("role with empty code")
		}
		if _, dup := snap.Roles[role.Code]; dup {
			return nil, fmt.Errorf("duplicate role code %q", role.Code)
		}
		snap.Roles[role.Code] = role
	}

	knownPermissions := make(map[string]bool, len(doc.Permissions))
	for _, perm := range doc.Permissions {
		if perm.Code == "" || perm.Resource == "" || perm.Action == "" {
			return nil, fmt.Errorf("permission %q must have code, resource, and action", perm.Code)
		}
		key := actionKey(perm.Resource, perm.Action)
		if _, dup := snap.actionIndex[key]; dup {
			return nil, fmt.Errorf("duplicate permission mapping for %s", key)
		}
		snap.actionIndex[key] = perm.Code
		knownPermissions[perm.Code] = true
	}

	for _, res := range doc.Resources {
		if res.Name == "" {
			return nil, fmt.Errorf("resource with empty name")
		}
		if _, dup := snap.Resources[res.Name]; dup {
			return nil, fmt.Errorf("duplicate resource %q", res.Name)
		}
		// Resource permission lists must reference registered codes; silent
		// string mismatches are exactly what the closed table exists to stop.
		for _, code := range res.Permissions {
			if !knownPermissions[code] {
				return nil, fmt.Errorf("resource %q references unknown permission %q", res.Name, code)
			}
		}
		snap.Resources[res.Name] = res
	}

	if snap.Version == "" {
		snap.Version = contentHash(doc)
	}
	return snap, nil
}

// PermissionFor returns the exact permission code for a (resource, action) pair
func (s *Snapshot) PermissionFor(resource, action string) (string, bool) {
	code, ok := s.actionIndex[actionKey(resource, action)]
	return code, ok
}

// RoleLevels returns the role code to level table for the hierarchy resolver
func (s *Snapshot) RoleLevels() map[string]int {
	levels := make(map[string]int, len(s.Roles))
	for code, role := range s.Roles {
		levels[code] = role.Level
	}
	return levels
}

func actionKey(resource, action string) string {
	return resource + ":" + action
}

// contentHash derives a deterministic version from document contents
func contentHash(doc *Document) string {
	var parts []string
	for _, r := range doc.Roles {
		parts = append(parts, fmt.Sprintf("role/%s/%d", r.Code, r.Level))
	}
	for _, p := range doc.Permissions {
		parts = append(parts, fmt.Sprintf("perm/%s/%s/%s/%s/%d", p.Code, p.Resource, p.Action, p.Category, p.MinLevel))
	}
	for _, r := range doc.Resources {
		parts = append(parts, fmt.Sprintf("res/%s/%s/%s/%s", r.Name,
			strings.Join(r.Permissions, ","), strings.Join(r.AllowedCategories, ","), r.Condition))
	}
	sort.Strings(parts)

	hash := sha256.Sum256([]byte(strings.Join(parts, ";")))
	return hex.EncodeToString(hash[:8])
}
