package catalog

import (
	"github.com/pdp-engine/go-core/pkg/types"
)

// Resolver answers permission catalog questions against the current snapshot
type Resolver struct {
	store *Store
}

// NewResolver creates a catalog resolver backed by the store
func NewResolver(store *Store) *Resolver {
	return &Resolver{store: store}
}

// PermissionsForResource returns the resource definition: its registered
// permission codes and the subject categories allowed to hold them.
func (r *Resolver) PermissionsForResource(resource string) (*ResourceDefinition, bool) {
	snap := r.store.Snapshot()
	if snap == nil {
		return nil, false
	}
	def, ok := snap.Resources[resource]
	return def, ok
}

// PermissionFor returns the exact permission code for a (resource, action) pair
func (r *Resolver) PermissionFor(resource, action string) (string, bool) {
	snap := r.store.Snapshot()
	if snap == nil {
		return "", false
	}
	return snap.PermissionFor(resource, action)
}

// HasAny reports whether any candidate code is held by the subject,
// treating the wildcard as satisfying any candidate.
func (r *Resolver) HasAny(subjectCodes, candidateCodes []string) bool {
	if len(candidateCodes) == 0 {
		return false
	}
	held := make(map[string]bool, len(subjectCodes))
	for _, code := range subjectCodes {
		if code == types.WildcardPermission {
			return true
		}
		held[code] = true
	}
	for _, candidate := range candidateCodes {
		if held[candidate] {
			return true
		}
	}
	return false
}

// CategoryAllowed reports whether a subject category may access the resource.
// An empty allow-list means the resource is open to all categories.
func (r *Resolver) CategoryAllowed(def *ResourceDefinition, category string) bool {
	if len(def.AllowedCategories) == 0 {
		return true
	}
	for _, allowed := range def.AllowedCategories {
		if allowed == category {
			return true
		}
	}
	return false
}

// Version returns the current catalog snapshot version
func (r *Resolver) Version() string {
	return r.store.Version()
}
