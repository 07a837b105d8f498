// Package hierarchy maps role codes to privilege levels
package hierarchy

import (
	"sync"
)

// Resolver answers role-level questions from a snapshot of the role catalog.
// The level table and the super-user code are configuration, replaced wholesale
// when the catalog reloads.
type Resolver struct {
	mu            sync.RWMutex
	levels        map[string]int
	superUserRole string
}

// NewResolver creates a resolver with the given level table and super-user code
func NewResolver(levels map[string]int, superUserRole string) *Resolver {
	r := &Resolver{superUserRole: superUserRole}
	r.Replace(levels)
	return r
}

// Replace swaps the level table for a fresh catalog snapshot
func (r *Resolver) Replace(levels map[string]int) {
	copied := make(map[string]int, len(levels))
	for code, level := range levels {
		copied[code] = level
	}

	r.mu.Lock()
	r.levels = copied
	r.mu.Unlock()
}

// IsSuperUser reports whether any of the roles is the designated top-level code
func (r *Resolver) IsSuperUser(roles []string) bool {
	r.mu.RLock()
	super := r.superUserRole
	r.mu.RUnlock()

	if super == "" {
		return false
	}
	for _, role := range roles {
		if role == super {
			return true
		}
	}
	return false
}

// HighestLevel returns the max numeric level across the roles, 0 if none resolve
func (r *Resolver) HighestLevel(roles []string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	highest := 0
	for _, role := range roles {
		if level, ok := r.levels[role]; ok && level > highest {
			highest = level
		}
	}
	return highest
}

// Level returns the numeric level for a single role code
func (r *Resolver) Level(role string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	level, ok := r.levels[role]
	return level, ok
}

// SuperUserRole returns the designated super-user role code
func (r *Resolver) SuperUserRole() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.superUserRole
}
