package permission

import (
	"fmt"
	"sync"
)

// RoleID identifies a role. It is embedded in access tokens.
type RoleID uint32

// Default roles. RoleAdmin keeps the historical "role id 1 is admin" mapping.
const (
	RoleAdmin RoleID = 1
	RoleUser  RoleID = 2
)

// Role is a named capability set.
type Role struct {
	ID           RoleID
	Name         string
	Capabilities Set
}

// RoleManager maps role ids to capability sets.
//
// RoleManager instances are intended to be configured during initialization and
// frozen before use; lookups are safe for concurrent use.
type RoleManager struct {
	registry *Registry

	mu     sync.RWMutex
	roles  map[RoleID]Role
	frozen bool
}

// NewRoleManager returns an empty RoleManager that resolves capability names
// through registry. A nil registry selects NewRegistry().
func NewRoleManager(registry *Registry) *RoleManager {
	if registry == nil {
		registry = NewRegistry()
	}
	return &RoleManager{
		registry: registry,
		roles:    make(map[RoleID]Role),
	}
}

// DefaultRoleManager returns a frozen RoleManager with RoleAdmin holding every
// capability and RoleUser holding none.
func DefaultRoleManager() *RoleManager {
	rm := NewRoleManager(nil)
	_ = rm.DefineSet(RoleAdmin, "admin", All)
	_ = rm.DefineSet(RoleUser, "user", 0)
	rm.Freeze()
	return rm
}

// Define registers a role whose capabilities are given by name.
func (rm *RoleManager) Define(id RoleID, name string, capabilityNames ...string) error {
	var set Set
	for _, capName := range capabilityNames {
		bit, ok := rm.registry.Lookup(capName)
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCapability, capName)
		}
		set = set.With(bit)
	}
	return rm.DefineSet(id, name, set)
}

// DefineSet registers a role with an explicit capability set.
func (rm *RoleManager) DefineSet(id RoleID, name string, set Set) error {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.frozen {
		return ErrFrozen
	}
	if id == 0 {
		return ErrInvalidRoleID
	}
	if name == "" {
		return ErrEmptyName
	}
	if _, exists := rm.roles[id]; exists {
		return fmt.Errorf("%w: role %d", ErrAlreadyRegistered, id)
	}

	rm.roles[id] = Role{ID: id, Name: name, Capabilities: set}
	return nil
}

// Role returns the role registered under id.
func (rm *RoleManager) Role(id RoleID) (Role, bool) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	role, ok := rm.roles[id]
	return role, ok
}

// Capabilities returns the capability set of id, or an empty set for unknown roles.
func (rm *RoleManager) Capabilities(id RoleID) Set {
	role, _ := rm.Role(id)
	return role.Capabilities
}

func (rm *RoleManager) Registry() *Registry { return rm.registry }

// Freeze prevents further role definitions and capability registrations.
func (rm *RoleManager) Freeze() {
	rm.mu.Lock()
	rm.frozen = true
	rm.mu.Unlock()
	rm.registry.Freeze()
}

func (rm *RoleManager) Count() int {
	rm.mu.RLock()
	defer rm.mu.RUnlock()
	return len(rm.roles)
}
