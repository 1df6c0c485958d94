package permission

// Subject is the authenticated caller as seen by the gate.
type Subject struct {
	UserID       string
	IsAdmin      bool
	Capabilities Set
}

type requirementKind uint8

const (
	kindAuthenticated requirementKind = iota
	kindAdmin
	kindCapability
	kindOwnerOrAdmin
)

// Requirement describes what a protected operation demands of its caller.
// Build one with RequireAuthenticated, RequireAdmin, RequireCapability or OwnerOrAdmin.
type Requirement struct {
	kind       requirementKind
	capability Capability
	ownerID    string
}

// RequireAuthenticated is satisfied by any subject with a user id.
func RequireAuthenticated() Requirement { return Requirement{kind: kindAuthenticated} }

// RequireAdmin is satisfied only by admin subjects.
func RequireAdmin() Requirement { return Requirement{kind: kindAdmin} }

// RequireCapability is satisfied by subjects holding c. Admins hold every capability.
func RequireCapability(c Capability) Requirement {
	return Requirement{kind: kindCapability, capability: c}
}

// OwnerOrAdmin is satisfied when the subject owns the resource or is an admin.
// An empty ownerID never matches.
func OwnerOrAdmin(ownerID string) Requirement {
	return Requirement{kind: kindOwnerOrAdmin, ownerID: ownerID}
}

// Allows reports whether s satisfies r.
func (r Requirement) Allows(s Subject) bool {
	if s.UserID == "" {
		return false
	}
	admin := s.IsAdmin || s.Capabilities.IsAdmin()

	switch r.kind {
	case kindAuthenticated:
		return true
	case kindAdmin:
		return admin
	case kindCapability:
		return admin || s.Capabilities.Has(r.capability)
	case kindOwnerOrAdmin:
		return admin || (r.ownerID != "" && s.UserID == r.ownerID)
	default:
		return false
	}
}

// Check returns ErrDenied unless s satisfies r. Every protected operation goes
// through Check so the decision is made the same way everywhere.
func Check(s Subject, r Requirement) error {
	if !r.Allows(s) {
		return ErrDenied
	}
	return nil
}
