package permission

import "errors"

var (
	// ErrDenied is returned by Check when the subject does not satisfy the requirement.
	ErrDenied = errors.New("permission denied")

	ErrFrozen            = errors.New("permission: registry or role manager frozen")
	ErrEmptyName         = errors.New("permission: name cannot be empty")
	ErrAlreadyRegistered = errors.New("permission: already registered")
	ErrCapabilityLimit   = errors.New("permission: capability limit exceeded")
	ErrUnknownCapability = errors.New("permission: capability not registered")
	ErrUnknownRole       = errors.New("permission: role not registered")
	ErrInvalidRoleID     = errors.New("permission: role id must be positive")
)
