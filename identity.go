package graphom

import "github.com/google/uuid"

// IdentityGenerator produces identity values for objects saved without
// one.
type IdentityGenerator interface {
	NewID() any
}

// UUIDGenerator issues random (version 4) UUID strings. It is the
// store's default.
type UUIDGenerator struct{}

// NewID returns a fresh UUID string.
func (UUIDGenerator) NewID() any { return uuid.NewString() }
