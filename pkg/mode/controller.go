// Package mode enforces the Storage Element operation matrix against the
// mode fixed at process startup (§4.8). Mode itself never changes at
// runtime; Controller only decides whether a given operation is currently
// permitted.
package mode

import (
	"github.com/BigKAA/artStore-sub005/pkg/apperr"
	"github.com/BigKAA/artStore-sub005/pkg/model"
)

// Operation is one of the five actions gated by the mode matrix (§4.8).
type Operation string

const (
	OpCreate  Operation = "create"
	OpRead    Operation = "read"
	OpUpdate  Operation = "update"
	OpDelete  Operation = "delete"
	OpRestore Operation = "restore"
)

// Permission describes how an operation is permitted in a given mode: not
// at all, unconditionally, only for an admin-role service account
// (rw-mode delete), or metadata-only (ar-mode read).
type Permission int

const (
	Denied Permission = iota
	Allowed
	AdminOnly
	MetadataOnly
	Queued
)

// matrix mirrors §4.8's table exactly.
var matrix = map[model.Mode]map[Operation]Permission{
	model.ModeEdit: {
		OpCreate: Allowed, OpRead: Allowed, OpUpdate: Allowed, OpDelete: Allowed, OpRestore: Denied,
	},
	model.ModeRW: {
		OpCreate: Allowed, OpRead: Allowed, OpUpdate: Allowed, OpDelete: AdminOnly, OpRestore: Denied,
	},
	model.ModeRO: {
		OpCreate: Denied, OpRead: Allowed, OpUpdate: Denied, OpDelete: Denied, OpRestore: Denied,
	},
	model.ModeAR: {
		OpCreate: Denied, OpRead: MetadataOnly, OpUpdate: Denied, OpDelete: Denied, OpRestore: Queued,
	},
}

// Controller gates operations against the SE's fixed mode.
type Controller struct {
	mode model.Mode
}

// NewController validates mode and returns a Controller bound to it.
func NewController(m model.Mode) (*Controller, error) {
	if !m.Valid() {
		return nil, apperr.New(apperr.InvalidTransition, "unrecognized storage element mode")
	}
	return &Controller{mode: m}, nil
}

// Mode returns the SE's fixed operating mode.
func (c *Controller) Mode() model.Mode { return c.mode }

// Permission returns how op is permitted in the bound mode.
func (c *Controller) Permission(op Operation) Permission {
	return matrix[c.mode][op]
}

// Allow returns apperr.ModeDenied unless op is at least Allowed (or
// AdminOnly/MetadataOnly/Queued, which callers must additionally check
// via Permission for the caller-role/ticket nuance). isAdminServiceAccount
// is only consulted for rw-mode delete, where §4.8 grants the operation
// exclusively to an ADMIN-role service account.
func (c *Controller) Allow(op Operation, isAdminServiceAccount bool) error {
	switch c.Permission(op) {
	case Allowed:
		return nil
	case AdminOnly:
		if isAdminServiceAccount {
			return nil
		}
		return apperr.New(apperr.ModeDenied, "operation requires an admin-role service account in rw mode")
	case MetadataOnly:
		if op == OpRead {
			return nil
		}
		return apperr.New(apperr.ModeDenied, "archived storage elements serve metadata reads only")
	case Queued:
		return nil
	default:
		return apperr.New(apperr.ModeDenied, "operation not permitted in current mode")
	}
}

// ValidateStartupTransition checks the configured mode against the
// previously persisted mode, failing loudly if someone configured an
// illegal jump (§4.8: "any other direction is a configuration error and
// must be surfaced at startup").
func ValidateStartupTransition(previous, configured model.Mode) error {
	if !model.ValidTransition(previous, configured) {
		return apperr.New(apperr.InvalidTransition, "illegal mode transition since last startup: "+string(previous)+" -> "+string(configured))
	}
	return nil
}
