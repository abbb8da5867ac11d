// Package xerrors provides error handling for icsd.
//
// It re-exports github.com/cockroachdb/errors, giving every domain error in
// the engine stack traces, safe wrapping, and hint/detail annotations
// without every package needing its own import of the underlying library.
//
//	if err := eng.ResOnline(name); err != nil {
//	    return xerrors.Wrap(err, "res_online failed")
//	}
package xerrors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint        = crdb.WithHint
	WithHintf       = crdb.WithHintf
	WithDetail      = crdb.WithDetail
	WithDetailf     = crdb.WithDetailf
	WithSafeDetails = crdb.WithSafeDetails
)

// Error inspection
var (
	Is     = crdb.Is
	As     = crdb.As
	Unwrap = crdb.Unwrap
)

// Mark tags err as belonging to a sentinel domain for later Is() checks
// without changing its message.
var Mark = crdb.Mark

// Sentinel errors shared across packages. Components should wrap these
// rather than inventing ad-hoc string comparisons.
var (
	ErrNotFound          = crdb.New("not found")
	ErrAlreadyExists     = crdb.New("already exists")
	ErrCrossGroupLink    = crdb.New("parent and child belong to different groups")
	ErrCycle             = crdb.New("dependency link would introduce a cycle")
	ErrLimitExceeded     = crdb.New("limit exceeded")
	ErrGroupNotEmpty     = crdb.New("group is not empty")
	ErrNotEligibleNode   = crdb.New("node is not in the group's system list")
	ErrRemoteUnreachable = crdb.New("remote node unreachable")
	ErrInvalidAttrType   = crdb.New("invalid attribute type")
	ErrImmutable         = crdb.New("attribute is immutable at runtime")
)
