// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package reverts declares the business failures of the mesh contracts.
// A revert aborts the transaction of the entry point that returned it and,
// inside a packet receive, becomes the error ack sent back to the sender.
// Storage and codec failures are plain errors and never reverts.
package reverts

import (
	"errors"
)

// ErrRevert is a contract rule violated by the caller, e.g. staking more
// than the free lockup balance.
type ErrRevert struct {
	reason string
}

// New declares a revert sentinel. Callers add context with errors.Wrapf and
// match it with errors.Is.
func New(reason string) *ErrRevert {
	return &ErrRevert{reason: reason}
}

func (e *ErrRevert) Error() string {
	return e.reason
}

// IsRevertErr reports whether err, or any error it wraps, is a revert.
func IsRevertErr(err error) bool {
	var revert *ErrRevert
	return err != nil && errors.As(err, &revert)
}
