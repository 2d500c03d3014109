// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package fpath locates the data dir of meshd and the files in it.
package fpath

import (
	"os"
	"os/user"

	"github.com/pkg/errors"
)

// HomeDir returns the home dir of the current user, falling back to the
// working dir. The default data dir lives under it.
func HomeDir() (string, error) {
	if home := os.Getenv("HOME"); home != "" {
		return home, nil
	}
	if u, err := user.Current(); err == nil && u.HomeDir != "" {
		return u.HomeDir, nil
	}
	wd, err := os.Getwd()
	return wd, errors.Wrap(err, "no home dir")
}

// PathExists tells whether a data dir entry, such as the genesis or the
// database, is already there.
func PathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, errors.Wrapf(err, "stat %s", path)
	}
}
