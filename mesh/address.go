// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package mesh

import (
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// MaxAddressLength bounds the length of an address in bytes.
const MaxAddressLength = 255

// Address is an account or contract address on one side of the mesh.
type Address string

// ParseAddress validates s and converts it into an Address.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return "", errors.New("empty address")
	}
	if len(s) > MaxAddressLength {
		return "", errors.Errorf("address too long: %d", len(s))
	}
	if strings.IndexFunc(s, func(r rune) bool { return unicode.IsSpace(r) || !unicode.IsPrint(r) }) >= 0 {
		return "", errors.Errorf("invalid address %q", s)
	}
	return Address(s), nil
}

// MustParseAddress is like ParseAddress but panics on error.
func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	return string(a)
}

// Bytes returns byte slice form of address.
func (a Address) Bytes() []byte {
	return []byte(a)
}

// IsEmpty returns true for the zero address.
func (a Address) IsEmpty() bool {
	return a == ""
}

// CreateContractAddress derives a contract address from its code id, creator and
// the instance count of the chain.
func CreateContractAddress(prefix string, codeID uint64, creator Address, instanceCount uint64) Address {
	h := Blake2b(Uint64Bytes(codeID), creator.Bytes(), Uint64Bytes(instanceCount))
	return Address(prefix + "1" + hex.EncodeToString(h[:20]))
}
