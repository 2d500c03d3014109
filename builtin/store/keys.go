// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package store

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Key is a mapping key.
type Key interface {
	Bytes() []byte
}

// StringKey a plain string key.
type StringKey string

func (k StringKey) Bytes() []byte { return []byte(k) }

// Uint64Key sorts numerically.
type Uint64Key uint64

func (k Uint64Key) Bytes() []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(k))
	return b[:]
}

// ParseUint64Key decodes a raw Uint64Key.
func ParseUint64Key(raw []byte) (Uint64Key, error) {
	if len(raw) != 8 {
		return 0, errors.Errorf("invalid uint64 key length %d", len(raw))
	}
	return Uint64Key(binary.BigEndian.Uint64(raw)), nil
}

// PairKey is a composite key. Entries sharing the first part are adjacent and
// can be ranged with PairPrefix.
type PairKey struct {
	First  []byte
	Second []byte
}

// Pair builds a PairKey.
func Pair(first, second Key) PairKey {
	return PairKey{First: first.Bytes(), Second: second.Bytes()}
}

// Bytes encodes the key as len(first) | first | second.
func (p PairKey) Bytes() []byte {
	return append(PairPrefix(StringKey(p.First)), p.Second...)
}

// PairPrefix returns the prefix shared by all pairs with the given first part.
func PairPrefix(first Key) []byte {
	f := first.Bytes()
	b := make([]byte, 2, 2+len(f))
	binary.BigEndian.PutUint16(b, uint16(len(f)))
	return append(b, f...)
}

// SplitPair decodes a raw PairKey.
func SplitPair(raw []byte) (PairKey, error) {
	if len(raw) < 2 {
		return PairKey{}, errors.New("invalid pair key")
	}
	n := int(binary.BigEndian.Uint16(raw))
	if len(raw) < 2+n {
		return PairKey{}, errors.New("invalid pair key")
	}
	return PairKey{First: raw[2 : 2+n], Second: raw[2+n:]}, nil
}
