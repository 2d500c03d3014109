// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package store

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
	"github.com/vechain/mesh-security/state"
)

var ErrNotFound = errors.New("not found")

// Item is a single rlp encoded value stored under a fixed key.
type Item[V any] struct {
	storage state.Storage
	key     []byte
}

func NewItem[V any](storage state.Storage, key string) *Item[V] {
	return &Item[V]{storage: storage, key: []byte(key)}
}

// MayLoad returns the value and whether it exists.
func (i *Item[V]) MayLoad() (value V, ok bool, err error) {
	raw, err := i.storage.Get(i.key)
	if err != nil {
		return value, false, err
	}
	if len(raw) == 0 {
		return value, false, nil
	}
	if err := rlp.DecodeBytes(raw, &value); err != nil {
		return value, false, errors.Wrapf(err, "decode %s", i.key)
	}
	return value, true, nil
}

// Load returns the value, ErrNotFound if absent.
func (i *Item[V]) Load() (V, error) {
	v, ok, err := i.MayLoad()
	if err != nil {
		return v, err
	}
	if !ok {
		return v, errors.Wrapf(ErrNotFound, "%s", i.key)
	}
	return v, nil
}

func (i *Item[V]) Save(value V) error {
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return errors.Wrapf(err, "encode %s", i.key)
	}
	i.storage.Set(i.key, raw)
	return nil
}

func (i *Item[V]) Exists() (bool, error) {
	return i.storage.Has(i.key)
}

func (i *Item[V]) Remove() {
	i.storage.Delete(i.key)
}

// Sequence is a persistent counter.
type Sequence struct {
	item *Item[uint64]
}

func NewSequence(storage state.Storage, key string) *Sequence {
	return &Sequence{item: NewItem[uint64](storage, key)}
}

// Next increments the counter and returns the new value, starting at 1.
func (s *Sequence) Next() (uint64, error) {
	v, _, err := s.item.MayLoad()
	if err != nil {
		return 0, err
	}
	v++
	return v, s.item.Save(v)
}

// Current returns the last value handed out.
func (s *Sequence) Current() (uint64, error) {
	v, _, err := s.item.MayLoad()
	return v, err
}
