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

// Mapping is a key/value storage abstraction for built-in contracts.
// Values are rlp encoded and stored under namespace/key, so a mapping can be
// ranged in key order.
type Mapping[K Key, V any] struct {
	storage   state.Storage
	namespace []byte
}

func NewMapping[K Key, V any](storage state.Storage, namespace string) *Mapping[K, V] {
	return &Mapping[K, V]{storage: storage, namespace: []byte(namespace + "/")}
}

func (m *Mapping[K, V]) key(k []byte) []byte {
	return append(append(make([]byte, 0, len(m.namespace)+len(k)), m.namespace...), k...)
}

// Load returns the value and whether it exists.
func (m *Mapping[K, V]) Load(key K) (value V, ok bool, err error) {
	raw, err := m.storage.Get(m.key(key.Bytes()))
	if err != nil {
		return value, false, err
	}
	if len(raw) == 0 {
		return value, false, nil
	}
	if err := rlp.DecodeBytes(raw, &value); err != nil {
		return value, false, errors.Wrapf(err, "decode %s%x", m.namespace, key.Bytes())
	}
	return value, true, nil
}

// Get returns the value, or the zero value if absent.
func (m *Mapping[K, V]) Get(key K) (V, error) {
	v, _, err := m.Load(key)
	return v, err
}

func (m *Mapping[K, V]) Has(key K) (bool, error) {
	return m.storage.Has(m.key(key.Bytes()))
}

func (m *Mapping[K, V]) Set(key K, value V) error {
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return errors.Wrapf(err, "encode %s%x", m.namespace, key.Bytes())
	}
	m.storage.Set(m.key(key.Bytes()), raw)
	return nil
}

func (m *Mapping[K, V]) Remove(key K) {
	m.storage.Delete(m.key(key.Bytes()))
}

// Range calls fn in key order for entries whose raw key starts with prefix,
// until fn returns false. Keys passed to fn are raw, without the namespace.
func (m *Mapping[K, V]) Range(prefix []byte, fn func(key []byte, value V) bool) error {
	var decodeErr error
	n := len(m.namespace)
	err := m.storage.Iterate(m.key(prefix), func(k, raw []byte) bool {
		var value V
		if err := rlp.DecodeBytes(raw, &value); err != nil {
			decodeErr = errors.Wrapf(err, "decode %s", k)
			return false
		}
		return fn(k[n:], value)
	})
	if err != nil {
		return err
	}
	return decodeErr
}
