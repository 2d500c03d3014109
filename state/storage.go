// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

// Storage is a key-value space owned by one contract or module.
type Storage interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	Set(key, value []byte)
	Delete(key []byte)
	Iterate(prefix []byte, fn func(key, value []byte) bool) error
}

type prefixStorage struct {
	parent Storage
	prefix []byte
}

// NewPrefixStorage returns a view of parent where every key is under prefix.
func NewPrefixStorage(parent Storage, prefix []byte) Storage {
	return &prefixStorage{parent: parent, prefix: append([]byte(nil), prefix...)}
}

func (p *prefixStorage) key(k []byte) []byte {
	return append(append(make([]byte, 0, len(p.prefix)+len(k)), p.prefix...), k...)
}

func (p *prefixStorage) Get(key []byte) ([]byte, error) { return p.parent.Get(p.key(key)) }
func (p *prefixStorage) Has(key []byte) (bool, error)   { return p.parent.Has(p.key(key)) }
func (p *prefixStorage) Set(key, value []byte)          { p.parent.Set(p.key(key), value) }
func (p *prefixStorage) Delete(key []byte)              { p.parent.Delete(p.key(key)) }

func (p *prefixStorage) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	n := len(p.prefix)
	return p.parent.Iterate(p.key(prefix), func(key, value []byte) bool {
		return fn(key[n:], value)
	})
}
