// Copyright (c) 2018 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package state

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/pkg/errors"
	"github.com/vechain/mesh-security/cache"
	"github.com/vechain/mesh-security/kv"
	"github.com/vechain/mesh-security/stackedmap"
)

const cacheSize = 4096

// Error is the error caused by state access failure.
type Error struct {
	cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("state: %v", e.cause)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// State is the journaled key-value state of a chain.
// Writes are kept in memory, grouped by checkpoints, until Commit.
// An empty value means the key is absent.
type State struct {
	db    kv.Store
	cache *cache.LRU[string, []byte] // committed values, nil for absent
	sm    *stackedmap.StackedMap[string, []byte]
}

var _ Storage = (*State)(nil)

// New create state object.
func New(db kv.Store) *State {
	c, _ := cache.NewLRU[string, []byte](cacheSize)
	s := &State{db: db, cache: c}
	s.sm = stackedmap.New(s.cacheGetter)
	return s
}

// cacheGetter implements stackedmap.MapGetter.
func (s *State) cacheGetter(key string) ([]byte, bool, error) {
	v, err := s.cache.GetOrLoad(key, func(key string) ([]byte, error) {
		v, err := s.db.Get([]byte(key))
		if err != nil {
			if s.db.IsNotFound(err) {
				return nil, nil
			}
			return nil, err
		}
		return v, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v, len(v) > 0, nil
}

// Get returns the value of key, nil if absent.
func (s *State) Get(key []byte) ([]byte, error) {
	v, _, err := s.sm.Get(string(key))
	if err != nil {
		return nil, &Error{err}
	}
	return v, nil
}

// Has returns whether the key is present.
func (s *State) Has(key []byte) (bool, error) {
	v, err := s.Get(key)
	if err != nil {
		return false, err
	}
	return len(v) > 0, nil
}

// Set sets the value of key. Setting an empty value deletes the key.
func (s *State) Set(key, value []byte) {
	s.sm.Put(string(key), bytes.Clone(value))
}

// Delete removes the key.
func (s *State) Delete(key []byte) {
	s.sm.Put(string(key), nil)
}

// Iterate calls fn for every present key with the prefix, in key order, until
// fn returns false. Uncommitted writes are visible.
func (s *State) Iterate(prefix []byte, fn func(key, value []byte) bool) error {
	merged := make(map[string][]byte)

	it := s.db.Iterate(kv.PrefixRange(prefix))
	for it.Next() {
		merged[string(it.Key())] = bytes.Clone(it.Value())
	}
	it.Release()
	if err := it.Error(); err != nil {
		return &Error{err}
	}

	p := string(prefix)
	for _, e := range s.sm.Journal() {
		if strings.HasPrefix(e.Key, p) {
			merged[e.Key] = e.Value
		}
	}

	keys := make([]string, 0, len(merged))
	for k, v := range merged {
		if len(v) > 0 {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	for _, k := range keys {
		if !fn([]byte(k), merged[k]) {
			break
		}
	}
	return nil
}

// NewCheckpoint makes a checkpoint of current state.
// It returns revision of the checkpoint.
func (s *State) NewCheckpoint() int {
	return s.sm.Push()
}

// RevertTo revert to checkpoint specified by revision.
func (s *State) RevertTo(revision int) {
	s.sm.PopTo(revision)
}

// Depth returns the number of open checkpoints plus one.
func (s *State) Depth() int {
	return s.sm.Depth()
}

// Dirty returns the number of uncommitted writes.
func (s *State) Dirty() int {
	return len(s.sm.Journal())
}

// Commit writes all uncommitted changes into the underlying store atomically,
// including those made after still open checkpoints, and drops the checkpoints.
func (s *State) Commit() error {
	changes := make(map[string][]byte)
	for _, e := range s.sm.Journal() {
		changes[e.Key] = e.Value
	}
	if len(changes) == 0 {
		return nil
	}

	bulk := s.db.Bulk()
	for k, v := range changes {
		var err error
		if len(v) == 0 {
			err = bulk.Delete([]byte(k))
		} else {
			err = bulk.Put([]byte(k), v)
		}
		if err != nil {
			return &Error{err}
		}
	}
	if err := bulk.Write(); err != nil {
		return &Error{errors.Wrap(err, "commit")}
	}

	for k, v := range changes {
		s.cache.Add(k, v)
	}
	s.sm = stackedmap.New(s.cacheGetter)
	return nil
}
