// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vechain/mesh-security/bn"
	"github.com/vechain/mesh-security/lvldb"
	"github.com/vechain/mesh-security/state"
)

type record struct {
	Name   string
	Amount bn.Uint128
	Rate   bn.Decimal
	Flags  []uint8
}

func newStorage(t *testing.T) state.Storage {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return state.New(db)
}

func TestItem(t *testing.T) {
	item := NewItem[record](newStorage(t), "config")

	_, ok, err := item.MayLoad()
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = item.Load()
	assert.ErrorIs(t, err, ErrNotFound)

	want := record{Name: "x", Amount: bn.NewUint128(42), Rate: bn.MustParseDecimal("0.1"), Flags: []uint8{1, 2}}
	require.NoError(t, item.Save(want))

	got, err := item.Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	item.Remove()
	exists, err := item.Exists()
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSequence(t *testing.T) {
	seq := NewSequence(newStorage(t), "seq")
	for i := uint64(1); i <= 3; i++ {
		v, err := seq.Next()
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	cur, err := seq.Current()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), cur)
}

func TestMapping(t *testing.T) {
	s := newStorage(t)
	m := NewMapping[StringKey, record](s, "records")
	other := NewMapping[StringKey, record](s, "records2")

	require.NoError(t, m.Set("b", record{Name: "b"}))
	require.NoError(t, m.Set("a", record{Name: "a"}))
	require.NoError(t, other.Set("a", record{Name: "other"}))

	v, err := m.Get("missing")
	require.NoError(t, err)
	assert.Equal(t, record{}, v)

	v, ok, err := m.Load("a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a", v.Name)

	var names []string
	require.NoError(t, m.Range(nil, func(k []byte, v record) bool {
		names = append(names, string(k)+"="+v.Name)
		return true
	}))
	assert.Equal(t, []string{"a=a", "b=b"}, names)

	m.Remove("a")
	has, err := m.Has("a")
	require.NoError(t, err)
	assert.False(t, has)
}

func TestPairMapping(t *testing.T) {
	m := NewMapping[PairKey, uint64](newStorage(t), "stakes")

	require.NoError(t, m.Set(Pair(StringKey("alice"), StringKey("val2")), 2))
	require.NoError(t, m.Set(Pair(StringKey("alice"), StringKey("val1")), 1))
	require.NoError(t, m.Set(Pair(StringKey("alicia"), StringKey("val1")), 9))
	require.NoError(t, m.Set(Pair(StringKey("bob"), StringKey("val1")), 3))

	var got []string
	require.NoError(t, m.Range(PairPrefix(StringKey("alice")), func(k []byte, v uint64) bool {
		p, err := SplitPair(k)
		require.NoError(t, err)
		got = append(got, string(p.First)+"/"+string(p.Second))
		return true
	}))
	assert.Equal(t, []string{"alice/val1", "alice/val2"}, got)

	seqs := NewMapping[Uint64Key, uint64](newStorage(t), "seq")
	require.NoError(t, seqs.Set(Uint64Key(256), 1))
	require.NoError(t, seqs.Set(Uint64Key(2), 1))
	var keys []Uint64Key
	require.NoError(t, seqs.Range(nil, func(k []byte, _ uint64) bool {
		key, err := ParseUint64Key(k)
		require.NoError(t, err)
		keys = append(keys, key)
		return true
	}))
	assert.Equal(t, []Uint64Key{2, 256}, keys)
}
