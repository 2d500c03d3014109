// Copyright (c) 2018 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package lvldb is the goleveldb backed kv.Store holding the chains of meshd.
package lvldb

import (
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/vechain/mesh-security/kv"
)

var _ kv.Store = (*LevelDB)(nil)

const minCacheMB = 16

// Options tune the database. Values below 16 are raised to 16.
type Options struct {
	// CacheSize in MiB, split between block cache and write buffer.
	CacheSize              int
	OpenFilesCacheCapacity int
}

func (o Options) leveldb() *opt.Options {
	cacheMB := max(o.CacheSize, minCacheMB)
	// two write buffers are kept in memory
	return &opt.Options{
		OpenFilesCacheCapacity: max(o.OpenFilesCacheCapacity, minCacheMB),
		BlockCacheCapacity:     cacheMB / 2 * opt.MiB,
		WriteBuffer:            cacheMB / 4 * opt.MiB,
		Filter:                 filter.NewBloomFilter(10),
	}
}

type LevelDB struct {
	db  *leveldb.DB
	stg storage.Storage
}

// New opens the database at path, creating it when missing.
func New(path string, opts Options) (*LevelDB, error) {
	stg, err := storage.OpenFile(path, false)
	if err != nil {
		return nil, errors.Wrap(err, "open level db storage")
	}
	return open(stg, opts)
}

// NewMem opens an in-memory database.
func NewMem() (*LevelDB, error) {
	return open(storage.NewMemStorage(), Options{})
}

func open(stg storage.Storage, opts Options) (*LevelDB, error) {
	db, err := leveldb.Open(stg, opts.leveldb())
	if err != nil {
		stg.Close()
		return nil, errors.Wrap(err, "open level db")
	}
	return &LevelDB{db: db, stg: stg}, nil
}

func (ldb *LevelDB) IsNotFound(err error) bool {
	return errors.Is(err, leveldb.ErrNotFound)
}

// Get fails with an error matched by IsNotFound when key is absent.
func (ldb *LevelDB) Get(key []byte) ([]byte, error) { return ldb.db.Get(key, nil) }
func (ldb *LevelDB) Has(key []byte) (bool, error)   { return ldb.db.Has(key, nil) }
func (ldb *LevelDB) Put(key, value []byte) error    { return ldb.db.Put(key, value, nil) }
func (ldb *LevelDB) Delete(key []byte) error        { return ldb.db.Delete(key, nil) }

// Close closes the database and releases its storage, later operations fail.
func (ldb *LevelDB) Close() error {
	if err := ldb.db.Close(); err != nil {
		ldb.stg.Close()
		return err
	}
	return ldb.stg.Close()
}

// Bulk returns a batch applied atomically on Write.
func (ldb *LevelDB) Bulk() kv.Bulk {
	return &batch{db: ldb.db}
}

func (ldb *LevelDB) Iterate(r kv.Range) kv.Iterator {
	return ldb.db.NewIterator(&util.Range{Start: r.Start, Limit: r.Limit}, nil)
}

type batch struct {
	leveldb.Batch
	db *leveldb.DB
}

func (b *batch) Put(key, value []byte) error {
	b.Batch.Put(key, value)
	return nil
}

func (b *batch) Delete(key []byte) error {
	b.Batch.Delete(key)
	return nil
}

func (b *batch) Write() error {
	return b.db.Write(&b.Batch, nil)
}
