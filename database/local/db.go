/*

 Iris - Decentralized Storage Validator Network
 Copyright (C) 2025 Vadim Filin, https://github.com/Warp-net,
 <github.com.mecdy@passmail.net>

 This program is free software: you can redistribute it and/or modify
 it under the terms of the GNU Affero General Public License as published by
 the Free Software Foundation, either version 3 of the License, or
 (at your option) any later version.

 This program is distributed in the hope that it will be useful,
 but WITHOUT ANY WARRANTY; without even the implied warranty of
 MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 GNU Affero General Public License for more details.

 You should have received a copy of the GNU Affero General Public License
 along with this program.  If not, see <https://www.gnu.org/licenses/>.

Iris is provided “as is” without warranty of any kind, either expressed or implied.
Use at your own risk. The maintainers shall not be liable for any damages or data loss
resulting from the use or misuse of this software.
*/

// Copyright 2025 Vadim Filin
// SPDX-License-Identifier: AGPL-3.0-or-later

package local

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Warp-net/iris/security"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/docker/go-units"
	ds "github.com/ipfs/go-datastore"
	log "github.com/sirupsen/logrus"
)

/*
  Node state lives in an embedded BadgerDB instance: validator sets, the
  bootstrap directory, the data queue of the local ledger and the off-chain
  content index. Badger gives us snapshot-isolated transactions, so a
  multi-key mutation (e.g. draining the data queue) is atomic.
  https://github.com/dgraph-io/badger
*/

const (
	firstRunLockFile = "run.lock"

	defaultDiscardRatioGC = 0.5
	defaultIntervalGC     = time.Hour
	defaultSleepGC        = time.Second

	ErrNotRunning    = DBError("DB is not running")
	ErrWrongPassword = DBError("wrong username or password")
)

type (
	IrisDB = badger.DB

	DBError string
)

func (e DBError) Error() string {
	return string(e)
}

type Options struct {
	discardRatioGC float64
	intervalGC     time.Duration
	sleepGC        time.Duration
	isInMemory     bool
}

func DefaultOptions() *Options {
	return &Options{
		discardRatioGC: defaultDiscardRatioGC,
		intervalGC:     defaultIntervalGC,
		sleepGC:        defaultSleepGC,
	}
}

func (opt *Options) WithIntervalGC(interval time.Duration) *Options {
	opt.intervalGC = interval
	return opt
}

func (opt *Options) WithInMemory(v bool) *Options {
	opt.isInMemory = v
	return opt
}

type DB struct {
	badger    *badger.DB
	isRunning *atomic.Bool

	dbPath          string
	hasFirstRunFlag bool

	badgerOpts     badger.Options
	discardRatioGC float64
	intervalGC     time.Duration
	sleepGC        time.Duration

	stopChan chan struct{}
}

func New(dbPath string, o *Options) (*DB, error) {
	if o == nil {
		o = DefaultOptions()
	}
	badgerOpts := badger.
		DefaultOptions(dbPath).
		WithSyncWrites(false).
		WithIndexCacheSize(64 << 20).
		WithCompression(options.ZSTD).
		WithNumCompactors(2).
		WithLoggingLevel(badger.ERROR).
		WithBlockCacheSize(128 << 20)
	if o.isInMemory {
		badgerOpts = badgerOpts.
			WithDir("").
			WithValueDir("").
			WithInMemory(true)
	}

	if o.intervalGC == 0 {
		o.intervalGC = defaultIntervalGC
	}
	if o.discardRatioGC == 0 {
		o.discardRatioGC = defaultDiscardRatioGC
	}
	if o.sleepGC == 0 {
		o.sleepGC = defaultSleepGC
	}

	hasFlag := o.isInMemory
	if !o.isInMemory {
		found, err := findFirstRunFlag(dbPath)
		if err != nil {
			return nil, err
		}
		hasFlag = found
	}

	return &DB{
		stopChan:        make(chan struct{}),
		isRunning:       new(atomic.Bool),
		badgerOpts:      badgerOpts,
		dbPath:          dbPath,
		hasFirstRunFlag: hasFlag,
		discardRatioGC:  o.discardRatioGC,
		intervalGC:      o.intervalGC,
		sleepGC:         o.sleepGC,
	}, nil
}

func findFirstRunFlag(dbPath string) (bool, error) {
	_, err := os.Stat(filepath.Join(dbPath, firstRunLockFile))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("database: first run flag: %w", err)
	}
	return true, nil
}

// IsFirstRun reports whether the database directory was empty on start.
func (db *DB) IsFirstRun() bool {
	return !db.hasFirstRunFlag
}

func (db *DB) writeFirstRunFlag() {
	if db.badgerOpts.InMemory {
		return
	}
	path := filepath.Join(db.dbPath, firstRunLockFile)
	log.Infof("database: lock file created: %s", path)
	f, _ := os.Create(path) //#nosec
	if f != nil {
		_ = f.Close()
	}
}

// Run opens the database encrypted with a key derived from username and password.
func (db *DB) Run(username, password string) (err error) {
	if username == "" || password == "" {
		return DBError("database: username or password is empty")
	}
	hashSum := security.ConvertToSHA256([]byte(username + "@" + password))
	execOpts := db.badgerOpts.WithEncryptionKey(hashSum)
	if db.badgerOpts.InMemory {
		execOpts = execOpts.WithIndexCacheSize(16 << 20)
	}

	db.badger, err = badger.Open(execOpts)
	if errors.Is(err, badger.ErrEncryptionKeyMismatch) {
		return ErrWrongPassword
	}
	if err != nil {
		return err
	}
	db.isRunning.Store(true)

	if !db.hasFirstRunFlag {
		db.writeFirstRunFlag()
	}

	if !db.badgerOpts.InMemory {
		go db.runEventualGC()
	}
	return nil
}

func (db *DB) runEventualGC() {
	log.Infoln("database: garbage collection started")
	gcTicker := time.NewTicker(db.intervalGC)
	defer gcTicker.Stop()

	for {
		select {
		case <-gcTicker.C:
			for {
				err := db.badger.RunValueLogGC(db.discardRatioGC)
				if errors.Is(err, badger.ErrNoRewrite) ||
					errors.Is(err, badger.ErrRejected) {
					break
				}
				if err != nil {
					log.Errorf("database: garbage collection: %v", err)
					break
				}
				time.Sleep(db.sleepGC)
			}
			log.Infoln("database: garbage collection complete")
		case <-db.stopChan:
			return
		}
	}
}

func (db *DB) Stats() map[string]string {
	if db.IsClosed() {
		return map[string]string{}
	}
	lsm, vlog := db.badger.Size()
	cacheMetrics := db.badger.BlockCacheMetrics()

	stats := map[string]string{
		"size":        units.HumanSize(float64(lsm + vlog)),
		"max_version": strconv.FormatUint(db.badger.MaxVersion(), 10),
	}
	if cacheMetrics != nil {
		stats["cache_hit_miss"] = fmt.Sprintf("%d/%d", cacheMetrics.Hits(), cacheMetrics.Misses())
	}
	return stats
}

func (db *DB) Set(key DatabaseKey, value []byte) error {
	if db.IsClosed() {
		return ErrNotRunning
	}
	return db.badger.Update(func(txn *badger.Txn) error {
		return txn.Set(key.Bytes(), value)
	})
}

func (db *DB) Get(key DatabaseKey) ([]byte, error) {
	if db.IsClosed() {
		return nil, ErrNotRunning
	}

	var result []byte
	err := db.badger.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key.Bytes())
		if err != nil {
			return err
		}
		result, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (db *DB) Delete(key DatabaseKey) error {
	if db.IsClosed() {
		return ErrNotRunning
	}
	return db.badger.Update(func(txn *badger.Txn) error {
		return txn.Delete(key.Bytes())
	})
}

type IrisTransactioner interface {
	Set(key DatabaseKey, value []byte) error
	Get(key DatabaseKey) ([]byte, error)
	Delete(key DatabaseKey) error
	List(prefix DatabaseKey) ([]ListItem, error)
	Commit() error
	Rollback()
}

type irisTxn struct {
	txn *badger.Txn
}

func (db *DB) NewTxn() (IrisTransactioner, error) {
	if db.IsClosed() {
		return nil, ErrNotRunning
	}
	wtx := &irisTxn{db.badger.NewTransaction(true)}
	runtime.SetFinalizer(wtx, func(tx *irisTxn) { tx.Rollback() })
	return wtx, nil
}

func (t *irisTxn) Set(key DatabaseKey, value []byte) error {
	return t.txn.Set(key.Bytes(), value)
}

func (t *irisTxn) Get(key DatabaseKey) ([]byte, error) {
	item, err := t.txn.Get(key.Bytes())
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t *irisTxn) Delete(key DatabaseKey) error {
	return t.txn.Delete(key.Bytes())
}

type ListItem struct {
	Key   string
	Value []byte
}

// List returns every item under prefix in ascending key order.
func (t *irisTxn) List(prefix DatabaseKey) ([]ListItem, error) {
	if strings.Contains(prefix.String(), FixedKey) {
		return nil, DBError("cannot iterate thru fixed key")
	}
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix.Bytes()
	it := t.txn.NewIterator(opts)
	defer it.Close()

	items := make([]ListItem, 0, 8)
	for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		items = append(items, ListItem{Key: string(item.KeyCopy(nil)), Value: val})
	}
	return items, nil
}

func (t *irisTxn) Commit() error {
	return t.txn.Commit()
}

func (t *irisTxn) Rollback() {
	t.txn.Discard()
}

func (db *DB) Sync() error {
	if db.IsClosed() {
		return ErrNotRunning
	}
	if db.badgerOpts.InMemory {
		return nil
	}
	return db.badger.Sync()
}

func (db *DB) Path() string {
	if db == nil {
		return ""
	}
	return db.dbPath
}

func (db *DB) IsClosed() bool {
	if db == nil || db.badger == nil {
		return true
	}
	return !db.isRunning.Load()
}

func (db *DB) Close() {
	if db.IsClosed() {
		return
	}
	log.Infoln("closing database...")
	close(db.stopChan)

	_ = db.Sync()
	if err := db.badger.Close(); err != nil {
		log.Infof("database: close: %v", err)
		return
	}
	db.isRunning.Store(false)
	db.badger = nil
}

func IsNotFoundError(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, badger.ErrKeyNotFound):
		return true
	case errors.Is(err, ds.ErrNotFound):
		return true
	default:
		return false
	}
}
