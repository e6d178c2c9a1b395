package kv_store

import (
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v2"
	"github.com/golang/glog"
)

// BadgerKVStore implements a simple KV store interface using badger.
type BadgerKVStore struct {
	db      *badger.DB
	rootDir string
	closed  bool
}

// NewBadgerKVStore opens(or creates) a badger database located at rootDir.
func NewBadgerKVStore(rootDir string, opts badger.Options) (*BadgerKVStore, error) {
	if err := os.MkdirAll(rootDir, 0774); err != nil {
		return nil, fmt.Errorf("unable to create kv store directory %s: %w", rootDir, err)
	}
	glog.V(1).Infof("Initializing badger KV store located at: %s", rootDir)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to open badger db at %s: %v", ErrKVStoreBackend, rootDir, err)
	}
	return &BadgerKVStore{db: db, rootDir: rootDir}, nil
}

func (kvStore *BadgerKVStore) GetDataDir() string {
	return kvStore.rootDir
}

// Size returns the size of the KV store in bytes.
func (kvStore *BadgerKVStore) Size() int64 {
	if kvStore.closed {
		return 0
	}
	lsm, vlog := kvStore.db.Size()
	return lsm + vlog
}

// Get gets the value associated with the key.
func (kvStore *BadgerKVStore) Get(key []byte) ([]byte, error) {
	var val []byte
	if kvStore.closed {
		return val, ErrKVStoreClosed
	}
	err := kvStore.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrKVStoreKeyNotFound
		}
		glog.Errorf("Unable to get key: %v due to err: %s", key, err.Error())
		return nil, ErrKVStoreBackend
	}
	return val, nil
}

// Put puts a key value pair in the DB. If the key already exists, it would be updated.
func (kvStore *BadgerKVStore) Put(key []byte, value []byte) error {
	if kvStore.closed {
		return ErrKVStoreClosed
	}
	err := kvStore.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
	if err != nil {
		glog.Errorf("Unable to put key: %v due to err: %s", key, err.Error())
		return ErrKVStoreBackend
	}
	return nil
}

// Delete deletes a key value pair from the DB.
func (kvStore *BadgerKVStore) Delete(key []byte) error {
	if kvStore.closed {
		return ErrKVStoreClosed
	}
	err := kvStore.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
	if err != nil {
		glog.Errorf("Unable to delete key: %v due to err: %s", key, err.Error())
		return ErrKVStoreBackend
	}
	return nil
}

// BatchPut sets/updates multiple key value pairs in a single transaction.
func (kvStore *BadgerKVStore) BatchPut(keys [][]byte, values [][]byte) error {
	if kvStore.closed {
		return ErrKVStoreClosed
	}
	if len(keys) != len(values) {
		return fmt.Errorf("%w: %d keys but %d values", ErrKVStoreBackend, len(keys), len(values))
	}
	err := kvStore.db.Update(func(txn *badger.Txn) error {
		for ii := 0; ii < len(keys); ii++ {
			if err := txn.Set(keys[ii], values[ii]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		glog.Errorf("Unable to perform batch put due to err: %s", err.Error())
		return ErrKVStoreBackend
	}
	return nil
}

// Close closes the underlying badger database.
func (kvStore *BadgerKVStore) Close() error {
	if kvStore.closed {
		return nil
	}
	glog.V(1).Infof("Closing KV store located at: %s", kvStore.rootDir)
	err := kvStore.db.Close()
	kvStore.closed = true
	kvStore.db = nil
	return err
}

func (kvStore *BadgerKVStore) CreateScanner(prefix []byte, startKey []byte, reverse bool) Scanner {
	return newBadgerScanner(kvStore.db, prefix, startKey, reverse)
}

// BadgerScanner implements Scanner on top of a read only badger transaction.
type BadgerScanner struct {
	iter     *badger.Iterator
	txn      *badger.Txn
	startKey []byte
	prefix   []byte
	reverse  bool
}

func newBadgerScanner(db *badger.DB, prefix []byte, startKey []byte, reverse bool) *BadgerScanner {
	scanner := new(BadgerScanner)
	scanner.startKey = startKey
	scanner.reverse = reverse
	scanner.prefix = prefix
	scanner.txn = db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	opts.Reverse = reverse
	opts.Prefix = prefix
	scanner.iter = scanner.txn.NewIterator(opts)
	scanner.Rewind()
	return scanner
}

func (scanner *BadgerScanner) Rewind() {
	if len(scanner.startKey) > 0 {
		scanner.iter.Seek(scanner.startKey)
		return
	}
	if scanner.reverse && len(scanner.prefix) > 0 {
		// Reverse iteration must seek past the last key carrying the prefix.
		scanner.iter.Seek(append(append([]byte{}, scanner.prefix...), 0xFF))
		return
	}
	scanner.iter.Rewind()
}

func (scanner *BadgerScanner) Valid() bool {
	if len(scanner.prefix) == 0 {
		return scanner.iter.Valid()
	}
	return scanner.iter.ValidForPrefix(scanner.prefix)
}

func (scanner *BadgerScanner) Next() {
	scanner.iter.Next()
}

func (scanner *BadgerScanner) GetItem() (key []byte, val []byte, err error) {
	item := scanner.iter.Item()
	key = item.KeyCopy(nil)
	val, err = item.ValueCopy(nil)
	return
}

func (scanner *BadgerScanner) Seek(key []byte) {
	scanner.iter.Seek(key)
}

func (scanner *BadgerScanner) Close() {
	scanner.iter.Close()
	scanner.txn.Discard()
}
