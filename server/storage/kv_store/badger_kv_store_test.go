package kv_store

import (
	"chronolog/util"
	"chronolog/util/testutil"
	"fmt"
	"testing"

	"github.com/dgraph-io/badger/v2"
	"github.com/golang/glog"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, testDir string) *BadgerKVStore {
	opts := badger.DefaultOptions(testDir)
	opts.SyncWrites = true
	opts.NumMemtables = 2
	opts.MaxTableSize = 4 << 20
	opts.ValueLogFileSize = 16 << 20
	opts.Logger = nil
	store, err := NewBadgerKVStore(testDir, opts)
	require.NoError(t, err)
	return store
}

func TestBadgerKVStore(t *testing.T) {
	testutil.LogTestMarker("TestBadgerKVStore")
	testDir := testutil.CreateFreshTestDir("TestBadgerKVStore")
	store := openTestStore(t, testDir)
	prefix := []byte("r")
	batchSize := 10
	numIters := 5
	glog.Infof("Testing Batch Put")
	for iter := 0; iter < numIters; iter++ {
		var keys [][]byte
		var values [][]byte
		for ii := 0; ii < batchSize; ii++ {
			num := iter*batchSize + ii
			keys = append(keys, append(append([]byte{}, prefix...), util.UintToBytes(uint64(num))...))
			values = append(values, []byte(fmt.Sprintf("value-%03d", num)))
		}
		require.NoError(t, store.BatchPut(keys, values))
	}
	require.NoError(t, store.Put([]byte("meta"), []byte("m")))

	// Reopen and make sure everything survived.
	require.NoError(t, store.Close())
	store = openTestStore(t, testDir)
	defer func() { _ = store.Close() }()

	val, err := store.Get(append(append([]byte{}, prefix...), util.UintToBytes(7)...))
	require.NoError(t, err)
	require.Equal(t, "value-007", string(val))
	_, err = store.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrKVStoreKeyNotFound)

	glog.Infof("Testing forward scanner")
	scanner := store.CreateScanner(prefix, nil, false)
	count := 0
	for ; scanner.Valid(); scanner.Next() {
		key, val, err := scanner.GetItem()
		require.NoError(t, err)
		require.Equal(t, uint64(count), util.BytesToUint(key[len(prefix):]))
		require.Equal(t, fmt.Sprintf("value-%03d", count), string(val))
		count++
	}
	scanner.Close()
	require.Equal(t, batchSize*numIters, count)

	glog.Infof("Testing reverse scanner")
	scanner = store.CreateScanner(prefix, nil, true)
	require.True(t, scanner.Valid())
	key, _, err := scanner.GetItem()
	require.NoError(t, err)
	require.Equal(t, uint64(batchSize*numIters-1), util.BytesToUint(key[len(prefix):]))
	scanner.Close()

	require.NoError(t, store.Delete([]byte("meta")))
	_, err = store.Get([]byte("meta"))
	require.ErrorIs(t, err, ErrKVStoreKeyNotFound)
	require.Greater(t, store.Size(), int64(-1))
	glog.Infof("TestBadgerKVStore finished successfully")
}

func TestBadgerKVStoreClosed(t *testing.T) {
	testutil.LogTestMarker("TestBadgerKVStoreClosed")
	testDir := testutil.CreateFreshTestDir("TestBadgerKVStoreClosed")
	store := openTestStore(t, testDir)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
	_, err := store.Get([]byte("k"))
	require.ErrorIs(t, err, ErrKVStoreClosed)
	require.ErrorIs(t, store.Put([]byte("k"), []byte("v")), ErrKVStoreClosed)
	require.ErrorIs(t, store.BatchPut([][]byte{[]byte("k")}, [][]byte{[]byte("v")}), ErrKVStoreClosed)
}
