package kvdbmemory

import (
	"sync"

	"github.com/netgodgame/netgod/engine/kvdb/types"
	"github.com/petar/GoLLRB/llrb"
)

type kvItem struct {
	key string
	val string
}

func (it *kvItem) Less(other llrb.Item) bool {
	return it.key < other.(*kvItem).key
}

type memoryKVDB struct {
	lock sync.RWMutex
	tree *llrb.LLRB
}

// OpenMemoryKVDB opens an ordered in-process KVDB; data is lost on exit
func OpenMemoryKVDB() (kvdbtypes.KVDBEngine, error) {
	return &memoryKVDB{
		tree: llrb.New(),
	}, nil
}

func (db *memoryKVDB) Get(key string) (string, error) {
	db.lock.RLock()
	defer db.lock.RUnlock()
	item := db.tree.Get(&kvItem{key: key})
	if item == nil {
		return "", nil
	}
	return item.(*kvItem).val, nil
}

func (db *memoryKVDB) Put(key string, val string) error {
	db.lock.Lock()
	db.tree.ReplaceOrInsert(&kvItem{key: key, val: val})
	db.lock.Unlock()
	return nil
}

func (db *memoryKVDB) Find(beginKey string, endKey string) (kvdbtypes.Iterator, error) {
	var items []kvdbtypes.KVItem
	db.lock.RLock()
	db.tree.AscendRange(&kvItem{key: beginKey}, &kvItem{key: endKey}, func(i llrb.Item) bool {
		it := i.(*kvItem)
		items = append(items, kvdbtypes.KVItem{Key: it.key, Val: it.val})
		return true
	})
	db.lock.RUnlock()
	return &kvdbtypes.SliceIterator{Items: items}, nil
}

func (db *memoryKVDB) Close() {
}

func (db *memoryKVDB) IsConnectionError(err error) bool {
	return false
}
