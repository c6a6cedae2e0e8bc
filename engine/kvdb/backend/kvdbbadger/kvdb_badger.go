package kvdbbadger

import (
	"github.com/dgraph-io/badger/v4"
	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/netgodgame/netgod/engine/kvdb/types"
	"github.com/pkg/errors"
)

type badgerKVDB struct {
	db *badger.DB
}

// OpenBadgerKVDB opens a badger database in directory as KVDB engine
func OpenBadgerKVDB(directory string) (kvdbtypes.KVDBEngine, error) {
	opts := badger.DefaultOptions(directory).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "open badger at %s", directory)
	}
	return &badgerKVDB{db: db}, nil
}

func (kvdb *badgerKVDB) Get(key string) (val string, err error) {
	err = kvdb.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			val = string(v)
			return nil
		})
	})
	if err == badger.ErrKeyNotFound {
		err = nil
	}
	return
}

func (kvdb *badgerKVDB) Put(key string, val string) error {
	return kvdb.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(val))
	})
}

func (kvdb *badgerKVDB) Find(beginKey string, endKey string) (kvdbtypes.Iterator, error) {
	var items []kvdbtypes.KVItem
	err := kvdb.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte(beginKey)); it.Valid(); it.Next() {
			item := it.Item()
			key := string(item.Key())
			if key >= endKey {
				break
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			items = append(items, kvdbtypes.KVItem{Key: key, Val: string(val)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &kvdbtypes.SliceIterator{Items: items}, nil
}

func (kvdb *badgerKVDB) Close() {
	if err := kvdb.db.Close(); err != nil {
		gwlog.Errorf("badger kvdb: close error: %s", err)
	}
}

func (kvdb *badgerKVDB) IsConnectionError(err error) bool {
	return err == badger.ErrDBClosed
}
