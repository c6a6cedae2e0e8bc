package kvdbmongodb

import (
	"io"

	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/netgodgame/netgod/engine/kvdb/types"
	"gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"
)

const (
	_DEFAULT_DB_NAME = "netgod"
	_VAL_KEY         = "_"
)

type mongoKVDB struct {
	s *mgo.Session
	c *mgo.Collection
}

// OpenMongoKVDB opens mongodb as KVDB engine
func OpenMongoKVDB(url string, dbname string, collectionName string) (kvdbtypes.KVDBEngine, error) {
	gwlog.Debugf("Connecting MongoDB ...")
	session, err := mgo.Dial(url)
	if err != nil {
		return nil, err
	}

	session.SetMode(mgo.Monotonic, true)
	if dbname == "" {
		// if db is not specified, use default
		dbname = _DEFAULT_DB_NAME
	}
	return &mongoKVDB{
		s: session,
		c: session.DB(dbname).C(collectionName),
	}, nil
}

func (kvdb *mongoKVDB) Put(key string, val string) error {
	_, err := kvdb.c.UpsertId(key, bson.M{
		_VAL_KEY: val,
	})
	return err
}

func (kvdb *mongoKVDB) Get(key string) (val string, err error) {
	var doc map[string]string
	err = kvdb.c.FindId(key).One(&doc)
	if err != nil {
		if err == mgo.ErrNotFound {
			err = nil
		}
		return
	}
	val = doc[_VAL_KEY]
	return
}

type mongoKVIterator struct {
	it *mgo.Iter
}

func (it *mongoKVIterator) Next() (kvdbtypes.KVItem, error) {
	var doc map[string]string
	if it.it.Next(&doc) {
		return kvdbtypes.KVItem{
			Key: doc["_id"],
			Val: doc[_VAL_KEY],
		}, nil
	}

	if err := it.it.Close(); err != nil {
		return kvdbtypes.KVItem{}, err
	}
	return kvdbtypes.KVItem{}, io.EOF
}

func (kvdb *mongoKVDB) Find(beginKey string, endKey string) (kvdbtypes.Iterator, error) {
	q := kvdb.c.Find(bson.M{"_id": bson.M{"$gte": beginKey, "$lt": endKey}}).Sort("_id")
	return &mongoKVIterator{
		it: q.Iter(),
	}, nil
}

func (kvdb *mongoKVDB) Close() {
	kvdb.s.Close()
}

func (kvdb *mongoKVDB) IsConnectionError(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}
