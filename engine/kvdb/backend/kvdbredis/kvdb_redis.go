package kvdbredis

import (
	"io"

	"github.com/garyburd/redigo/redis"
	"github.com/netgodgame/netgod/engine/kvdb/types"
	"github.com/pkg/errors"
)

const (
	keyPrefix = "_KV_"
	// keyIndex is a sorted set of all keys (score 0) used for range queries by ZRANGEBYLEX
	keyIndex = "_KV_INDEX_"
)

type redisKVDB struct {
	c redis.Conn
}

// OpenRedisKVDB opens Redis for KVDB backend
func OpenRedisKVDB(host string, dbindex int) (kvdbtypes.KVDBEngine, error) {
	c, err := redis.Dial("tcp", host)
	if err != nil {
		return nil, errors.Wrap(err, "redis dail failed")
	}

	if _, err := c.Do("SELECT", dbindex); err != nil {
		c.Close()
		return nil, errors.Wrap(err, "redis select db failed")
	}

	return &redisKVDB{c: c}, nil
}

func (db *redisKVDB) Get(key string) (val string, err error) {
	r, err := db.c.Do("GET", keyPrefix+key)
	if err != nil {
		return "", err
	}
	if r == nil {
		return "", nil
	}
	return redis.String(r, nil)
}

func (db *redisKVDB) Put(key string, val string) error {
	if _, err := db.c.Do("SET", keyPrefix+key, val); err != nil {
		return err
	}
	_, err := db.c.Do("ZADD", keyIndex, 0, key)
	return err
}

func (db *redisKVDB) Find(beginKey string, endKey string) (kvdbtypes.Iterator, error) {
	keys, err := redis.Strings(db.c.Do("ZRANGEBYLEX", keyIndex, "["+beginKey, "("+endKey))
	if err != nil {
		return nil, err
	}
	items := make([]kvdbtypes.KVItem, 0, len(keys))
	for _, key := range keys {
		val, err := db.Get(key)
		if err != nil {
			return nil, err
		}
		items = append(items, kvdbtypes.KVItem{Key: key, Val: val})
	}
	return &kvdbtypes.SliceIterator{Items: items}, nil
}

func (db *redisKVDB) Close() {
	db.c.Close()
}

func (db *redisKVDB) IsConnectionError(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}
