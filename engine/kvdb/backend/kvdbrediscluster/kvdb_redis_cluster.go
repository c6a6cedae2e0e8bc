package kvdbrediscluster

import (
	"io"
	"time"

	rediscluster "github.com/chasex/redis-go-cluster"
	"github.com/netgodgame/netgod/engine/kvdb/types"
	"github.com/pkg/errors"
)

const (
	keyPrefix = "_KV_"
	// keyIndex lives in a single slot, so range queries need no cross-node scan
	keyIndex = "_KV_INDEX_"
)

type redisClusterKVDB struct {
	c *rediscluster.Cluster
}

// OpenRedisKVDB opens Redis Cluster for KVDB backend
func OpenRedisKVDB(startNodes []string) (kvdbtypes.KVDBEngine, error) {
	c, err := rediscluster.NewCluster(&rediscluster.Options{
		StartNodes:   startNodes,
		ConnTimeout:  10 * time.Second, // Connection timeout
		ReadTimeout:  60 * time.Second, // Read timeout
		WriteTimeout: 60 * time.Second, // Write timeout
		KeepAlive:    1,                // Maximum keep alive connecion in each node
		AliveTime:    10 * time.Minute, // Keep alive timeout
	})
	if err != nil {
		return nil, errors.Wrap(err, "redis cluster dail failed")
	}

	return &redisClusterKVDB{c: c}, nil
}

func (db *redisClusterKVDB) Get(key string) (val string, err error) {
	r, err := db.c.Do("GET", keyPrefix+key)
	if err != nil {
		return "", err
	}
	if r == nil {
		return "", nil
	}
	return rediscluster.String(r, nil)
}

func (db *redisClusterKVDB) Put(key string, val string) error {
	if _, err := db.c.Do("SET", keyPrefix+key, val); err != nil {
		return err
	}
	_, err := db.c.Do("ZADD", keyIndex, 0, key)
	return err
}

func (db *redisClusterKVDB) Find(beginKey string, endKey string) (kvdbtypes.Iterator, error) {
	keys, err := rediscluster.Strings(db.c.Do("ZRANGEBYLEX", keyIndex, "["+beginKey, "("+endKey))
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

func (db *redisClusterKVDB) Close() {
	db.c.Close()
}

func (db *redisClusterKVDB) IsConnectionError(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}
