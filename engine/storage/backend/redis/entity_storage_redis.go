package entitystorageredis

import (
	"io"

	"github.com/garyburd/redigo/redis"
	"github.com/netgodgame/netgod/engine/common"
	"github.com/netgodgame/netgod/engine/netutil"
	"github.com/netgodgame/netgod/engine/storage/storage_common"
	"github.com/pkg/errors"
)

var (
	dataPacker = netutil.MessagePackMsgPacker{}
)

type redisEntityStorage struct {
	c redis.Conn
}

// OpenRedis opens redis as entity storage
func OpenRedis(host string, dbindex int) (storagecommon.EntityStorage, error) {
	c, err := redis.Dial("tcp", host)
	if err != nil {
		return nil, errors.Wrap(err, "redis dail failed")
	}

	if _, err := c.Do("SELECT", dbindex); err != nil {
		c.Close()
		return nil, errors.Wrap(err, "redis select db failed")
	}

	return &redisEntityStorage{
		c: c,
	}, nil
}

func entityKey(typeName string, eid common.EntityID) string {
	return typeName + "$" + string(eid)
}

func (es *redisEntityStorage) List(typeName string) ([]common.EntityID, error) {
	keyMatch := typeName + "$*"
	prefixLen := len(typeName) + 1
	var eids []common.EntityID
	cursor := "0"
	for {
		r, err := redis.Values(es.c.Do("SCAN", cursor, "MATCH", keyMatch, "COUNT", 10000))
		if err != nil {
			return nil, err
		}
		cursor, err = redis.String(r[0], nil)
		if err != nil {
			return nil, err
		}
		keys, err := redis.Strings(r[1], nil)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			eids = append(eids, common.EntityID(key[prefixLen:]))
		}
		if cursor == "0" {
			break
		}
	}
	return eids, nil
}

func (es *redisEntityStorage) Write(typeName string, entityID common.EntityID, data interface{}) error {
	b, err := dataPacker.PackMsg(data, nil)
	if err != nil {
		return err
	}

	_, err = es.c.Do("SET", entityKey(typeName, entityID), b)
	return err
}

func (es *redisEntityStorage) Read(typeName string, entityID common.EntityID) (interface{}, error) {
	b, err := redis.Bytes(es.c.Do("GET", entityKey(typeName, entityID)))
	if err == redis.ErrNil {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	var data map[string]interface{}
	if err = dataPacker.UnpackMsg(b, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (es *redisEntityStorage) Exists(typeName string, entityID common.EntityID) (bool, error) {
	return redis.Bool(es.c.Do("EXISTS", entityKey(typeName, entityID)))
}

func (es *redisEntityStorage) Close() {
	es.c.Close()
}

func (es *redisEntityStorage) IsEOF(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}
