package entitystoragemongodb

import (
	"gopkg.in/mgo.v2"
	"gopkg.in/mgo.v2/bson"

	"io"

	"github.com/netgodgame/netgod/engine/common"
	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/netgodgame/netgod/engine/storage/storage_common"
)

const (
	_DEFAULT_DB_NAME = "netgod"
)

type mongoEntityStorage struct {
	db *mgo.Database
}

// OpenMongoDB opens mongodb as entity storage
func OpenMongoDB(url string, dbname string) (storagecommon.EntityStorage, error) {
	gwlog.Infof("Connecting MongoDB %s ...", url)
	session, err := mgo.Dial(url)
	if err != nil {
		return nil, err
	}

	session.SetMode(mgo.Monotonic, true)
	if dbname == "" {
		// if db is not specified, use default
		dbname = _DEFAULT_DB_NAME
	}
	return &mongoEntityStorage{
		db: session.DB(dbname),
	}, nil
}

func (es *mongoEntityStorage) Write(typeName string, entityID common.EntityID, data interface{}) error {
	col := es.getCollection(typeName)
	_, err := col.UpsertId(entityID, bson.M{
		"data": data,
	})
	return err
}

func (es *mongoEntityStorage) Read(typeName string, entityID common.EntityID) (interface{}, error) {
	col := es.getCollection(typeName)
	q := col.FindId(entityID)
	var doc bson.M
	err := q.One(&doc)
	if err == mgo.ErrNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	data, ok := doc["data"].(bson.M)
	if !ok {
		return doc["data"], nil
	}
	return es.convertM2Map(data), nil
}

func (es *mongoEntityStorage) convertM2Map(m bson.M) map[string]interface{} {
	ma := map[string]interface{}(m)
	es.convertM2MapInMap(ma)
	return ma
}

func (es *mongoEntityStorage) convertM2MapInMap(m map[string]interface{}) {
	for k, v := range m {
		switch im := v.(type) {
		case bson.M:
			m[k] = es.convertM2Map(im)
		case map[string]interface{}:
			es.convertM2MapInMap(im)
		case []interface{}:
			es.convertM2MapInList(im)
		}
	}
}

func (es *mongoEntityStorage) convertM2MapInList(l []interface{}) {
	for i, v := range l {
		switch im := v.(type) {
		case bson.M:
			l[i] = es.convertM2Map(im)
		case map[string]interface{}:
			es.convertM2MapInMap(im)
		case []interface{}:
			es.convertM2MapInList(im)
		}
	}
}

func (es *mongoEntityStorage) getCollection(typeName string) *mgo.Collection {
	return es.db.C(typeName)
}

func (es *mongoEntityStorage) List(typeName string) ([]common.EntityID, error) {
	col := es.getCollection(typeName)
	var docs []bson.M
	err := col.Find(nil).Select(bson.M{"_id": 1}).All(&docs)
	if err != nil {
		return nil, err
	}

	entityIDs := make([]common.EntityID, len(docs))
	for i, doc := range docs {
		id, _ := doc["_id"].(string)
		entityIDs[i] = common.EntityID(id)
	}
	return entityIDs, nil
}

func (es *mongoEntityStorage) Exists(typeName string, entityID common.EntityID) (bool, error) {
	col := es.getCollection(typeName)
	n, err := col.FindId(entityID).Count()
	return n > 0, err
}

func (es *mongoEntityStorage) Close() {
	es.db.Session.Close()
}

func (es *mongoEntityStorage) IsEOF(err error) bool {
	return err == io.EOF || err == io.ErrUnexpectedEOF
}
