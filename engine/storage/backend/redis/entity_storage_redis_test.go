package entitystorageredis

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/bmizerany/assert"
	"github.com/netgodgame/netgod/engine/common"
)

func TestRedisEntityStorage(t *testing.T) {
	s := miniredis.RunT(t)
	es, err := OpenRedis(s.Addr(), 0)
	if err != nil {
		t.Fatal(err)
	}
	defer es.Close()

	entityID := common.GenEntityID()
	data, err := es.Read("Player", entityID)
	if err != nil || data != nil {
		t.Errorf("should be nil: %v %v", data, err)
	}

	testData := map[string]interface{}{
		"name":   "ngt",
		"online": true,
		"score":  1.5,
	}
	if err := es.Write("Player", entityID, testData); err != nil {
		t.Fatal(err)
	}

	verifyData, err := es.Read("Player", entityID)
	if err != nil {
		t.Fatal(err)
	}
	m := verifyData.(map[string]interface{})
	assert.Equal(t, "ngt", m["name"])
	assert.Equal(t, true, m["online"])
	assert.Equal(t, 1.5, m["score"])

	exists, err := es.Exists("Player", entityID)
	assert.Equal(t, nil, err)
	assert.T(t, exists, "should exist")

	ids, err := es.List("Player")
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, []common.EntityID{entityID}, ids)
}
