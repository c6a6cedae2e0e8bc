package kvdb

import (
	"math/rand"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/bmizerany/assert"
	"github.com/netgodgame/netgod/engine/common"
	"github.com/netgodgame/netgod/engine/config"
	"github.com/netgodgame/netgod/engine/kvdb/types"
)

func openTestKVDB(t testing.TB, cfg *config.KVDBConfig) kvdbtypes.KVDBEngine {
	kvdb, err := OpenEngine(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return kvdb
}

func openTestMemoryKVDB(t testing.TB) kvdbtypes.KVDBEngine {
	return openTestKVDB(t, &config.KVDBConfig{Type: "memory"})
}

func openTestBadgerKVDB(t testing.TB) kvdbtypes.KVDBEngine {
	return openTestKVDB(t, &config.KVDBConfig{Type: "badger", Directory: t.TempDir()})
}

func openTestSQLKVDB(t testing.TB) kvdbtypes.KVDBEngine {
	dsn := filepath.Join(t.TempDir(), "kvdb.sqlite")
	return openTestKVDB(t, &config.KVDBConfig{Type: "sql", Driver: "sqlite", Url: dsn})
}

func openTestRedisKVDB(t testing.TB) kvdbtypes.KVDBEngine {
	s := miniredis.RunT(t)
	return openTestKVDB(t, &config.KVDBConfig{Type: "redis", Url: s.Addr(), DB: "0", StartNodes: common.StringSet{}})
}

func TestMemoryBackend(t *testing.T) {
	testKVDBBackend(t, openTestMemoryKVDB(t))
}

func TestBadgerBackend(t *testing.T) {
	testKVDBBackend(t, openTestBadgerKVDB(t))
}

func TestSQLBackend(t *testing.T) {
	testKVDBBackend(t, openTestSQLKVDB(t))
}

func TestRedisBackend(t *testing.T) {
	testKVDBBackend(t, openTestRedisKVDB(t))
}

func TestUnknownBackend(t *testing.T) {
	_, err := OpenEngine(&config.KVDBConfig{Type: "cassandra"})
	assert.T(t, err != nil, "unknown backend should fail")
}

func testKVDBBackend(t *testing.T, kvdb kvdbtypes.KVDBEngine) {
	defer kvdb.Close()
	testKVDBBackendSet(t, kvdb)
	testBackendFind(t, kvdb)
}

func testKVDBBackendSet(t *testing.T, kvdb kvdbtypes.KVDBEngine) {
	val, err := kvdb.Get("__key_not_exists__")
	if err != nil || val != "" {
		t.Fatal(err)
	}

	for i := 0; i < 100; i++ {
		key := strconv.Itoa(rand.Intn(10000))
		val := strconv.Itoa(rand.Intn(10000))
		err = kvdb.Put(key, val)
		if err != nil {
			t.Fatal(err)
		}
		var verifyVal string
		verifyVal, err = kvdb.Get(key)
		if err != nil {
			t.Fatal(err)
		}

		if verifyVal != val {
			t.Errorf("%s != %s", val, verifyVal)
		}
	}

	if err := kvdb.Put("overwrite", "1"); err != nil {
		t.Fatal(err)
	}
	if err := kvdb.Put("overwrite", "2"); err != nil {
		t.Fatal(err)
	}
	val, _ = kvdb.Get("overwrite")
	assert.Equal(t, "2", val)
}

func testBackendFind(t *testing.T, kvdb kvdbtypes.KVDBEngine) {
	for _, key := range []string{"quest/a", "quest/b", "quest/c", "questz", "tx/1"} {
		if err := kvdb.Put(key, "v_"+key); err != nil {
			t.Fatal(err)
		}
	}

	it, err := kvdb.Find("quest/", "quest0")
	if err != nil {
		t.Fatal(err)
	}
	items, err := kvdbtypes.Collect(it)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, []kvdbtypes.KVItem{
		{Key: "quest/a", Val: "v_quest/a"},
		{Key: "quest/b", Val: "v_quest/b"},
		{Key: "quest/c", Val: "v_quest/c"},
	}, items)

	// end key is exclusive
	it, err = kvdb.Find("quest/a", "quest/c")
	if err != nil {
		t.Fatal(err)
	}
	items, _ = kvdbtypes.Collect(it)
	assert.Equal(t, 2, len(items))
}
