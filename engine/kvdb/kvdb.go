package kvdb

import (
	"strconv"
	"time"

	"github.com/netgodgame/netgod/engine/config"
	"github.com/netgodgame/netgod/engine/consts"
	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/netgodgame/netgod/engine/kvdb/backend/kvdbbadger"
	"github.com/netgodgame/netgod/engine/kvdb/backend/kvdbmemory"
	"github.com/netgodgame/netgod/engine/kvdb/backend/kvdbmongodb"
	"github.com/netgodgame/netgod/engine/kvdb/backend/kvdbredis"
	"github.com/netgodgame/netgod/engine/kvdb/backend/kvdbrediscluster"
	"github.com/netgodgame/netgod/engine/kvdb/backend/kvdbsql"
	"github.com/netgodgame/netgod/engine/kvdb/types"
	"github.com/netgodgame/netgod/engine/opmon"
	"github.com/netgodgame/netgod/engine/post"
	"github.com/pkg/errors"
	"github.com/xiaonanln/go-xnsyncutil/xnsyncutil"
)

var (
	kvdbCfg        *config.KVDBConfig
	kvdbEngine     kvdbtypes.KVDBEngine
	kvdbOpQueue    *xnsyncutil.SyncQueue
	kvdbTerminated *xnsyncutil.OneTimeCond
)

// KVDBGetCallback is the callback of Get, called in the engine loop
type KVDBGetCallback func(val string, err error)

// KVDBPutCallback is the callback of Put, called in the engine loop
type KVDBPutCallback func(err error)

// KVDBGetRangeCallback is the callback of GetRange, called in the engine loop
type KVDBGetRangeCallback func(items []kvdbtypes.KVItem, err error)

// Initialize the KVDB, all operations are run by a single KVDB goroutine in order
func Initialize(cfg *config.KVDBConfig) error {
	if cfg.Type == "" {
		return nil
	}

	gwlog.Infof("KVDB initializing, config:\n%s", config.DumpPretty(cfg))
	kvdbCfg = cfg
	if err := assureKVDBEngineReady(); err != nil {
		return err
	}

	kvdbOpQueue = xnsyncutil.NewSyncQueue()
	kvdbTerminated = xnsyncutil.NewOneTimeCond()
	go kvdbRoutine()
	return nil
}

// Initialized returns if the KVDB module is running
func Initialized() bool {
	return kvdbOpQueue != nil
}

// OpenEngine opens the KVDB backend described by cfg
func OpenEngine(cfg *config.KVDBConfig) (kvdbtypes.KVDBEngine, error) {
	switch cfg.Type {
	case "memory":
		return kvdbmemory.OpenMemoryKVDB()
	case "badger":
		return kvdbbadger.OpenBadgerKVDB(cfg.Directory)
	case "mongodb":
		return kvdbmongodb.OpenMongoKVDB(cfg.Url, cfg.DB, cfg.Collection)
	case "redis":
		dbindex, err := strconv.Atoi(cfg.DB)
		if err != nil {
			return nil, errors.Wrap(err, "redis db must be integer")
		}
		return kvdbredis.OpenRedisKVDB(cfg.Url, dbindex)
	case "redis_cluster":
		return kvdbrediscluster.OpenRedisKVDB(cfg.StartNodes.ToList())
	case "sql":
		return kvdbsql.OpenSQLKVDB(cfg.Driver, cfg.Url)
	}
	return nil, errors.Errorf("KVDB type %s is not implemented", cfg.Type)
}

func assureKVDBEngineReady() (err error) {
	if kvdbEngine != nil { // connection is valid
		return
	}
	kvdbEngine, err = OpenEngine(kvdbCfg)
	return
}

type getReq struct {
	key      string
	callback KVDBGetCallback
}

type putReq struct {
	key      string
	val      string
	callback KVDBPutCallback
}

type getRangeReq struct {
	beginKey string
	endKey   string
	callback KVDBGetRangeCallback
}

// Get reads the value of key; missing keys give ""
func Get(key string, callback KVDBGetCallback) {
	kvdbOpQueue.Push(&getReq{
		key, callback,
	})
	checkOperationQueueLen()
}

// Put writes the value of key
func Put(key string, val string, callback KVDBPutCallback) {
	kvdbOpQueue.Push(&putReq{
		key, val, callback,
	})
	checkOperationQueueLen()
}

// GetRange reads all items with beginKey <= key < endKey, ordered by key
func GetRange(beginKey string, endKey string, callback KVDBGetRangeCallback) {
	kvdbOpQueue.Push(&getRangeReq{
		beginKey, endKey, callback,
	})
	checkOperationQueueLen()
}

// Close stops accepting operations; pending operations are still executed
func Close() {
	kvdbOpQueue.Close()
}

// WaitTerminated waits for the KVDB goroutine to finish all operations and close the engine
func WaitTerminated() {
	kvdbTerminated.Wait()
	kvdbOpQueue = nil
}

var recentWarnedQueueLen = 0

func checkOperationQueueLen() {
	qlen := kvdbOpQueue.Len()
	if qlen > 100 && qlen%100 == 0 && recentWarnedQueueLen != qlen {
		gwlog.Warnf("KVDB operation queue length = %d", qlen)
		recentWarnedQueueLen = qlen
	}
}

func kvdbRoutine() {
	for {
		err := assureKVDBEngineReady()
		if err != nil {
			gwlog.Errorf("KVDB engine is not ready: %s", err)
			time.Sleep(time.Second)
			continue
		}

		req := kvdbOpQueue.Pop()
		if req == nil { // queue is closed, returning nil
			kvdbEngine.Close()
			kvdbEngine = nil
			break
		}

		var op *opmon.Operation
		switch r := req.(type) {
		case *getReq:
			op = opmon.StartOperation("kvdb.get")
			handleGetReq(r)
		case *putReq:
			op = opmon.StartOperation("kvdb.put")
			handlePutReq(r)
		case *getRangeReq:
			op = opmon.StartOperation("kvdb.getRange")
			handleGetRangeReq(r)
		default:
			gwlog.Panicf("unknown kvdb request: %T", req)
		}
		op.Finish(consts.STORAGE_OPERATION_WARN_THRESHOLD)
	}

	kvdbTerminated.Signal()
}

func checkConnectionError(err error) {
	if err != nil && kvdbEngine.IsConnectionError(err) {
		kvdbEngine.Close()
		kvdbEngine = nil
	}
}

func handleGetReq(getReq *getReq) {
	val, err := kvdbEngine.Get(getReq.key)
	if getReq.callback != nil {
		post.Post(func() {
			getReq.callback(val, err)
		})
	}
	checkConnectionError(err)
}

func handlePutReq(putReq *putReq) {
	err := kvdbEngine.Put(putReq.key, putReq.val)
	if putReq.callback != nil {
		post.Post(func() {
			putReq.callback(err)
		})
	}
	checkConnectionError(err)
}

func handleGetRangeReq(getRangeReq *getRangeReq) {
	var items []kvdbtypes.KVItem
	it, err := kvdbEngine.Find(getRangeReq.beginKey, getRangeReq.endKey)
	if err == nil {
		items, err = kvdbtypes.Collect(it)
	}
	if err != nil {
		items = nil
	}

	if getRangeReq.callback != nil {
		post.Post(func() {
			getRangeReq.callback(items, err)
		})
	}
	checkConnectionError(err)
}
