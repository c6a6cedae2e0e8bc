package storage

import (
	"strconv"
	"time"

	"github.com/netgodgame/netgod/engine/common"
	"github.com/netgodgame/netgod/engine/config"
	"github.com/netgodgame/netgod/engine/consts"
	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/netgodgame/netgod/engine/opmon"
	"github.com/netgodgame/netgod/engine/post"
	"github.com/netgodgame/netgod/engine/storage/backend/filesystem"
	"github.com/netgodgame/netgod/engine/storage/backend/mongodb"
	"github.com/netgodgame/netgod/engine/storage/backend/redis"
	"github.com/netgodgame/netgod/engine/storage/storage_common"
	"github.com/pkg/errors"
	"github.com/xiaonanln/go-xnsyncutil/xnsyncutil"
)

var (
	storageCfg               *config.StorageConfig
	storageEngine            storagecommon.EntityStorage
	operationQueue           *xnsyncutil.SyncQueue
	storageRoutineTerminated *xnsyncutil.OneTimeCond
)

type saveRequest struct {
	TypeName string
	EntityID common.EntityID
	Data     interface{}
	Callback SaveCallbackFunc
}

type loadRequest struct {
	TypeName string
	EntityID common.EntityID
	Callback LoadCallbackFunc
}

type existsRequest struct {
	TypeName string
	EntityID common.EntityID
	Callback ExistsCallbackFunc
}

type listEntityIDsRequest struct {
	TypeName string
	Callback ListCallbackFunc
}

// SaveCallbackFunc is the callback type of storage Save
type SaveCallbackFunc func()

// LoadCallbackFunc is the callback type of storage Load
type LoadCallbackFunc func(data interface{}, err error)

// ExistsCallbackFunc is the callback type of storage Exists
type ExistsCallbackFunc func(exists bool, err error)

// ListCallbackFunc is the callback type of storage List
type ListCallbackFunc func([]common.EntityID, error)

// Save saves entity data to storage
//
// Saving is retried until it succeeds, so the callback is only called on success
func Save(typeName string, entityID common.EntityID, data interface{}, callback SaveCallbackFunc) {
	operationQueue.Push(saveRequest{
		TypeName: typeName,
		EntityID: entityID,
		Data:     data,
		Callback: callback,
	})
	checkOperationQueueLen()
}

// Load loads entity data from storage, data is nil if the entity is not saved
func Load(typeName string, entityID common.EntityID, callback LoadCallbackFunc) {
	operationQueue.Push(loadRequest{
		TypeName: typeName,
		EntityID: entityID,
		Callback: callback,
	})
	checkOperationQueueLen()
}

// Exists checks if entity of specified ID exists in storage
func Exists(typeName string, entityID common.EntityID, callback ExistsCallbackFunc) {
	operationQueue.Push(existsRequest{
		TypeName: typeName,
		EntityID: entityID,
		Callback: callback,
	})
	checkOperationQueueLen()
}

// ListEntityIDs returns all entity IDs of the type in storage
func ListEntityIDs(typeName string, callback ListCallbackFunc) {
	operationQueue.Push(listEntityIDsRequest{
		TypeName: typeName,
		Callback: callback,
	})
	checkOperationQueueLen()
}

var recentWarnedQueueLen = 0

func checkOperationQueueLen() {
	qlen := operationQueue.Len()
	if qlen > 100 && qlen%100 == 0 && recentWarnedQueueLen != qlen {
		gwlog.Warnf("Storage operation queue length = %d", qlen)
		recentWarnedQueueLen = qlen
	}
}

// Initialized returns if the storage module is running
func Initialized() bool {
	return operationQueue != nil
}

// Shutdown storage module, pending operations are finished before returning
func Shutdown() {
	if operationQueue == nil {
		return
	}
	operationQueue.Close()
	storageRoutineTerminated.Wait()
	operationQueue = nil
}

// Initialize the storage module with the storage config
func Initialize(cfg *config.StorageConfig) error {
	storageCfg = cfg
	if err := assureStorageEngineReady(); err != nil {
		return errors.Wrap(err, "storage engine is not ready")
	}
	operationQueue = xnsyncutil.NewSyncQueue()
	storageRoutineTerminated = xnsyncutil.NewOneTimeCond()
	go storageRoutine()
	return nil
}

// OpenEngine opens the storage backend described by cfg
func OpenEngine(cfg *config.StorageConfig) (storagecommon.EntityStorage, error) {
	switch cfg.Type {
	case "filesystem":
		return entitystoragefilesystem.OpenDirectory(cfg.Directory)
	case "mongodb":
		return entitystoragemongodb.OpenMongoDB(cfg.Url, cfg.DB)
	case "redis":
		dbindex := 0
		if cfg.DB != "" {
			var err error
			if dbindex, err = strconv.Atoi(cfg.DB); err != nil {
				return nil, errors.Wrap(err, "redis db must be integer")
			}
		}
		return entitystorageredis.OpenRedis(cfg.Url, dbindex)
	}
	return nil, errors.Errorf("unknown storage type: %s", cfg.Type)
}

func assureStorageEngineReady() (err error) {
	if storageEngine != nil {
		return
	}
	storageEngine, err = OpenEngine(storageCfg)
	return
}

func checkEOF(err error) {
	if err != nil && storageEngine.IsEOF(err) {
		storageEngine.Close()
		storageEngine = nil
	}
}

func storageRoutine() {
	defer func() {
		err := recover()
		if err != nil {
			gwlog.TraceError("storage routine paniced: %s, restarting ...", err)
			go storageRoutine() // restart the storage routine
		} else {
			// normal quit
			if storageEngine != nil {
				storageEngine.Close()
				storageEngine = nil
			}
			storageRoutineTerminated.Signal()
		}
	}()

	for {
		err := assureStorageEngineReady()
		if err != nil {
			gwlog.Errorf("Storage engine is not ready: %s", err)
			time.Sleep(time.Second)
			continue
		}

		op := operationQueue.Pop()
		if op == nil { // entity storage closed
			break
		}

		switch req := op.(type) {
		case saveRequest:
			handleSaveRequest(req)
		case loadRequest:
			monop := opmon.StartOperation("storage.load")
			if consts.DEBUG_SAVE_LOAD {
				gwlog.Debugf("storage: LOADING %s %s ...", req.TypeName, req.EntityID)
			}
			data, err := storageEngine.Read(req.TypeName, req.EntityID)
			if err != nil {
				gwlog.Errorf("storage: load %s %s failed: %s", req.TypeName, req.EntityID, err)
				data = nil
			}
			monop.Finish(consts.STORAGE_OPERATION_WARN_THRESHOLD)
			if req.Callback != nil {
				post.Post(func() {
					req.Callback(data, err)
				})
			}
			checkEOF(err)
		case existsRequest:
			monop := opmon.StartOperation("storage.exists")
			exists, err := storageEngine.Exists(req.TypeName, req.EntityID)
			monop.Finish(consts.STORAGE_OPERATION_WARN_THRESHOLD)
			if req.Callback != nil {
				post.Post(func() {
					req.Callback(exists, err)
				})
			}
			checkEOF(err)
		case listEntityIDsRequest:
			monop := opmon.StartOperation("storage.list")
			eids, err := storageEngine.List(req.TypeName)
			if err != nil {
				gwlog.Errorf("ListEntityIDs %s failed: %s", req.TypeName, err)
			}
			monop.Finish(consts.STORAGE_OPERATION_WARN_THRESHOLD * 10)
			if req.Callback != nil {
				post.Post(func() {
					req.Callback(eids, err)
				})
			}
			checkEOF(err)
		default:
			gwlog.Panicf("storage: unknown operation: %v", op)
		}
	}
}

func handleSaveRequest(saveReq saveRequest) {
	monop := opmon.StartOperation("storage.save")
	for {
		if consts.DEBUG_SAVE_LOAD {
			gwlog.Debugf("storage: SAVING %s %s ...", saveReq.TypeName, saveReq.EntityID)
		}
		if err := assureStorageEngineReady(); err != nil {
			gwlog.Errorf("Storage engine is not ready: %s", err)
			time.Sleep(time.Second) // wait for 1 second to retry
			continue
		}

		err := storageEngine.Write(saveReq.TypeName, saveReq.EntityID, saveReq.Data)
		if err == nil {
			break
		}
		gwlog.Errorf("storage: save failed: %s", err)
		if storageEngine.IsEOF(err) {
			checkEOF(err)
			continue // retry with a new connection
		}
		// data can not be saved at all: drop it
		monop.Finish(consts.STORAGE_OPERATION_WARN_THRESHOLD)
		return
	}

	monop.Finish(consts.STORAGE_OPERATION_WARN_THRESHOLD)
	if saveReq.Callback != nil {
		post.Post(post.PostCallback(saveReq.Callback))
	}
}
