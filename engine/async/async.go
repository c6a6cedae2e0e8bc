package async

import (
	"sync"

	"github.com/netgodgame/netgod/engine/consts"
	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/netgodgame/netgod/engine/gwutils"
	"github.com/netgodgame/netgod/engine/post"
)

var (
	numAsyncJobWorkersRunning sync.WaitGroup
)

// AsyncCallback is called in the engine loop when an async job finishes
type AsyncCallback func(res interface{}, err error)

// Callback posts the callback to the engine loop
func (ac AsyncCallback) Callback(res interface{}, err error) {
	if ac != nil {
		post.Post(func() {
			ac(res, err)
		})
	}
}

// AsyncRoutine is the job body, run in the worker goroutine of its group
type AsyncRoutine func() (res interface{}, err error)

// AsyncJobWorker runs the jobs of one group in order
type AsyncJobWorker struct {
	group    string
	jobQueue chan asyncJobItem
}

type asyncJobItem struct {
	routine  AsyncRoutine
	callback AsyncCallback
}

func newAsyncJobWorker(group string) *AsyncJobWorker {
	ajw := &AsyncJobWorker{
		group:    group,
		jobQueue: make(chan asyncJobItem, consts.ASYNC_JOB_QUEUE_MAXLEN),
	}
	numAsyncJobWorkersRunning.Add(1)
	go func() {
		gwutils.RepeatUntilPanicless(ajw.loop)
		numAsyncJobWorkersRunning.Done()
	}()
	return ajw
}

func (ajw *AsyncJobWorker) appendJob(routine AsyncRoutine, callback AsyncCallback) {
	ajw.jobQueue <- asyncJobItem{routine, callback}
}

func (ajw *AsyncJobWorker) loop() {
	for item := range ajw.jobQueue {
		res, err := item.routine()
		item.callback.Callback(res, err)
	}
}

var (
	asyncJobWorkersLock sync.RWMutex
	asyncJobWorkers     = map[string]*AsyncJobWorker{}
)

func getAsyncJobWorker(group string) (ajw *AsyncJobWorker) {
	asyncJobWorkersLock.RLock()
	ajw = asyncJobWorkers[group]
	asyncJobWorkersLock.RUnlock()

	if ajw == nil {
		asyncJobWorkersLock.Lock()
		ajw = asyncJobWorkers[group]
		if ajw == nil {
			ajw = newAsyncJobWorker(group)
			asyncJobWorkers[group] = ajw
		}
		asyncJobWorkersLock.Unlock()
	}
	return
}

// AppendAsyncJob appends a job to the group; jobs of the same group run sequentially
func AppendAsyncJob(group string, routine AsyncRoutine, callback AsyncCallback) {
	ajw := getAsyncJobWorker(group)
	ajw.appendJob(routine, callback)
}

// Shutdown closes all job queues and waits for running jobs to finish
func Shutdown() {
	asyncJobWorkersLock.Lock()
	for group, ajw := range asyncJobWorkers {
		gwlog.Debugf("async: closing job group %s (%d jobs left)", group, len(ajw.jobQueue))
		close(ajw.jobQueue)
	}
	asyncJobWorkers = map[string]*AsyncJobWorker{}
	asyncJobWorkersLock.Unlock()

	numAsyncJobWorkersRunning.Wait()
}
