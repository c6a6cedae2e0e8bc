package crontab

import (
	"time"

	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/netgodgame/netgod/engine/gwutils"
	timer "github.com/xiaonanln/goTimer"
)

const (
	_CRONTAB_TIME_OFFSET = time.Second * 2
	// Any matches every value of a field
	Any = -1
)

var (
	cancelledHandles []Handle
	entries          = map[Handle]*entry{}
	nextHandle       = Handle(1)
	minuteTimer      *timer.Timer
)

// Handle is the type of return value of Register, can be used to cancel the register
type Handle int

// Spec is the time condition of a crontab entry.
//
// A field >= 0 matches that exact value, a negative field -n matches every n-th value (Any matches all).
// DayOfWeek 0 and 7 both mean Sunday.
type Spec struct {
	Minute, Hour, Day, Month, DayOfWeek int
}

type entry struct {
	spec Spec
	cb   func()
}

func matchField(want int, got int) bool {
	if want >= 0 {
		return want == got
	}
	return got%-want == 0
}

func (s Spec) match(t time.Time) bool {
	if !matchField(s.Minute, t.Minute()) || !matchField(s.Hour, t.Hour()) ||
		!matchField(s.Day, t.Day()) || !matchField(s.Month, int(t.Month())) {
		return false
	}

	if s.DayOfWeek < 0 {
		return true
	}
	if s.DayOfWeek == 7 {
		return t.Weekday() == time.Sunday
	}
	return s.DayOfWeek == int(t.Weekday())
}

func (s Spec) validate() {
	if s.Minute > 59 || s.Minute < -60 {
		gwlog.Panicf("invalid minute = %d", s.Minute)
	}
	if s.Hour > 23 || s.Hour < -24 {
		gwlog.Panicf("invalid hour = %d", s.Hour)
	}
	if s.Day > 31 || s.Day < -31 || s.Day == 0 {
		gwlog.Panicf("invalid day = %d", s.Day)
	}
	if s.Month > 12 || s.Month < -12 || s.Month == 0 {
		gwlog.Panicf("invalid month = %d", s.Month)
	}
	if s.DayOfWeek > 7 || s.DayOfWeek < -1 {
		gwlog.Panicf("invalid dayofweek = %d", s.DayOfWeek)
	}
}

// Register a callback which will be executed in the engine loop when the time condition is satisfied
func Register(spec Spec, cb func()) Handle {
	spec.validate()

	h := nextHandle
	nextHandle++
	entries[h] = &entry{spec: spec, cb: cb}
	return h
}

// Hourly registers a callback executed at the given minute of every hour
func Hourly(minute int, cb func()) Handle {
	return Register(Spec{Minute: minute, Hour: Any, Day: Any, Month: Any, DayOfWeek: Any}, cb)
}

// Unregister a registered crontab handle
func (h Handle) Unregister() {
	cancelledHandles = append(cancelledHandles, h)
}

func unregisterCancelledHandles() {
	for _, h := range cancelledHandles {
		gwlog.Debugf("crontab: cancelling %d", h)
		delete(entries, h)
	}
	cancelledHandles = nil
}

// Initialize crontab module, called by the engine before the loop starts.
// Entries are checked every minute, 2 seconds after the minute begins.
func Initialize() {
	now := time.Now()
	sec := now.Second()
	var d time.Duration
	if time.Second*time.Duration(sec) < _CRONTAB_TIME_OFFSET {
		d = _CRONTAB_TIME_OFFSET - time.Second*time.Duration(sec)
	} else {
		d = time.Second*time.Duration(60-sec) + _CRONTAB_TIME_OFFSET
	}
	d -= time.Nanosecond * time.Duration(now.Nanosecond())

	gwlog.Debugf("crontab: current time is %s, first check after %s", now, d)
	timer.AddCallback(d, func() {
		minuteTimer = timer.AddTimer(time.Minute, func() { check(time.Now()) })
		check(time.Now())
	})
}

// Shutdown stops checking crontab entries
func Shutdown() {
	if minuteTimer != nil {
		minuteTimer.Cancel()
		minuteTimer = nil
	}
}

func check(now time.Time) {
	unregisterCancelledHandles()

	for _, entry := range entries {
		if entry.spec.match(now) {
			gwutils.RunPanicless(entry.cb)
		}
	}

	unregisterCancelledHandles()
}
