package crontab

import (
	"testing"
	"time"

	"github.com/bmizerany/assert"
)

var everyMinute = Spec{Any, Any, Any, Any, Any}

func TestRegister(t *testing.T) {
	n := 0
	h := Register(everyMinute, func() {
		n++
	})
	defer h.Unregister()
	check(time.Now())
	assert.Equal(t, 1, n)
}

func TestUnregister(t *testing.T) {
	var h Handle
	n := 0
	h = Register(everyMinute, func() {
		n++
		h.Unregister()
	})
	check(time.Now())
	check(time.Now())
	assert.Equal(t, 1, n)
}

func TestSpecMatch(t *testing.T) {
	// Sunday 2024-03-10 14:30
	ts := time.Date(2024, time.March, 10, 14, 30, 0, 0, time.UTC)
	assert.T(t, everyMinute.match(ts), "every minute should match")
	assert.T(t, Spec{30, 14, 10, 3, 0}.match(ts), "exact time should match")
	assert.T(t, Spec{30, 14, 10, 3, 7}.match(ts), "7 is sunday")
	assert.T(t, !Spec{31, Any, Any, Any, Any}.match(ts), "wrong minute")
	assert.T(t, Spec{-15, Any, Any, Any, Any}.match(ts), "every 15 minutes")
	assert.T(t, !Spec{-7, Any, Any, Any, Any}.match(ts), "30 is not multiple of 7")
	assert.T(t, !Spec{Any, Any, Any, Any, 1}.match(ts), "not monday")
}

func TestHourly(t *testing.T) {
	ran := false
	h := Hourly(30, func() { ran = true })
	defer h.Unregister()
	check(time.Date(2024, time.January, 1, 5, 29, 0, 0, time.UTC))
	assert.T(t, !ran, "hourly callback should not run on other minutes")
	check(time.Date(2024, time.January, 1, 5, 30, 0, 0, time.UTC))
	assert.T(t, ran, "hourly callback should run on its minute")
}

func TestInvalidSpec(t *testing.T) {
	defer func() {
		assert.T(t, recover() != nil, "invalid spec should panic")
	}()
	Register(Spec{60, Any, Any, Any, Any}, func() {})
}
