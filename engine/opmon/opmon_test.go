package opmon

import (
	"testing"
	"time"

	"github.com/bmizerany/assert"
)

func TestOperation(t *testing.T) {
	for i := 0; i < 3; i++ {
		op := StartOperation("opmon_test.op")
		time.Sleep(time.Millisecond)
		d := op.Finish(time.Hour)
		assert.T(t, d >= time.Millisecond, "duration should be recorded")
	}

	var found bool
	for _, s := range Snapshot() {
		if s.Name == "opmon_test.op" {
			found = true
			assert.Equal(t, uint64(3), s.Count)
			assert.T(t, s.MaxDuration >= s.Avg(), "max should be >= avg")
		}
	}
	assert.T(t, found, "operation should be in snapshot")

	Dump()
	for _, s := range Snapshot() {
		assert.T(t, s.Name != "opmon_test.op", "dump should reset stats")
	}
}
