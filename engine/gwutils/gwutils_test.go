package gwutils

import (
	"fmt"
	"testing"

	"github.com/bmizerany/assert"
)

func TestRunPanicless(t *testing.T) {
	assert.T(t, RunPanicless(func() {
		panic(1)
	}), "should panic")
	assert.T(t, RunPanicless(func() {
		panic(fmt.Errorf("bad"))
	}), "should panic")
	assert.T(t, !RunPanicless(func() {}), "should not panic")
}

func TestRepeatUntilPanicless(t *testing.T) {
	n := 0
	RepeatUntilPanicless(func() {
		n++
		if n < 3 {
			panic(n)
		}
	})
	assert.Equal(t, 3, n)
}

func TestNextLargerKey(t *testing.T) {
	assert.T(t, NextLargerKey("a") > "a", "should be larger")
	assert.T(t, NextLargerKey("a") < "aa", "should be smaller than other keys")
}

func TestStats(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.Equal(t, 2.0, Mean([]float64{1, 2, 3}))
	assert.Equal(t, []float64{2, 3}, Tail([]float64{1, 2, 3}, 2))
	assert.Equal(t, 3, len(Tail([]float64{1, 2, 3}, 5)))
	assert.Equal(t, 0.5, Clamp(0.1, 0.5, 1.5))
	assert.Equal(t, 1.5, Clamp(2, 0.5, 1.5))
	assert.Equal(t, 1.0, Clamp(1, 0.5, 1.5))
}
