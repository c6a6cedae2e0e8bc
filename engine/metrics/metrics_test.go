package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(framesTotal)
	RecordFrame(10 * time.Millisecond)
	if got := testutil.ToFloat64(framesTotal) - before; got != 1 {
		t.Errorf("frames_total should grow by 1, got %v", got)
	}

	AddPacket("out", 100)
	AddPacket("out", 50)
	if got := testutil.ToFloat64(bytesTotal.WithLabelValues("out")); got < 150 {
		t.Errorf("bytes out should be at least 150, got %v", got)
	}

	IncConnection("tcp", false)
	if got := testutil.ToFloat64(connectionsTotal.WithLabelValues("tcp", "refused")); got < 1 {
		t.Errorf("refused connection should be counted")
	}

	SetSystemPerformance("renderer", 0.75)
	if got := testutil.ToFloat64(systemPerformance.WithLabelValues("renderer")); got != 0.75 {
		t.Errorf("renderer performance should be 0.75, got %v", got)
	}

	SetProcess(12.5, 1<<20)
	if got := testutil.ToFloat64(processRSS); got != 1<<20 {
		t.Errorf("rss should be 1MiB, got %v", got)
	}
}
