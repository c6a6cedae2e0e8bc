package gwlog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGWLog(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "gwlog_test.log")
	SetSource("gwlog_test")
	SetOutput([]string{"stderr", logFile})
	defer SetOutput([]string{"stderr"})
	SetLevel(DebugLevel)

	if lv := ParseLevel("debug"); lv != DebugLevel {
		t.Fail()
	}
	if lv := ParseLevel("info"); lv != InfoLevel {
		t.Fail()
	}
	if lv := ParseLevel("warn"); lv != WarnLevel {
		t.Fail()
	}
	if lv := ParseLevel("warning"); lv != WarnLevel {
		t.Fail()
	}
	if lv := ParseLevel("error"); lv != ErrorLevel {
		t.Fail()
	}
	if lv := ParseLevel("panic"); lv != PanicLevel {
		t.Fail()
	}
	if lv := ParseLevel("fatal"); lv != FatalLevel {
		t.Fail()
	}

	Debugf("this is a debug %d", 1)
	SetLevel(InfoLevel)
	if GetLevel() != InfoLevel {
		t.Errorf("level should be info, but is %s", GetLevel())
	}
	Debugf("SHOULD NOT SEE THIS!")
	Infof("this is an info %d", 2)
	Warnf("this is a warning %d", 3)
	TraceError("this is a trace error %d", 4)
	func() {
		defer func() {
			_ = recover()
		}()
		Panicf("this is a panic %d", 4)
	}()
	Sync()

	if st, err := os.Stat(logFile); err != nil || st.Size() == 0 {
		t.Errorf("log file should be written: %v", err)
	}
	SetLevel(DebugLevel)
}
