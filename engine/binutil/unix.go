//go:build !windows

package binutil

import (
	"os"

	"github.com/netgodgame/netgod/engine/gwlog"
	"github.com/pkg/errors"
	"github.com/sevlyar/go-daemon"
	"golang.org/x/sys/unix"
)

// Daemonize forks the process into background; the parent exits
func Daemonize() *daemon.Context {
	context := new(daemon.Context)
	child, err := context.Reborn()

	if err != nil {
		// daemonize failed
		gwlog.Panicf("daemonize failed: %v", err)
	}

	if child != nil {
		gwlog.Infof("run in daemon mode")
		os.Exit(0)
		return nil
	}
	return context
}

// RaiseFileLimit raises the soft limit of open files to the hard limit and returns it
func RaiseFileLimit() (uint64, error) {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return 0, errors.Wrap(err, "getrlimit")
	}
	if rlim.Cur < rlim.Max {
		rlim.Cur = rlim.Max
		if err := unix.Setrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
			return 0, errors.Wrap(err, "setrlimit")
		}
	}
	return uint64(rlim.Cur), nil
}
