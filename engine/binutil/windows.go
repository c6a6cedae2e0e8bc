//go:build windows

package binutil

import "github.com/netgodgame/netgod/engine/gwlog"

type nopRelease int

func (nopRelease) Release() error {
	return nil
}

// Daemonize is not supported on windows
func Daemonize() nopRelease {
	gwlog.Warnf("can not run in daemon mode in windows, -d ignored")
	return nopRelease(0)
}

// RaiseFileLimit is a no-op on windows
func RaiseFileLimit() (uint64, error) {
	return 0, nil
}
