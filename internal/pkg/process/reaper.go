package process

import (
	"sync"

	"bitbucket.org/airenas/vidscribe/internal/pkg/cmdapp"
	"github.com/hashicorp/go-reap"
)

//StartReaper reaps zombie children when the service runs as PID 1.
//Runners must share the returned lock so the reaper does not steal their exit codes.
func StartReaper() *sync.RWMutex {
	lock := &sync.RWMutex{}
	if !reap.IsSupported() {
		cmdapp.Log.Warn("Children reaping is not supported")
		return lock
	}
	cmdapp.Log.Info("Init children reaper")
	pids := make(reap.PidCh, 1)
	errs := make(reap.ErrorCh, 1)
	go reap.ReapChildren(pids, errs, nil, lock)
	go debugReap(pids, errs)
	return lock
}

func debugReap(pids reap.PidCh, errs reap.ErrorCh) {
	for {
		select {
		case pid := <-pids:
			cmdapp.Log.Debugf("Reaped child process: %d", pid)
		case err := <-errs:
			cmdapp.Log.Warnf("Reaper error: %v", err)
		}
	}
}
