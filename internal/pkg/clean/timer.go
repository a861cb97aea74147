package clean

import (
	"time"

	"bitbucket.org/airenas/vidscribe/internal/pkg/cmdapp"
	"github.com/pkg/errors"
)

//OldProvider returns old staged file names
type OldProvider interface {
	Get() ([]string, error)
}

//Cleaner removes one staged file
type Cleaner interface {
	Clean(name string) error
}

//Timer runs cleaning periodically
type Timer struct {
	runEvery     time.Duration
	cleaner      Cleaner
	provider     OldProvider
	qChan        chan struct{}
	workWaitChan chan struct{}
}

//NewTimer creates timer service
func NewTimer(runEvery time.Duration, provider OldProvider, cleaner Cleaner) (*Timer, error) {
	if runEvery <= 0 {
		return nil, errors.Errorf("Wrong run every value %v", runEvery)
	}
	if provider == nil {
		return nil, errors.New("No provider")
	}
	if cleaner == nil {
		return nil, errors.New("No cleaner")
	}
	return &Timer{runEvery: runEvery, provider: provider, cleaner: cleaner,
		qChan: make(chan struct{}), workWaitChan: make(chan struct{})}, nil
}

//Start starts the service loop, returns a func to stop the loop and wait for it
func (t *Timer) Start() func() {
	cmdapp.Log.Infof("Starting timer service every %v", t.runEvery)
	go t.serviceLoop()
	return func() {
		close(t.qChan)
		<-t.workWaitChan
	}
}

func (t *Timer) serviceLoop() {
	ticker := time.NewTicker(t.runEvery)
	// run on startup
	t.doClean()
mainloop:
	for {
		select {
		case <-ticker.C:
			t.doClean()
		case <-t.qChan:
			ticker.Stop()
			break mainloop
		}
	}
	cmdapp.Log.Infof("Stopped timer service")
	close(t.workWaitChan)
}

func (t *Timer) doClean() {
	cmdapp.Log.Debug("Running cleaning")
	names, err := t.provider.Get()
	if err != nil {
		cmdapp.Log.Error(err)
	}
	if len(names) > 0 {
		cmdapp.Log.Infof("Got %d files to clean", len(names))
	}
	for _, n := range names {
		if err = t.cleaner.Clean(n); err != nil {
			cmdapp.Log.Error(err)
		}
	}
}
