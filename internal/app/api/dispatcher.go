package api

import (
	"context"
	"sync"
	"time"

	"bitbucket.org/airenas/vidscribe/internal/app/transcribe"
	"bitbucket.org/airenas/vidscribe/internal/pkg/cmdapp"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

//ErrDispatched is returned when the job has been already dispatched
var ErrDispatched = errors.New("job already dispatched")

type uploadRunner interface {
	Run(ctx context.Context, ID string, in transcribe.UploadInput) error
}

type remoteRunner interface {
	Run(ctx context.Context, ID string, in transcribe.RemoteInput) error
}

//Claimer marks the job as taken, returns false if it was taken before
type Claimer interface {
	Claim(ID string) (bool, error)
}

type jobMetrics struct {
	duration *prometheus.HistogramVec
	outcome  *prometheus.CounterVec
}

//Dispatcher runs each pipeline on its own goroutine
type Dispatcher struct {
	upload  uploadRunner
	remote  remoteRunner
	claimer Claimer
	metrics *jobMetrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

//newDispatcher creates dispatcher
func newDispatcher(upload uploadRunner, remote remoteRunner, claimer Claimer, metrics *jobMetrics) (*Dispatcher, error) {
	if upload == nil || remote == nil {
		return nil, errors.New("No pipelines")
	}
	if claimer == nil {
		return nil, errors.New("No claimer")
	}
	res := &Dispatcher{upload: upload, remote: remote, claimer: claimer, metrics: metrics}
	res.ctx, res.cancel = context.WithCancel(context.Background())
	return res, nil
}

//Upload starts the upload pipeline for the job
func (d *Dispatcher) Upload(ID string, in transcribe.UploadInput) error {
	return d.start(ID, "upload", func(ctx context.Context) error {
		return d.upload.Run(ctx, ID, in)
	})
}

//Remote starts the remote pipeline for the job
func (d *Dispatcher) Remote(ID string, in transcribe.RemoteInput) error {
	return d.start(ID, "remote", func(ctx context.Context) error {
		return d.remote.Run(ctx, ID, in)
	})
}

func (d *Dispatcher) start(ID, kind string, f func(ctx context.Context) error) error {
	ok, err := d.claimer.Claim(ID)
	if err != nil {
		return errors.Wrapf(err, "Can't claim %s", ID)
	}
	if !ok {
		return errors.Wrapf(ErrDispatched, "%s", ID)
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		start := time.Now()
		err := f(d.ctx)
		d.observe(kind, time.Since(start), err)
		if err != nil {
			cmdapp.Log.Error(errors.Wrapf(err, "Pipeline failed for %s", ID))
		}
	}()
	return nil
}

func (d *Dispatcher) observe(kind string, took time.Duration, err error) {
	if d.metrics == nil {
		return
	}
	res := "completed"
	if err != nil {
		res = "failed"
	}
	d.metrics.duration.WithLabelValues(kind).Observe(took.Seconds())
	d.metrics.outcome.WithLabelValues(kind, res).Inc()
}

//Wait waits for all running pipelines
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

//Stop cancels running pipelines and waits for them to finish
func (d *Dispatcher) Stop() {
	d.cancel()
	d.wg.Wait()
}
