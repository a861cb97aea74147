package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

//Register adds the collector to the default registry.
//A collector registered before with the same descriptors is replaced.
func Register(c prometheus.Collector) error {
	err := prometheus.Register(c)
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		prometheus.Unregister(are.ExistingCollector)
		err = prometheus.Register(c)
	}
	return err
}

//NewHistogramVec creates and registers histogram vector
func NewHistogramVec(opts prometheus.HistogramOpts, labels ...string) (*prometheus.HistogramVec, error) {
	res := prometheus.NewHistogramVec(opts, labels)
	if err := Register(res); err != nil {
		return nil, errors.Wrapf(err, "Can't register %s", opts.Name)
	}
	return res, nil
}

//NewCounterVec creates and registers counter vector
func NewCounterVec(opts prometheus.CounterOpts, labels ...string) (*prometheus.CounterVec, error) {
	res := prometheus.NewCounterVec(opts, labels)
	if err := Register(res); err != nil {
		return nil, errors.Wrapf(err, "Can't register %s", opts.Name)
	}
	return res, nil
}
