package whisper

import (
	"path/filepath"
	"sync"

	"bitbucket.org/airenas/vidscribe/internal/pkg/cmdapp"
	"github.com/pkg/errors"
)

//Provider builds and caches one Service per model name
type Provider struct {
	base      Options
	modelsDir string
	runner    cmdRunner

	lock     sync.Mutex
	services map[string]*Service
}

//NewProvider creates the provider. base.ModelPath is ignored, models are resolved in modelsDir.
func NewProvider(base Options, modelsDir string, runner cmdRunner) (*Provider, error) {
	if modelsDir == "" {
		return nil, errors.New("No models dir")
	}
	if base.Device == "" {
		base.Device = DetectDevice()
	}
	cmdapp.Log.Infof("Whisper models at %s, device %s", modelsDir, base.Device)
	return &Provider{base: base, modelsDir: modelsDir, runner: runner, services: make(map[string]*Service)}, nil
}

//Get returns service for the model
func (p *Provider) Get(model string) (*Service, error) {
	if model == "" {
		return nil, errors.New("No model")
	}
	p.lock.Lock()
	defer p.lock.Unlock()
	if s, found := p.services[model]; found {
		return s, nil
	}
	opts := p.base
	opts.ModelPath = ModelFile(p.modelsDir, model)
	s, err := NewService(opts, p.runner)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't init whisper for %s", model)
	}
	p.services[model] = s
	return s, nil
}

//Device returns the device the services run on
func (p *Provider) Device() string {
	return p.base.Device
}

//ModelFile returns whisper.cpp model file for the model name
func ModelFile(dir, model string) string {
	return filepath.Join(dir, "ggml-"+model+".bin")
}
