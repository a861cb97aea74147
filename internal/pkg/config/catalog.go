package config

import (
	"sync"

	"bitbucket.org/airenas/vidscribe/internal/pkg/cmdapp"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

//ErrModelNotFound is returned when model is not in the catalog
var ErrModelNotFound = errors.New("model not found")

const defaultModels = `models:
  - name: tiny
    size_mb: 39
    description: Fastest, lower accuracy
  - name: base
    size_mb: 74
    description: Good balance (default)
  - name: small
    size_mb: 244
    description: Better accuracy
  - name: medium
    size_mb: 769
    description: High accuracy
  - name: large
    size_mb: 1550
    description: Best accuracy
`

//Model describes available whisper model
type Model struct {
	Name        string `yaml:"name" mapstructure:"name" json:"name"`
	SizeMB      int    `yaml:"size_mb" mapstructure:"size_mb" json:"size_mb"`
	Description string `yaml:"description" mapstructure:"description" json:"description"`
}

type modelList struct {
	Models []Model `yaml:"models" mapstructure:"models"`
}

// Catalog keeps the list of models, the list is reloaded on file change
type Catalog struct {
	lock   sync.RWMutex
	models []Model
	v      *viper.Viper
}

//NewCatalog creates catalog from the file, built in list is used if file is empty
func NewCatalog(file string) (*Catalog, error) {
	if file == "" {
		cmdapp.Log.Info("Init default model catalog")
		res := &Catalog{}
		ml, err := loadYaml([]byte(defaultModels))
		if err != nil {
			return nil, err
		}
		res.models = ml
		return res, nil
	}
	return newFileCatalog(file)
}

func newFileCatalog(file string) (*Catalog, error) {
	cmdapp.Log.Infof("Init model catalog from: %s", file)
	res := &Catalog{}
	res.v = viper.New()
	res.v.SetConfigFile(file)
	res.v.SetConfigType("yml")
	err := res.v.ReadInConfig()
	if err != nil {
		return nil, errors.Wrap(err, "Can't read models file: "+file)
	}
	if err = res.reload(); err != nil {
		return nil, errors.Wrap(err, "Can't load models file: "+file)
	}

	res.v.WatchConfig()
	res.v.OnConfigChange(func(e fsnotify.Event) {
		cmdapp.Log.Infof("Models reloaded from: %s", file)
		if err := res.reload(); err != nil {
			cmdapp.Log.Error(errors.Wrap(err, "Can't reload models"))
		}
	})
	return res, nil
}

func (c *Catalog) reload() error {
	ml := modelList{}
	if err := c.v.Unmarshal(&ml); err != nil {
		return errors.Wrap(err, "Can't unmarshal")
	}
	if err := validate(ml.Models); err != nil {
		return err
	}
	c.lock.Lock()
	defer c.lock.Unlock()
	c.models = ml.Models
	return nil
}

func loadYaml(data []byte) ([]Model, error) {
	ml := modelList{}
	err := yaml.Unmarshal(data, &ml)
	if err != nil {
		return nil, errors.Wrap(err, "Can't unmarshal")
	}
	if err := validate(ml.Models); err != nil {
		return nil, err
	}
	return ml.Models, nil
}

func validate(models []Model) error {
	if len(models) == 0 {
		return errors.New("No models")
	}
	for _, m := range models {
		if m.Name == "" {
			return errors.New("No model name")
		}
	}
	return nil
}

//Get returns model by name
func (c *Catalog) Get(name string) (*Model, error) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	for _, m := range c.models {
		if m.Name == name {
			res := m
			return &res, nil
		}
	}
	return nil, errors.Wrapf(ErrModelNotFound, "%s", name)
}

//Has checks if model is in the catalog
func (c *Catalog) Has(name string) bool {
	_, err := c.Get(name)
	return err == nil
}

//All returns a copy of the model list
func (c *Catalog) All() []Model {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return append([]Model(nil), c.models...)
}
