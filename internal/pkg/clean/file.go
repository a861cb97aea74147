package clean

import (
	"os"
	"path/filepath"
	"time"

	"bitbucket.org/airenas/vidscribe/internal/pkg/cmdapp"
	"github.com/pkg/errors"
)

var now = time.Now

//LocalFile finds and removes expired files in the staging dir
type LocalFile struct {
	StoragePath string
	expire      time.Duration
}

//NewLocalFile creates LocalFile instance
func NewLocalFile(storagePath string, expire time.Duration) (*LocalFile, error) {
	cmdapp.Log.Infof("Init Local File Storage Clean at: %s, expire %v", storagePath, expire)
	if storagePath == "" {
		return nil, errors.New("No storage path provided")
	}
	if expire <= 0 {
		return nil, errors.Errorf("Wrong expire value %v", expire)
	}
	return &LocalFile{StoragePath: storagePath, expire: expire}, nil
}

//Get returns names of files not modified during expire period
func (fs *LocalFile) Get() ([]string, error) {
	entries, err := os.ReadDir(fs.StoragePath)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't read %s", fs.StoragePath)
	}
	before := now().Add(-fs.expire)
	res := make([]string, 0)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(before) {
			res = append(res, e.Name())
		}
	}
	return res, nil
}

//Clean removes file from the staging dir
func (fs *LocalFile) Clean(name string) error {
	if name == "" || filepath.Base(name) != name {
		return errors.Errorf("Wrong file name '%s'", name)
	}
	fp := filepath.Join(fs.StoragePath, name)
	if err := os.Remove(fp); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "Can't remove %s", fp)
	}
	cmdapp.Log.Infof("Removed %s", fp)
	return nil
}
