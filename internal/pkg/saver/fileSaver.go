package saver

import (
	"io"
	"os"
	"path/filepath"

	"bitbucket.org/airenas/vidscribe/internal/pkg/cmdapp"
	"github.com/pkg/errors"
)

//WriterCloser keeps Writer interface and close function
type WriterCloser interface {
	io.Writer
	Close() error
}

//OpenFileFunc declares function to open file by name and return Writer
type OpenFileFunc func(fileName string) (WriterCloser, error)

//ErrTooLarge is returned when the content exceeds the limit
var ErrTooLarge = errors.New("file too large")

// LocalFileSaver saves uploads into the staging dir
type LocalFileSaver struct {
	// StoragePath is the main folder to save into
	StoragePath  string
	// MaxSize limits saved bytes, 0 - no limit
	MaxSize      int64
	OpenFileFunc OpenFileFunc
	removeFunc   func(string) error
}

//NewLocalFileSaver creates LocalFileSaver instance, the dir is created if missing
func NewLocalFileSaver(storagePath string, maxSize int64) (*LocalFileSaver, error) {
	cmdapp.Log.Infof("Init Local File Storage at: %s", storagePath)
	if storagePath == "" {
		return nil, errors.New("No storage path provided")
	}
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return nil, errors.Wrapf(err, "Can't create dir %s", storagePath)
	}
	return &LocalFileSaver{StoragePath: storagePath, MaxSize: maxSize, OpenFileFunc: openFile,
		removeFunc: os.Remove}, nil
}

// Save saves file to disk, returns full path and saved size
func (fs *LocalFileSaver) Save(name string, reader io.Reader) (string, int64, error) {
	fileName := filepath.Join(fs.StoragePath, name)
	f, err := fs.OpenFileFunc(fileName)
	if err != nil {
		return "", 0, errors.Wrapf(err, "Can not create file %s", fileName)
	}
	if fs.MaxSize > 0 {
		reader = io.LimitReader(reader, fs.MaxSize+1)
	}
	savedBytes, err := io.Copy(f, reader)
	cErr := f.Close()
	if err == nil {
		err = cErr
	}
	if err == nil && fs.MaxSize > 0 && savedBytes > fs.MaxSize {
		err = errors.Wrapf(ErrTooLarge, "limit %d", fs.MaxSize)
	}
	if err != nil {
		fs.remove(fileName)
		return "", 0, errors.Wrapf(err, "Can not save file %s", fileName)
	}
	cmdapp.Log.Infof("Saved file %s. Size = %d", fileName, savedBytes)
	return fileName, savedBytes, nil
}

//HealthyFunc returns func for health check, checks the dir is writable
func (fs *LocalFileSaver) HealthyFunc() func() error {
	return func() error {
		f, err := os.CreateTemp(fs.StoragePath, ".health-*")
		if err != nil {
			return errors.Wrapf(err, "Can't write to %s", fs.StoragePath)
		}
		f.Close()
		return os.Remove(f.Name())
	}
}

func (fs *LocalFileSaver) remove(fileName string) {
	if fs.removeFunc == nil {
		return
	}
	if err := fs.removeFunc(fileName); err != nil && !os.IsNotExist(err) {
		cmdapp.Log.Warn(errors.Wrapf(err, "Can't remove %s", fileName))
	}
}

func openFile(fileName string) (WriterCloser, error) {
	return os.OpenFile(fileName, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
}
