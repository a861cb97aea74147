package transcribe

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"bitbucket.org/airenas/vidscribe/internal/pkg/cmdapp"
	"bitbucket.org/airenas/vidscribe/internal/pkg/progress"
	"bitbucket.org/airenas/vidscribe/internal/pkg/transcription"
	"github.com/pkg/errors"
)

// job serializes mutations of one transcription with its save,
// so a reader never sees a half applied change
type job struct {
	lock sync.Mutex
	t    *transcription.Transcription
	repo Repository
}

func loadJob(repo Repository, ID string) (*job, error) {
	t, err := repo.Get(ID)
	if err != nil {
		return nil, errors.Wrapf(err, "Can't load %s", ID)
	}
	if t == nil {
		return nil, errors.Wrapf(ErrNotFound, "%s", ID)
	}
	return &job{t: t, repo: repo}, nil
}

// update applies f to a copy, the copy replaces the job only after it is saved
func (j *job) update(f func(t *transcription.Transcription) error) error {
	j.lock.Lock()
	defer j.lock.Unlock()
	t := j.t.Clone()
	if err := f(t); err != nil {
		return err
	}
	if err := j.repo.Save(t); err != nil {
		return errors.Wrapf(err, "Can't save %s", t.ID)
	}
	j.t = t
	return nil
}

// progress returns a callback storing the mapped value, errors are only logged
func (j *job) progress(r progress.Range) transcription.ProgressFunc {
	return func(p float64) {
		err := j.update(func(t *transcription.Transcription) error {
			return t.UpdateProgress(r.Map(p))
		})
		if err != nil {
			cmdapp.Log.Debugf("Can't update progress %s: %v", j.ID(), err)
		}
	}
}

func (j *job) fail(cause error) {
	cmdapp.Log.Infof("Failing %s: %v", j.ID(), cause)
	err := j.update(func(t *transcription.Transcription) error {
		return t.Fail(cause.Error())
	})
	if err != nil {
		cmdapp.Log.Error(errors.Wrapf(err, "Can't mark %s as failed", j.ID()))
	}
}

func (j *job) ID() string {
	return j.t.ID
}

// removeFile deletes the temporary file, a failure is only logged
func removeFile(f string) {
	if f == "" {
		return
	}
	err := os.Remove(f)
	if err == nil {
		cmdapp.Log.Infof("Removed %s", f)
		return
	}
	if !os.IsNotExist(err) {
		cmdapp.Log.Warn(errors.Wrapf(err, "Can't remove %s", f))
	}
}

// removePartial deletes every file of the download base name: <base>.mp3, <base>.webm, <base>.webm.part
func removePartial(dest string) {
	dir, base := filepath.Split(dest)
	prefix := strings.TrimSuffix(base, filepath.Ext(base)) + "."
	entries, err := os.ReadDir(filepath.Clean(dir))
	if err != nil {
		if !os.IsNotExist(err) {
			cmdapp.Log.Warn(errors.Wrapf(err, "Can't list %s", dir))
		}
		return
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			removeFile(filepath.Join(dir, e.Name()))
		}
	}
}
