package transcribe

import (
	"github.com/pkg/errors"
)

//ErrNotFound is returned when a job is not in the repository
var ErrNotFound = errors.New("transcription not found")

//Kind of a pipeline failure
type Kind int

const (
	//DependencyFailure - fetch or inference failed
	DependencyFailure Kind = iota + 1
	//FilesystemFailure - staging path is missing or not writable
	FilesystemFailure
)

func (k Kind) String() string {
	switch k {
	case DependencyFailure:
		return "dependency"
	case FilesystemFailure:
		return "filesystem"
	}
	return "unknown"
}

//StageError wraps a failure of one pipeline stage.
//Error() returns the underlying message unchanged.
type StageError struct {
	Stage string
	Kind  Kind
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return e.Stage + " failed"
	}
	return e.Err.Error()
}

//Unwrap returns the underlying error
func (e *StageError) Unwrap() error {
	return e.Err
}

//Cause returns the underlying error for pkg/errors
func (e *StageError) Cause() error {
	return e.Err
}

func dependencyErr(stage string, err error) error {
	return &StageError{Stage: stage, Kind: DependencyFailure, Err: err}
}

func filesystemErr(stage string, err error) error {
	return &StageError{Stage: stage, Kind: FilesystemFailure, Err: err}
}

//KindOf returns the failure kind of err, 0 if err is not a stage failure
func KindOf(err error) Kind {
	var se *StageError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}
