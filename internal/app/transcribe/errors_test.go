package transcribe

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

func TestStageError_Message(t *testing.T) {
	err := dependencyErr("download", errors.New("olia"))
	assert.Equal(t, "olia", err.Error())
	assert.Equal(t, DependencyFailure, KindOf(err))
}

func TestStageError_Unwraps(t *testing.T) {
	base := errors.New("olia")
	err := filesystemErr("staging", base)
	assert.True(t, errors.Is(err, base))
	assert.Equal(t, base, errors.Cause(err))
	assert.Equal(t, FilesystemFailure, KindOf(errors.Wrap(err, "wrapped")))
}

func TestStageError_NoCause(t *testing.T) {
	err := &StageError{Stage: "download"}
	assert.Equal(t, "download failed", err.Error())
}

func TestKindOf_Other(t *testing.T) {
	assert.Equal(t, Kind(0), KindOf(errors.New("olia")))
	assert.Equal(t, Kind(0), KindOf(nil))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "dependency", DependencyFailure.String())
	assert.Equal(t, "filesystem", FilesystemFailure.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
