package api

import (
	"encoding/json"
	"testing"
	"time"

	"bitbucket.org/airenas/vidscribe/internal/pkg/transcription"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToView_Pending(t *testing.T) {
	tr := transcription.New(transcription.Source{Kind: transcription.Remote, URL: "x"}, "base")
	v := toView(tr)
	assert.Equal(t, tr.ID, v.ID)
	assert.Equal(t, "pending", v.Status)
	assert.Equal(t, "remote", v.SourceType)
	assert.Equal(t, "", v.SourceName)
	assert.Nil(t, v.Text)
	assert.Nil(t, v.ProcessingTime)

	b, err := json.Marshal(v)
	require.Nil(t, err)
	assert.NotContains(t, string(b), "text")
	assert.NotContains(t, string(b), "error")
	assert.NotContains(t, string(b), "completed_at")
}

func TestToView_Remote(t *testing.T) {
	tr := transcription.New(transcription.Source{Kind: transcription.Remote, URL: "x"}, "base")
	tr.SetMediaInfo("Title", 42)
	assert.Equal(t, "Title", toView(tr).SourceName)
}

func TestToView_CompletedEmptyText(t *testing.T) {
	tr := transcription.New(transcription.Source{Kind: transcription.Upload, FileName: "a.mp4"}, "base")
	require.Nil(t, tr.StartTranscription())
	require.Nil(t, tr.Complete(transcription.Result{}, "cpu", time.Second))
	v := toView(tr)
	require.NotNil(t, v.Text)
	assert.Equal(t, "", *v.Text)
	b, _ := json.Marshal(v)
	assert.Contains(t, string(b), `"text":""`)
}

func TestToView_Failed(t *testing.T) {
	tr := transcription.New(transcription.Source{Kind: transcription.Upload, FileName: "a.mp4"}, "base")
	require.Nil(t, tr.Fail("olia"))
	v := toView(tr)
	assert.Equal(t, "failed", v.Status)
	assert.Equal(t, "olia", v.Error)
	assert.Equal(t, "a.mp4", v.SourceName)
}

func TestToViews_Empty(t *testing.T) {
	b, _ := json.Marshal(toViews(nil))
	assert.Equal(t, "[]", string(b))
}
