package ytdlp

import (
	"context"
	"testing"
	"time"

	"bitbucket.org/airenas/vidscribe/internal/pkg/process"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	args     []string
	out      string
	lines    []string
	err      error
	deadline bool
}

func (f *fakeRunner) Run(ctx context.Context, name string, args []string, onLine process.LineFunc) (string, error) {
	f.args = append([]string{name}, args...)
	_, f.deadline = ctx.Deadline()
	for _, l := range f.lines {
		if onLine != nil {
			onLine(l)
		}
	}
	return f.out, f.err
}

func newTestClient(t *testing.T, r *fakeRunner) *Client {
	c, err := NewClient(Options{Cmd: "yt-dlp"}, r)
	require.Nil(t, err)
	return c
}

func TestNewClient_Fails(t *testing.T) {
	_, err := NewClient(Options{}, &fakeRunner{})
	assert.NotNil(t, err)
	_, err = NewClient(Options{Cmd: "yt-dlp"}, nil)
	assert.NotNil(t, err)
}

func TestNewClient_Defaults(t *testing.T) {
	c := newTestClient(t, &fakeRunner{})
	assert.Equal(t, "mp3", c.opts.AudioFormat)
	assert.Equal(t, 30*time.Second, c.opts.InfoTimeout)
}

func TestInfo(t *testing.T) {
	r := &fakeRunner{out: `{"title": "T", "duration": 42.5, "webpage_url": "http://x"}`}
	res, err := newTestClient(t, r).Info(context.Background(), "abc")
	require.Nil(t, err)
	assert.Equal(t, "T", res.Title)
	assert.Equal(t, 42.5, res.DurationSeconds)
	assert.Equal(t, "abc", res.URL)
	assert.Equal(t, "abc", r.args[len(r.args)-1])
	assert.Contains(t, r.args, "--skip-download")
	assert.True(t, r.deadline)
}

func TestInfo_Defaults(t *testing.T) {
	r := &fakeRunner{out: `{}`}
	res, err := newTestClient(t, r).Info(context.Background(), "abc")
	require.Nil(t, err)
	assert.Equal(t, "Unknown", res.Title)
	assert.Equal(t, 0.0, res.DurationSeconds)
}

func TestInfo_Fails(t *testing.T) {
	_, err := newTestClient(t, &fakeRunner{err: errors.New("olia")}).Info(context.Background(), "abc")
	assert.NotNil(t, err)
	_, err = newTestClient(t, &fakeRunner{out: "olia"}).Info(context.Background(), "abc")
	assert.NotNil(t, err)
}

func TestDownloadAudio(t *testing.T) {
	r := &fakeRunner{lines: []string{
		"[youtube] abc: Downloading webpage",
		progressPrefix + "0 100 NA",
		progressPrefix + "50 NA 200",
		progressPrefix + "40 100 NA",
		progressPrefix + "10 NA NA",
		progressPrefix + "100 100 NA",
	}}
	var pr []float64
	res, err := newTestClient(t, r).DownloadAudio(context.Background(), "abc", "/stage/x.mp3",
		func(p float64) { pr = append(pr, p) })
	require.Nil(t, err)
	assert.Equal(t, "/stage/x.mp3", res)
	assert.Equal(t, []float64{0, 25, 40, 100}, pr)
	assert.Contains(t, r.args, "/stage/x.%(ext)s")
	assert.Equal(t, "abc", r.args[len(r.args)-1])
}

func TestDownloadAudio_ChangesExtension(t *testing.T) {
	res, err := newTestClient(t, &fakeRunner{}).DownloadAudio(context.Background(), "abc", "/stage/x.wav", nil)
	require.Nil(t, err)
	assert.Equal(t, "/stage/x.mp3", res)
}

func TestDownloadAudio_NoTotal(t *testing.T) {
	r := &fakeRunner{lines: []string{progressPrefix + "10 NA NA", progressPrefix + "20 0 NA"}}
	called := false
	_, err := newTestClient(t, r).DownloadAudio(context.Background(), "abc", "x.mp3", func(p float64) { called = true })
	require.Nil(t, err)
	assert.False(t, called)
}

func TestDownloadAudio_Fails(t *testing.T) {
	_, err := newTestClient(t, &fakeRunner{err: errors.New("olia")}).DownloadAudio(context.Background(), "abc", "x.mp3", nil)
	assert.NotNil(t, err)
}

func TestParseProgress(t *testing.T) {
	p, ok := parseProgress(progressPrefix + "300 200 NA")
	assert.True(t, ok)
	assert.Equal(t, 100.0, p)
	_, ok = parseProgress("olia")
	assert.False(t, ok)
	_, ok = parseProgress(progressPrefix + "1 2")
	assert.False(t, ok)
	_, ok = parseProgress(progressPrefix + "NA 2 3")
	assert.False(t, ok)
}
