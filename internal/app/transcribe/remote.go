package transcribe

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"bitbucket.org/airenas/vidscribe/internal/pkg/cmdapp"
	"bitbucket.org/airenas/vidscribe/internal/pkg/progress"
	"bitbucket.org/airenas/vidscribe/internal/pkg/transcription"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const audioExt = ".mp3"

//RemoteInput is the locator of a remote job
type RemoteInput struct {
	URL      string
	Language string
	Model    string
}

//RemotePipeline downloads remote media audio and transcribes it
type RemotePipeline struct {
	repo       Repository
	models     Models
	fetcher    Fetcher
	stagingDir string
	newName    func() string
}

//NewRemotePipeline creates the pipeline, downloads go to stagingDir
func NewRemotePipeline(repo Repository, models Models, fetcher Fetcher, stagingDir string) (*RemotePipeline, error) {
	if repo == nil {
		return nil, errors.New("No repository")
	}
	if models == nil {
		return nil, errors.New("No models")
	}
	if fetcher == nil {
		return nil, errors.New("No fetcher")
	}
	if stagingDir == "" {
		return nil, errors.New("No staging dir")
	}
	return &RemotePipeline{repo: repo, models: models, fetcher: fetcher, stagingDir: stagingDir,
		newName: func() string { return uuid.New().String() }}, nil
}

//Run drives the job to completed or failed. The downloaded audio is removed in both cases.
func (p *RemotePipeline) Run(ctx context.Context, ID string, in RemoteInput) error {
	j, err := loadJob(p.repo, ID)
	if err != nil {
		return err
	}
	audio, err := p.run(ctx, j, in)
	removeFile(audio)
	if err != nil {
		j.fail(err)
		return err
	}
	return nil
}

// run returns the path of the downloaded audio even on failure so it can be removed
func (p *RemotePipeline) run(ctx context.Context, j *job, in RemoteInput) (string, error) {
	model := in.Model
	if model == "" {
		model = j.t.Model
	}
	tr, err := p.models.Transcriber(model)
	if err != nil {
		return "", dependencyErr("model", err)
	}
	if err = j.update(func(t *transcription.Transcription) error { return t.StartDownload() }); err != nil {
		return "", err
	}
	cmdapp.Log.Infof("Downloading %s from %s", j.ID(), in.URL)
	info, err := p.fetcher.Info(ctx, in.URL)
	if err != nil {
		return "", dependencyErr("info", err)
	}
	if info == nil {
		info = &transcription.MediaInfo{URL: in.URL}
	}
	err = j.update(func(t *transcription.Transcription) error {
		t.SetMediaInfo(info.Title, info.DurationSeconds)
		return nil
	})
	if err != nil {
		return "", err
	}
	if err = os.MkdirAll(p.stagingDir, 0755); err != nil {
		return "", filesystemErr("staging", err)
	}
	dest := filepath.Join(p.stagingDir, p.newName()+audioExt)
	audio, err := p.fetcher.DownloadAudio(ctx, in.URL, dest, j.progress(progress.Download))
	if err != nil {
		removePartial(dest)
		return "", dependencyErr("download", err)
	}
	if err = j.update(func(t *transcription.Transcription) error { return t.StartTranscription() }); err != nil {
		return audio, err
	}
	cmdapp.Log.Infof("Transcribing %s", j.ID())
	start := time.Now()
	rec, err := tr.Transcribe(ctx, audio, in.Language, j.progress(progress.AfterDownload))
	if err != nil {
		return audio, dependencyErr("transcribe", err)
	}
	took := time.Since(start)
	err = j.update(func(t *transcription.Transcription) error {
		return t.Complete(toResult(rec, info.DurationSeconds), tr.Device(), took)
	})
	if err != nil {
		return audio, err
	}
	cmdapp.Log.Infof("Completed %s in %v", j.ID(), took)
	return audio, nil
}
