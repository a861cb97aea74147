package transcribe

import (
	"context"
	"time"

	"bitbucket.org/airenas/vidscribe/internal/pkg/cmdapp"
	"bitbucket.org/airenas/vidscribe/internal/pkg/progress"
	"bitbucket.org/airenas/vidscribe/internal/pkg/transcription"
	"github.com/pkg/errors"
)

//UploadInput is the staged file of an upload job
type UploadInput struct {
	FilePath string
	FileName string
	FileSize int64
	Language string
	Model    string
}

//UploadPipeline transcribes an uploaded file
type UploadPipeline struct {
	repo   Repository
	models Models
}

//NewUploadPipeline creates the pipeline
func NewUploadPipeline(repo Repository, models Models) (*UploadPipeline, error) {
	if repo == nil {
		return nil, errors.New("No repository")
	}
	if models == nil {
		return nil, errors.New("No models")
	}
	return &UploadPipeline{repo: repo, models: models}, nil
}

//Run drives the job to completed or failed. The staged file is removed in both cases.
func (p *UploadPipeline) Run(ctx context.Context, ID string, in UploadInput) error {
	j, err := loadJob(p.repo, ID)
	if err != nil {
		return err
	}
	defer removeFile(in.FilePath)
	if err = p.run(ctx, j, in); err != nil {
		j.fail(err)
		return err
	}
	return nil
}

func (p *UploadPipeline) run(ctx context.Context, j *job, in UploadInput) error {
	model := in.Model
	if model == "" {
		model = j.t.Model
	}
	tr, err := p.models.Transcriber(model)
	if err != nil {
		return dependencyErr("model", err)
	}
	if err = j.update(func(t *transcription.Transcription) error { return t.StartTranscription() }); err != nil {
		return err
	}
	cmdapp.Log.Infof("Transcribing %s, file %s (%d bytes)", j.ID(), in.FileName, in.FileSize)
	start := time.Now()
	rec, err := tr.Transcribe(ctx, in.FilePath, in.Language, j.progress(progress.Full))
	if err != nil {
		return dependencyErr("transcribe", err)
	}
	took := time.Since(start)
	err = j.update(func(t *transcription.Transcription) error {
		return t.Complete(toResult(rec, 0), tr.Device(), took)
	})
	if err != nil {
		return err
	}
	cmdapp.Log.Infof("Completed %s in %v", j.ID(), took)
	return nil
}

func toResult(rec *transcription.Recognition, duration float64) transcription.Result {
	if rec == nil {
		return transcription.Result{DurationSeconds: duration}
	}
	return transcription.Result{Text: rec.Text, Segments: rec.Segments, Language: rec.Language,
		DurationSeconds: duration}
}
