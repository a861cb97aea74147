package transcription

import (
	"math"
	"time"

	"bitbucket.org/airenas/vidscribe/internal/pkg/status"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	//ErrWrongTransition is returned when the state machine has no such edge
	ErrWrongTransition = errors.New("wrong status transition")
	//ErrFinished is returned when a finished job is mutated
	ErrFinished = errors.New("transcription is finished")
)

const defaultError = "unknown error"

var now = time.Now

//Transcription is a job record. All mutations go through the transition methods.
type Transcription struct {
	ID             string
	Source         Source
	Status         status.Status
	Progress       float64
	Result         *Result
	Error          string
	Model          string
	Device         string
	ProcessingTime time.Duration
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

//New creates a pending job with a fresh id
func New(source Source, model string) *Transcription {
	return &Transcription{ID: uuid.New().String(), Source: source.clone(), Status: status.Pending,
		Model: model, CreatedAt: now().UTC()}
}

//StartDownload moves the job to downloading
func (t *Transcription) StartDownload() error {
	return t.move(status.Downloading)
}

//StartAudioExtraction moves the job to extracting_audio
func (t *Transcription) StartAudioExtraction() error {
	return t.move(status.ExtractingAudio)
}

//StartTranscription moves the job to transcribing
func (t *Transcription) StartTranscription() error {
	return t.move(status.Transcribing)
}

//UpdateProgress sets progress clamped to [0, 100]. Progress never goes down.
func (t *Transcription) UpdateProgress(p float64) error {
	if status.IsTerminal(t.Status) {
		return errors.Wrapf(ErrFinished, "status %s", t.Status)
	}
	if math.IsNaN(p) {
		return nil
	}
	p = math.Max(0, math.Min(p, 100))
	if p > t.Progress {
		t.Progress = p
	}
	return nil
}

//SetMediaInfo backfills title and duration of the remote source
func (t *Transcription) SetMediaInfo(title string, durationSeconds float64) {
	t.Source.Title = title
	d := durationSeconds
	t.Source.DurationSeconds = &d
}

//Complete attaches result and marks the job completed. Allowed only once.
func (t *Transcription) Complete(result Result, device string, took time.Duration) error {
	if err := t.move(status.Completed); err != nil {
		return err
	}
	t.Result = (&result).clone()
	t.Device = device
	t.ProcessingTime = took
	cAt := now().UTC()
	t.CompletedAt = &cAt
	t.Progress = 100
	return nil
}

//Fail marks the job failed with the message
func (t *Transcription) Fail(msg string) error {
	if err := t.move(status.Failed); err != nil {
		return err
	}
	if msg == "" {
		msg = defaultError
	}
	t.Error = msg
	return nil
}

//Cancel marks the job cancelled
func (t *Transcription) Cancel() error {
	return t.move(status.Cancelled)
}

//Clone makes a deep copy, safe to hand out to readers
func (t *Transcription) Clone() *Transcription {
	if t == nil {
		return nil
	}
	res := *t
	res.Source = t.Source.clone()
	res.Result = t.Result.clone()
	if t.CompletedAt != nil {
		c := *t.CompletedAt
		res.CompletedAt = &c
	}
	return &res
}

func (t *Transcription) move(to status.Status) error {
	if status.IsTerminal(t.Status) {
		return errors.Wrapf(ErrFinished, "%s -> %s", t.Status, to)
	}
	if !status.CanMove(t.Status, to) {
		return errors.Wrapf(ErrWrongTransition, "%s -> %s", t.Status, to)
	}
	t.Status = to
	return nil
}
