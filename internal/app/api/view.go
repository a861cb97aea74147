package api

import (
	"time"

	"bitbucket.org/airenas/vidscribe/internal/pkg/transcription"
)

//TranscriptionView is a json snapshot of a job
type TranscriptionView struct {
	ID             string     `json:"id"`
	Status         string     `json:"status"`
	SourceType     string     `json:"source_type"`
	SourceName     string     `json:"source_name,omitempty"`
	Progress       float64    `json:"progress"`
	Text           *string    `json:"text,omitempty"`
	Language       string     `json:"language,omitempty"`
	Error          string     `json:"error,omitempty"`
	Model          string     `json:"model"`
	Device         string     `json:"device,omitempty"`
	ProcessingTime *float64   `json:"processing_time_seconds,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

func toView(t *transcription.Transcription) *TranscriptionView {
	res := &TranscriptionView{ID: t.ID, Status: t.Status.String(), SourceType: string(t.Source.Kind),
		SourceName: t.Source.Name(), Progress: t.Progress, Error: t.Error, Model: t.Model,
		Device: t.Device, CreatedAt: t.CreatedAt, CompletedAt: t.CompletedAt}
	if t.Result != nil {
		text := t.Result.Text
		res.Text = &text
		res.Language = t.Result.Language
		pt := t.ProcessingTime.Seconds()
		res.ProcessingTime = &pt
	}
	return res
}

func toViews(ts []*transcription.Transcription) []*TranscriptionView {
	res := make([]*TranscriptionView, 0, len(ts))
	for _, t := range ts {
		res = append(res, toView(t))
	}
	return res
}
