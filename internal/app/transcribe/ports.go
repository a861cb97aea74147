package transcribe

import (
	"context"

	"bitbucket.org/airenas/vidscribe/internal/pkg/transcription"
)

//Transcriber converts audio file to text
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath, language string, onProgress transcription.ProgressFunc) (*transcription.Recognition, error)
	Device() string
}

//Models returns transcriber for the model name
type Models interface {
	Transcriber(model string) (Transcriber, error)
}

//ModelsFunc adapts a func to Models
type ModelsFunc func(model string) (Transcriber, error)

//Transcriber calls f(model)
func (f ModelsFunc) Transcriber(model string) (Transcriber, error) {
	return f(model)
}

//Fetcher resolves remote media and downloads its audio
type Fetcher interface {
	Info(ctx context.Context, url string) (*transcription.MediaInfo, error)
	DownloadAudio(ctx context.Context, url, destination string, onProgress transcription.ProgressFunc) (string, error)
}

//Repository keeps transcription snapshots
type Repository interface {
	Save(t *transcription.Transcription) error
	Get(ID string) (*transcription.Transcription, error)
	List() ([]*transcription.Transcription, error)
	Delete(ID string) (bool, error)
}
