package whisper

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bitbucket.org/airenas/vidscribe/internal/pkg/cmdapp"
	"bitbucket.org/airenas/vidscribe/internal/pkg/process"
	"bitbucket.org/airenas/vidscribe/internal/pkg/transcription"
	"github.com/pkg/errors"
)

const (
	progressStart    = 5.0
	progressStep     = 2.0
	progressRunLimit = 90.0
	progressParsed   = 95.0
	progressDone     = 100.0

	unknownLanguage = "unknown"
)

type cmdRunner interface {
	Run(ctx context.Context, name string, args []string, onLine process.LineFunc) (string, error)
}

//Options for whisper.cpp invocation
type Options struct {
	Cmd           string
	FFmpegCmd     string
	ModelPath     string
	Device        string
	ProgressEvery time.Duration
	TempDir       string
}

//Service transcribes audio files with whisper.cpp CLI.
//ffmpeg prepares 16kHz mono wav, whisper writes full json output.
type Service struct {
	opts   Options
	runner cmdRunner

	mkdirTemp func(dir, pattern string) (string, error)
	removeAll func(path string) error
	readFile  func(name string) ([]byte, error)
}

//NewService creates whisper service
func NewService(opts Options, runner cmdRunner) (*Service, error) {
	if opts.Cmd == "" {
		return nil, errors.New("No whisper command")
	}
	if opts.FFmpegCmd == "" {
		return nil, errors.New("No ffmpeg command")
	}
	if opts.ModelPath == "" {
		return nil, errors.New("No whisper model")
	}
	if runner == nil {
		return nil, errors.New("No command runner")
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = time.Second
	}
	if opts.Device == "" {
		opts.Device = DetectDevice()
	}
	return &Service{opts: opts, runner: runner, mkdirTemp: os.MkdirTemp, removeAll: os.RemoveAll,
		readFile: os.ReadFile}, nil
}

//DetectDevice returns cuda if nvidia tools are available
func DetectDevice() string {
	if process.LookPath("nvidia-smi") {
		return "cuda"
	}
	return "cpu"
}

//Device returns the compute device used for inference
func (s *Service) Device() string {
	return s.opts.Device
}

//Transcribe runs recognition for the audio file
func (s *Service) Transcribe(ctx context.Context, audioPath, language string,
	onProgress transcription.ProgressFunc) (*transcription.Recognition, error) {
	report := func(p float64) {
		if onProgress != nil {
			onProgress(p)
		}
	}
	report(progressStart)

	dir, err := s.mkdirTemp(s.opts.TempDir, "whisper-*")
	if err != nil {
		return nil, errors.Wrap(err, "Can't create temp dir")
	}
	defer func() {
		if err := s.removeAll(dir); err != nil {
			cmdapp.Log.Warnf("Can't remove %s: %v", dir, err)
		}
	}()

	wav := filepath.Join(dir, "audio-16k.wav")
	if _, err := s.runner.Run(ctx, s.opts.FFmpegCmd, ffmpegArgs(audioPath, wav), nil); err != nil {
		return nil, errors.Wrap(err, "Can't convert audio")
	}

	outBase := filepath.Join(dir, "result")
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		simulateProgress(done, s.opts.ProgressEvery, report)
	}()
	_, err = s.runner.Run(ctx, s.opts.Cmd, whisperArgs(s.opts, wav, outBase, language), nil)
	close(done)
	<-stopped
	if err != nil {
		return nil, errors.Wrap(err, "Transcription failed")
	}

	data, err := s.readFile(outBase + ".json")
	if err != nil {
		return nil, errors.Wrap(err, "Can't read whisper output")
	}
	res, err := parse(data)
	if err != nil {
		return nil, err
	}
	report(progressParsed)
	cmdapp.Log.Infof("Recognized %d segments, language %s", len(res.Segments), res.Language)
	report(progressDone)
	return res, nil
}

// simulateProgress ticks from start to the run limit while whisper works
func simulateProgress(done <-chan struct{}, every time.Duration, report func(float64)) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	current := progressStart
	for current < progressRunLimit {
		select {
		case <-done:
			return
		case <-ticker.C:
			current += progressStep
			if current > progressRunLimit {
				current = progressRunLimit
			}
			report(current)
		}
	}
}

func ffmpegArgs(in, out string) []string {
	return []string{"-hide_banner", "-nostdin", "-y", "-i", in, "-vn", "-ac", "1", "-ar", "16000",
		"-c:a", "pcm_s16le", out}
}

func whisperArgs(opts Options, wav, outBase, language string) []string {
	res := []string{"-m", opts.ModelPath, "-f", wav, "-of", outBase, "-ojf", "-np"}
	if lang := normalizeLanguage(language); lang != "" {
		res = append(res, "-l", lang)
	} else {
		res = append(res, "-l", "auto")
	}
	if opts.Device == "cpu" {
		res = append(res, "-ng")
	}
	return res
}

func normalizeLanguage(l string) string {
	l = strings.TrimSpace(l)
	if strings.EqualFold(l, "auto") {
		return ""
	}
	return l
}

type output struct {
	Params struct {
		Language string `json:"language"`
	} `json:"params"`
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text   string  `json:"text"`
		Tokens []token `json:"tokens"`
	} `json:"transcription"`
}

type token struct {
	P float64 `json:"p"`
}

func parse(data []byte) (*transcription.Recognition, error) {
	var out output
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrap(err, "Can't decode whisper output")
	}
	res := &transcription.Recognition{Segments: make([]transcription.Segment, 0, len(out.Transcription))}
	var text strings.Builder
	for i, tr := range out.Transcription {
		text.WriteString(tr.Text)
		res.Segments = append(res.Segments, transcription.Segment{
			ID:         i,
			Start:      float64(tr.Offsets.From) / 1000,
			End:        float64(tr.Offsets.To) / 1000,
			Text:       strings.TrimSpace(tr.Text),
			Confidence: meanP(tr.Tokens),
		})
	}
	res.Text = strings.TrimSpace(text.String())
	res.Language = out.Result.Language
	if res.Language == "" {
		res.Language = normalizeLanguage(out.Params.Language)
	}
	if res.Language == "" {
		res.Language = unknownLanguage
	}
	return res, nil
}

func meanP(tokens []token) float64 {
	if len(tokens) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range tokens {
		sum += t.P
	}
	return sum / float64(len(tokens))
}
