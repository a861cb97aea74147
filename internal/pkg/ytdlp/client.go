package ytdlp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/airenas/vidscribe/internal/pkg/cmdapp"
	"bitbucket.org/airenas/vidscribe/internal/pkg/process"
	"bitbucket.org/airenas/vidscribe/internal/pkg/transcription"
	"bitbucket.org/airenas/vidscribe/internal/pkg/utils"
	"github.com/pkg/errors"
)

const (
	progressPrefix   = "vidscribe-progress "
	progressTemplate = "download:" + progressPrefix +
		"%(progress.downloaded_bytes)s %(progress.total_bytes)s %(progress.total_bytes_estimate)s"
	unknownTitle = "Unknown"
)

type cmdRunner interface {
	Run(ctx context.Context, name string, args []string, onLine process.LineFunc) (string, error)
}

//Options for yt-dlp invocation
type Options struct {
	Cmd         string
	InfoTimeout time.Duration
	AudioFormat string
}

//Client fetches remote media with yt-dlp
type Client struct {
	opts   Options
	runner cmdRunner
}

//NewClient creates yt-dlp client
func NewClient(opts Options, runner cmdRunner) (*Client, error) {
	if opts.Cmd == "" {
		return nil, errors.New("No yt-dlp command")
	}
	if runner == nil {
		return nil, errors.New("No command runner")
	}
	if opts.InfoTimeout <= 0 {
		opts.InfoTimeout = 30 * time.Second
	}
	if opts.AudioFormat == "" {
		opts.AudioFormat = "mp3"
	}
	return &Client{opts: opts, runner: runner}, nil
}

type info struct {
	Title      string  `json:"title"`
	Duration   float64 `json:"duration"`
	WebpageURL string  `json:"webpage_url"`
}

//Info resolves media metadata without downloading
func (c *Client) Info(ctx context.Context, url string) (*transcription.MediaInfo, error) {
	cmdapp.Log.Infof("Get info for %s", utils.URLToLog(url))
	ctx, cancel := context.WithTimeout(ctx, c.opts.InfoTimeout)
	defer cancel()
	out, err := c.runner.Run(ctx, c.opts.Cmd, []string{"--dump-single-json", "--no-warnings", "--skip-download",
		"--no-playlist", url}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "Can't get media info")
	}
	var inf info
	if err := json.Unmarshal([]byte(out), &inf); err != nil {
		return nil, errors.Wrap(err, "Can't decode media info")
	}
	res := &transcription.MediaInfo{Title: inf.Title, DurationSeconds: inf.Duration, URL: url}
	if res.Title == "" {
		res.Title = unknownTitle
	}
	return res, nil
}

//DownloadAudio downloads and converts media to audio. Returns the real output file path.
func (c *Client) DownloadAudio(ctx context.Context, url, destination string,
	onProgress transcription.ProgressFunc) (string, error) {
	base := strings.TrimSuffix(destination, filepath.Ext(destination))
	cmdapp.Log.Infof("Download %s to %s", utils.URLToLog(url), base)
	args := []string{"-f", "bestaudio/best", "-x", "--audio-format", c.opts.AudioFormat, "--audio-quality", "192K",
		"--no-playlist", "--no-warnings", "--newline", "--progress-template", progressTemplate,
		"-o", base + ".%(ext)s", url}
	last := 0.0
	_, err := c.runner.Run(ctx, c.opts.Cmd, args, func(line string) {
		p, ok := parseProgress(line)
		if !ok || p < last || onProgress == nil {
			return
		}
		last = p
		onProgress(p)
	})
	if err != nil {
		return "", errors.Wrap(err, "Can't download audio")
	}
	return base + "." + c.opts.AudioFormat, nil
}

// parseProgress returns percentage from a progress template line, false if total size is unknown
func parseProgress(line string) (float64, bool) {
	i := strings.Index(line, progressPrefix)
	if i < 0 {
		return 0, false
	}
	fields := strings.Fields(line[i+len(progressPrefix):])
	if len(fields) < 3 {
		return 0, false
	}
	done, ok := number(fields[0])
	if !ok {
		return 0, false
	}
	total, ok := number(fields[1])
	if !ok || total <= 0 {
		total, ok = number(fields[2])
	}
	if !ok || total <= 0 {
		return 0, false
	}
	res := done / total * 100
	if res > 100 {
		res = 100
	}
	return res, true
}

func number(s string) (float64, bool) {
	res, err := strconv.ParseFloat(s, 64)
	return res, err == nil
}
