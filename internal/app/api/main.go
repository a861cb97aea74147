package api

import (
	"sync"
	"time"

	"bitbucket.org/airenas/vidscribe/internal/app/transcribe"
	"bitbucket.org/airenas/vidscribe/internal/pkg/clean"
	"bitbucket.org/airenas/vidscribe/internal/pkg/cmdapp"
	"bitbucket.org/airenas/vidscribe/internal/pkg/config"
	"bitbucket.org/airenas/vidscribe/internal/pkg/memory"
	"bitbucket.org/airenas/vidscribe/internal/pkg/messages"
	"bitbucket.org/airenas/vidscribe/internal/pkg/metrics"
	"bitbucket.org/airenas/vidscribe/internal/pkg/process"
	"bitbucket.org/airenas/vidscribe/internal/pkg/rabbit"
	"bitbucket.org/airenas/vidscribe/internal/pkg/saver"
	"bitbucket.org/airenas/vidscribe/internal/pkg/utils"
	"bitbucket.org/airenas/vidscribe/internal/pkg/whisper"
	"bitbucket.org/airenas/vidscribe/internal/pkg/ytdlp"
	"github.com/heptiolabs/healthcheck"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

var appName = "VidScribe Transcription Service"

var rootCmd = &cobra.Command{
	Use:   "vidscribeService",
	Short: appName,
	Long:  `HTTP server to transcribe uploaded files and remote videos`,
	Run:   run,
}

func init() {
	cmdapp.InitApplication(rootCmd)
	rootCmd.PersistentFlags().Int32P("port", "", 8000, "Default service port")
	cmdapp.Config.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	cmdapp.Config.SetDefault("port", 8000)
	cmdapp.Config.SetDefault("cors.origins", "http://localhost:3000")
	cmdapp.Config.SetDefault("staging.path", "./uploads")
	cmdapp.Config.SetDefault("upload.maxSize", int64(1<<30))
	cmdapp.Config.SetDefault("whisper.model", "base")
	cmdapp.Config.SetDefault("whisper.cmd", "whisper-cli")
	cmdapp.Config.SetDefault("whisper.modelsDir", "./models")
	cmdapp.Config.SetDefault("whisper.progressEvery", time.Second)
	cmdapp.Config.SetDefault("ffmpeg.cmd", "ffmpeg")
	cmdapp.Config.SetDefault("ytdlp.cmd", "yt-dlp")
	cmdapp.Config.SetDefault("ytdlp.infoTimeout", 30*time.Second)
	cmdapp.Config.SetDefault("ytdlp.audioFormat", "mp3")
	cmdapp.Config.SetDefault("clean.runEvery", time.Hour)
	cmdapp.Config.SetDefault("clean.expire", 24*time.Hour)
	cmdapp.Config.SetDefault("messageServer.exchange", messages.TranscriptionStatus)
	cmdapp.Config.SetDefault("events.queueSize", 1000)
}

//Execute starts the server
func Execute() {
	cmdapp.Execute(rootCmd)
}

func run(cmd *cobra.Command, args []string) {
	cmdapp.Log.Info("Starting " + appName)
	data := &ServiceData{}
	data.health = healthcheck.NewHandler()
	data.DefaultModel = cmdapp.Config.GetString("whisper.model")
	data.MaxFileSize = cmdapp.Config.GetInt64("upload.maxSize")
	data.CorsOrigins = utils.SplitCSV(cmdapp.Config.GetString("cors.origins"))
	data.Port = cmdapp.Config.GetInt("port")

	var reapLock *sync.RWMutex
	if cmdapp.Config.GetBool("reaper.enabled") {
		reapLock = process.StartReaper()
	}
	w := cmdapp.Log.Writer()
	defer w.Close()
	runner := process.NewRunner(reapLock).WithLog(w)

	catalog, err := config.NewCatalog(cmdapp.Config.GetString("models.path"))
	cmdapp.CheckOrPanic(err, "Can't init model catalog")
	data.Models = catalog
	if !catalog.Has(data.DefaultModel) {
		cmdapp.CheckOrPanic(errors.Errorf("Default model '%s' is not in the catalog", data.DefaultModel), "")
	}

	wp, err := whisper.NewProvider(whisper.Options{
		Cmd:           cmdapp.Config.GetString("whisper.cmd"),
		FFmpegCmd:     cmdapp.Config.GetString("ffmpeg.cmd"),
		Device:        cmdapp.Config.GetString("whisper.device"),
		ProgressEvery: cmdapp.DurationOr("whisper.progressEvery", time.Second),
	}, cmdapp.Config.GetString("whisper.modelsDir"), runner)
	cmdapp.CheckOrPanic(err, "Can't init whisper")
	data.Device = wp

	fetcher, err := ytdlp.NewClient(ytdlp.Options{
		Cmd:         cmdapp.Config.GetString("ytdlp.cmd"),
		InfoTimeout: cmdapp.DurationOr("ytdlp.infoTimeout", 30*time.Second),
		AudioFormat: cmdapp.Config.GetString("ytdlp.audioFormat"),
	}, runner)
	cmdapp.CheckOrPanic(err, "Can't init yt-dlp")

	stagingPath := cmdapp.Config.GetString("staging.path")
	fs, err := saver.NewLocalFileSaver(stagingPath, data.MaxFileSize)
	cmdapp.CheckOrPanic(err, "Can't init file storage")
	data.FileSaver = fs
	data.health.AddLivenessCheck("fs", fs.HealthyFunc())

	var publisher messages.Publisher
	if cmdapp.Config.GetString("messageServer.url") != "" {
		msgChannelProvider, err := rabbit.NewChannelProvider()
		cmdapp.CheckOrPanic(err, "Can't init rabbit channel")
		defer msgChannelProvider.Close()
		data.health.AddLivenessCheck("rabbit", healthcheck.Async(msgChannelProvider.Healthy, 10*time.Second))
		publisher, err = rabbit.NewPublisher(msgChannelProvider, &rabbit.ExpBackOffProvider{MaxElapsedTime: 10 * time.Second})
		cmdapp.CheckOrPanic(err, "Can't init rabbit publisher")
	} else {
		cmdapp.Log.Info("No messageServer.url, status events are not published to the broker")
	}
	data.Hub = NewHub()
	notifier, err := NewNotifier(data.Hub, publisher, cmdapp.Config.GetString("messageServer.exchange"),
		cmdapp.Config.GetInt("events.queueSize"))
	cmdapp.CheckOrPanic(err, "Can't init notifier")
	defer notifier.Close()

	mem := memory.NewRepository()
	data.Repository = &notifyingRepository{Repository: mem, notifier: notifier}

	models := whisperModels{provider: wp}
	up, err := transcribe.NewUploadPipeline(data.Repository, models)
	cmdapp.CheckOrPanic(err, "Can't init upload pipeline")
	rp, err := transcribe.NewRemotePipeline(data.Repository, models, fetcher, stagingPath)
	cmdapp.CheckOrPanic(err, "Can't init remote pipeline")

	jm, err := initMetrics(data)
	cmdapp.CheckOrPanic(err, "Can't init metrics")
	dispatcher, err := newDispatcher(up, rp, mem, jm)
	cmdapp.CheckOrPanic(err, "Can't init dispatcher")
	defer dispatcher.Stop()
	data.Dispatcher = dispatcher

	lf, err := clean.NewLocalFile(stagingPath, cmdapp.DurationOr("clean.expire", 24*time.Hour))
	cmdapp.CheckOrPanic(err, "Can't init cleaner")
	timer, err := clean.NewTimer(cmdapp.DurationOr("clean.runEvery", time.Hour), lf, lf)
	cmdapp.CheckOrPanic(err, "Can't init clean timer")
	defer timer.Start()()

	err = StartWebServer(data)
	cmdapp.CheckOrPanic(err, "Can't start web server")
	cmdapp.Log.Info("Exiting " + appName)
}

// whisperModels resolves the transcriber of a job model
type whisperModels struct {
	provider *whisper.Provider
}

func (m whisperModels) Transcriber(model string) (transcribe.Transcriber, error) {
	s, err := m.provider.Get(model)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func initMetrics(data *ServiceData) (*jobMetrics, error) {
	namespace := "vidscribe"
	var err error
	data.metrics.responseDur, err = metrics.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "request_durations_seconds",
		Help:      "Request latency distributions.",
	}, "handler", "method", "code")
	if err != nil {
		return nil, err
	}
	data.metrics.requestSize, err = metrics.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upload_size_bytes",
		Help:      "Upload request size distributions.",
		Buckets:   prometheus.ExponentialBuckets(1<<20, 2, 11),
	}, "code")
	if err != nil {
		return nil, err
	}
	return newJobMetrics(namespace)
}

func newJobMetrics(namespace string) (*jobMetrics, error) {
	res := &jobMetrics{}
	var err error
	res.duration, err = metrics.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Transcription pipeline duration",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 15),
	}, "source")
	if err != nil {
		return nil, err
	}
	res.outcome, err = metrics.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_total",
		Help:      "Finished transcription pipelines",
	}, "source", "result")
	if err != nil {
		return nil, err
	}
	return res, nil
}
