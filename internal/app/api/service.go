package api

import (
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/airenas/vidscribe/internal/app/transcribe"
	"bitbucket.org/airenas/vidscribe/internal/pkg/cmdapp"
	"bitbucket.org/airenas/vidscribe/internal/pkg/config"
	"bitbucket.org/airenas/vidscribe/internal/pkg/export"
	"bitbucket.org/airenas/vidscribe/internal/pkg/saver"
	"bitbucket.org/airenas/vidscribe/internal/pkg/status"
	"bitbucket.org/airenas/vidscribe/internal/pkg/transcription"
	"github.com/facebookgo/grace/gracehttp"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/heptiolabs/healthcheck"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

const (
	prmFile       = "file"
	prmYoutubeURL = "youtube_url"
	prmURL        = "url"
	prmLanguage   = "language"
	prmModel      = "model_size"
	autoLanguage  = "auto"
	serviceName   = "vidscribe-api"
)

//FileSaver stages uploaded files
type FileSaver interface {
	Save(name string, reader io.Reader) (string, int64, error)
}

//JobDispatcher starts pipelines off the request path
type JobDispatcher interface {
	Upload(ID string, in transcribe.UploadInput) error
	Remote(ID string, in transcribe.RemoteInput) error
}

//ModelCatalog lists available models
type ModelCatalog interface {
	Has(name string) bool
	All() []config.Model
}

//DeviceProvider returns the inference device
type DeviceProvider interface {
	Device() string
}

type serviceMetric struct {
	responseDur *prometheus.HistogramVec
	requestSize *prometheus.HistogramVec
}

// ServiceData keeps data required for service work
type ServiceData struct {
	Repository   transcribe.Repository
	FileSaver    FileSaver
	Dispatcher   JobDispatcher
	Models       ModelCatalog
	Device       DeviceProvider
	Hub          *Hub
	DefaultModel string
	MaxFileSize  int64
	CorsOrigins  []string

	Port    int
	health  healthcheck.Handler
	metrics serviceMetric
}

//StartWebServer starts the HTTP service and listens for the requests
func StartWebServer(data *ServiceData) error {
	cmdapp.Log.Infof("Starting HTTP service at %d", data.Port)
	r := NewRouter(data)

	portStr := strconv.Itoa(data.Port)
	srv := http.Server{
		Addr:              ":" + portStr,
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Minute,
		Handler:           withCors(r, data.CorsOrigins),
	}

	w := cmdapp.Log.Writer()
	defer w.Close()
	l := log.New(w, "", 0)
	gracehttp.SetLogger(l)

	return gracehttp.Serve(&srv)
}

func withCors(h http.Handler, origins []string) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})
	return c.Handler(h)
}

//NewRouter creates the router for HTTP service
func NewRouter(data *ServiceData) *mux.Router {
	router := mux.NewRouter()
	sub := router.PathPrefix("/api/v1").Subrouter()
	sub.Methods("POST").Path("/transcriptions").Handler(data.instrument("create", createHandler{data: data}))
	sub.Methods("GET").Path("/transcriptions").Handler(data.instrument("list", listHandler{data: data}))
	sub.Methods("GET").Path("/transcriptions/{id}").Handler(data.instrument("get", getHandler{data: data}))
	sub.Methods("DELETE").Path("/transcriptions/{id}").Handler(data.instrument("delete", deleteHandler{data: data}))
	sub.Methods("GET").Path("/transcriptions/{id}/export").Handler(data.instrument("export", exportHandler{data: data}))
	sub.Methods("GET").Path("/health").HandlerFunc(healthHandler)
	sub.Methods("GET").Path("/status").Handler(statusHandler{data: data})
	sub.Methods("GET").Path("/models").Handler(modelsHandler{data: data})
	if data.Hub != nil {
		sub.Handle("/subscribe", websocketHandler{hub: data.Hub})
	}
	router.Methods("GET").Path("/metrics").Handler(promhttp.Handler())
	if data.health != nil {
		router.Methods("GET").Path("/live").HandlerFunc(data.health.LiveEndpoint)
		router.Methods("GET").Path("/ready").HandlerFunc(data.health.ReadyEndpoint)
	}
	return router
}

func (data *ServiceData) instrument(name string, h http.Handler) http.Handler {
	if data.metrics.responseDur == nil {
		return h
	}
	res := promhttp.InstrumentHandlerDuration(data.metrics.responseDur.MustCurryWith(prometheus.Labels{"handler": name}), h)
	if name == "create" && data.metrics.requestSize != nil {
		res = promhttp.InstrumentHandlerRequestSize(data.metrics.requestSize, res)
	}
	return res
}

type createHandler struct {
	data *ServiceData
}

func (h createHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cmdapp.Log.Infof("Create request from %s", r.Host)
	if h.data.MaxFileSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.data.MaxFileSize+(1<<20))
	}
	err := r.ParseMultipartForm(32 << 20)
	if err != nil {
		if isTooLarge(err) {
			http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			http.Error(w, "Can't parse MultipartForm", http.StatusBadRequest)
		}
		cmdapp.Log.Error(errors.Wrap(err, "Can't parse MultipartForm"))
		return
	}
	defer cleanFiles(r.MultipartForm)

	model := strings.TrimSpace(r.FormValue(prmModel))
	if model == "" {
		model = h.data.DefaultModel
	}
	if h.data.Models != nil && !h.data.Models.Has(model) {
		http.Error(w, "Unknown model: "+model, http.StatusBadRequest)
		cmdapp.Log.Errorf("Unknown model '%s'", model)
		return
	}
	language := strings.TrimSpace(r.FormValue(prmLanguage))
	if language == autoLanguage {
		language = ""
	}

	file, fHeader, err := r.FormFile(prmFile)
	if err == nil {
		defer file.Close()
		h.createUpload(w, file, fHeader, language, model)
		return
	}
	if err != http.ErrMissingFile {
		http.Error(w, "Wrong input form", http.StatusBadRequest)
		cmdapp.Log.Error(err)
		return
	}
	url := strings.TrimSpace(r.FormValue(prmYoutubeURL))
	if url == "" {
		url = strings.TrimSpace(r.FormValue(prmURL))
	}
	if url == "" {
		http.Error(w, "Provide either a file or youtube_url", http.StatusBadRequest)
		cmdapp.Log.Error("No file or url")
		return
	}
	h.createRemote(w, url, language, model)
}

func (h createHandler) createUpload(w http.ResponseWriter, file multipart.File, fHeader *multipart.FileHeader,
	language, model string) {
	if h.data.MaxFileSize > 0 && fHeader.Size > h.data.MaxFileSize {
		http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
		cmdapp.Log.Errorf("File too large: %d", fHeader.Size)
		return
	}
	ext := strings.ToLower(filepath.Ext(fHeader.Filename))
	if ext == "" {
		ext = ".mp4"
	}
	path, size, err := h.data.FileSaver.Save(uuid.New().String()+ext, file)
	if err != nil {
		if errors.Is(err, saver.ErrTooLarge) {
			http.Error(w, "File too large", http.StatusRequestEntityTooLarge)
		} else {
			http.Error(w, "Can not save file", http.StatusInternalServerError)
		}
		cmdapp.Log.Error(err)
		return
	}
	name := fHeader.Filename
	if name == "" {
		name = "unknown"
	}
	t := transcription.New(transcription.Source{Kind: transcription.Upload, FileName: name, SizeBytes: size}, model)
	if !h.save(w, t) {
		removeStaged(path)
		return
	}
	err = h.data.Dispatcher.Upload(t.ID, transcribe.UploadInput{FilePath: path, FileName: name, FileSize: size,
		Language: language, Model: model})
	if err != nil {
		removeStaged(path)
		h.dispatchFailed(w, t, err)
		return
	}
	writeJSON(w, toView(t))
}

func (h createHandler) createRemote(w http.ResponseWriter, url, language, model string) {
	t := transcription.New(transcription.Source{Kind: transcription.Remote, URL: url}, model)
	if !h.save(w, t) {
		return
	}
	err := h.data.Dispatcher.Remote(t.ID, transcribe.RemoteInput{URL: url, Language: language, Model: model})
	if err != nil {
		h.dispatchFailed(w, t, err)
		return
	}
	writeJSON(w, toView(t))
}

func (h createHandler) save(w http.ResponseWriter, t *transcription.Transcription) bool {
	if err := h.data.Repository.Save(t); err != nil {
		http.Error(w, "Can not save transcription", http.StatusInternalServerError)
		cmdapp.Log.Error(err)
		return false
	}
	cmdapp.Log.Infof("Created %s (%s)", t.ID, t.Source.Kind)
	return true
}

func (h createHandler) dispatchFailed(w http.ResponseWriter, t *transcription.Transcription, err error) {
	cmdapp.Log.Error(err)
	if fErr := t.Fail(err.Error()); fErr == nil {
		cmdapp.LogIf(h.data.Repository.Save(t))
	}
	http.Error(w, "Can not start transcription", http.StatusInternalServerError)
}

type listHandler struct {
	data *ServiceData
}

func (h listHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ts, err := h.data.Repository.List()
	if err != nil {
		http.Error(w, "Can not list transcriptions", http.StatusInternalServerError)
		cmdapp.Log.Error(err)
		return
	}
	writeJSON(w, toViews(ts))
}

type getHandler struct {
	data *ServiceData
}

func (h getHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t, ok := h.data.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, toView(t))
}

type deleteHandler struct {
	data *ServiceData
}

func (h deleteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	ok, err := h.data.Repository.Delete(id)
	if err != nil {
		http.Error(w, "Can not delete transcription", http.StatusInternalServerError)
		cmdapp.Log.Error(err)
		return
	}
	if !ok {
		http.Error(w, "Transcription not found", http.StatusNotFound)
		return
	}
	cmdapp.Log.Infof("Deleted %s", id)
	writeJSON(w, map[string]string{"status": "deleted"})
}

type exportResult struct {
	Content interface{} `json:"content"`
	Format  string      `json:"format"`
}

type exportHandler struct {
	data *ServiceData
}

func (h exportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	t, ok := h.data.load(w, r)
	if !ok {
		return
	}
	if t.Status != status.Completed || t.Result == nil {
		http.Error(w, "Transcription not completed", http.StatusBadRequest)
		return
	}
	f := r.URL.Query().Get("format")
	if f == "" {
		f = string(export.TXT)
	}
	content, err := export.Render(t.Result, export.Format(f))
	if err != nil {
		if errors.Is(err, export.ErrUnsupported) {
			http.Error(w, "Unsupported format: "+f, http.StatusBadRequest)
		} else {
			http.Error(w, "Can not export", http.StatusInternalServerError)
		}
		cmdapp.Log.Error(err)
		return
	}
	writeJSON(w, &exportResult{Content: content, Format: f})
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "healthy", "service": serviceName})
}

type statusResult struct {
	Status       string `json:"status"`
	WhisperModel string `json:"whisper_model"`
	Device       string `json:"device"`
	GPUAvailable bool   `json:"gpu_available"`
}

type statusHandler struct {
	data *ServiceData
}

func (h statusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	device := "cpu"
	if h.data.Device != nil {
		device = h.data.Device.Device()
	}
	writeJSON(w, &statusResult{Status: "ready", WhisperModel: h.data.DefaultModel, Device: device,
		GPUAvailable: device != "cpu"})
}

type modelsHandler struct {
	data *ServiceData
}

func (h modelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	res := []config.Model{}
	if h.data.Models != nil {
		res = h.data.Models.All()
	}
	writeJSON(w, map[string][]config.Model{"models": res})
}

func (data *ServiceData) load(w http.ResponseWriter, r *http.Request) (*transcription.Transcription, bool) {
	id := mux.Vars(r)["id"]
	t, err := data.Repository.Get(id)
	if err != nil {
		http.Error(w, "Can not get transcription", http.StatusInternalServerError)
		cmdapp.Log.Error(err)
		return nil, false
	}
	if t == nil {
		http.Error(w, "Transcription not found", http.StatusNotFound)
		return nil, false
	}
	return t, true
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	encoder := json.NewEncoder(w)
	if err := encoder.Encode(v); err != nil {
		http.Error(w, "Can not prepare result", http.StatusInternalServerError)
		cmdapp.Log.Error(err)
	}
}

func cleanFiles(f *multipart.Form) {
	if f != nil {
		f.RemoveAll()
	}
}

func isTooLarge(err error) bool {
	var mErr *http.MaxBytesError
	if errors.As(err, &mErr) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "request body too large")
}

func removeStaged(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		cmdapp.Log.Warn(errors.Wrapf(err, "Can't remove %s", path))
	}
}
