package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"bitbucket.org/airenas/vidscribe/internal/app/transcribe"
	"bitbucket.org/airenas/vidscribe/internal/pkg/config"
	"bitbucket.org/airenas/vidscribe/internal/pkg/memory"
	"bitbucket.org/airenas/vidscribe/internal/pkg/saver"
	"bitbucket.org/airenas/vidscribe/internal/pkg/status"
	"bitbucket.org/airenas/vidscribe/internal/pkg/transcription"
	"github.com/heptiolabs/healthcheck"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type dispatcherMock struct {
	mock.Mock
}

func (m *dispatcherMock) Upload(ID string, in transcribe.UploadInput) error {
	return m.Called(ID, in).Error(0)
}

func (m *dispatcherMock) Remote(ID string, in transcribe.RemoteInput) error {
	return m.Called(ID, in).Error(0)
}

type saverMock struct {
	mock.Mock
	body string
}

func (m *saverMock) Save(name string, reader io.Reader) (string, int64, error) {
	b, _ := io.ReadAll(reader)
	m.body = string(b)
	args := m.Called(name)
	return args.String(0), int64(len(b)), args.Error(1)
}

type deviceMock string

func (d deviceMock) Device() string {
	return string(d)
}

var (
	repo     *memory.Repository
	dispMock *dispatcherMock
	fsMock   *saverMock
)

func newTestData(t *testing.T) *ServiceData {
	repo = memory.NewRepository()
	dispMock = &dispatcherMock{}
	fsMock = &saverMock{}
	catalog, err := config.NewCatalog("")
	require.Nil(t, err)
	return &ServiceData{Repository: repo, FileSaver: fsMock, Dispatcher: dispMock, Models: catalog,
		Device: deviceMock("cpu"), DefaultModel: "base", health: healthcheck.NewHandler()}
}

func testCode(t *testing.T, data *ServiceData, req *http.Request, code int) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	NewRouter(data).ServeHTTP(resp, req)
	assert.Equal(t, code, resp.Code)
	return resp
}

func newForm(t *testing.T, file string, fields map[string]string) *http.Request {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if file != "" {
		part, err := writer.CreateFormFile("file", file)
		require.Nil(t, err)
		_, _ = io.Copy(part, strings.NewReader("body"))
	}
	for k, v := range fields {
		writer.WriteField(k, v)
	}
	writer.Close()
	req := httptest.NewRequest("POST", "/api/v1/transcriptions", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeView(t *testing.T, resp *httptest.ResponseRecorder) *TranscriptionView {
	res := &TranscriptionView{}
	require.Nil(t, json.NewDecoder(resp.Body).Decode(res))
	return res
}

func completed(t *testing.T) *transcription.Transcription {
	tr := transcription.New(transcription.Source{Kind: transcription.Upload, FileName: "a.mp4"}, "base")
	require.Nil(t, tr.StartTranscription())
	require.Nil(t, tr.Complete(transcription.Result{Text: "hello world", Language: "en",
		Segments: []transcription.Segment{{Start: 0, End: 1.2, Text: "hello world"}}}, "cpu", 2*time.Second))
	require.Nil(t, repo.Save(tr))
	return tr
}

func TestWrongPath(t *testing.T) {
	testCode(t, newTestData(t), httptest.NewRequest("GET", "/invalid", nil), 404)
	testCode(t, newTestData(t), httptest.NewRequest("GET", "/transcriptions", nil), 404)
}

func TestHealth(t *testing.T) {
	resp := testCode(t, newTestData(t), httptest.NewRequest("GET", "/api/v1/health", nil), 200)
	assert.Equal(t, `{"service":"vidscribe-api","status":"healthy"}`, strings.TrimSpace(resp.Body.String()))
	testCode(t, newTestData(t), httptest.NewRequest("GET", "/live", nil), 200)
	testCode(t, newTestData(t), httptest.NewRequest("GET", "/ready", nil), 200)
	testCode(t, newTestData(t), httptest.NewRequest("GET", "/metrics", nil), 200)
}

func TestStatus(t *testing.T) {
	d := newTestData(t)
	d.Device = deviceMock("cuda")
	resp := testCode(t, d, httptest.NewRequest("GET", "/api/v1/status", nil), 200)
	assert.Equal(t, `{"status":"ready","whisper_model":"base","device":"cuda","gpu_available":true}`,
		strings.TrimSpace(resp.Body.String()))
}

func TestModels(t *testing.T) {
	resp := testCode(t, newTestData(t), httptest.NewRequest("GET", "/api/v1/models", nil), 200)
	res := map[string][]config.Model{}
	require.Nil(t, json.NewDecoder(resp.Body).Decode(&res))
	require.Equal(t, 5, len(res["models"]))
	assert.Equal(t, config.Model{Name: "tiny", SizeMB: 39, Description: "Fastest, lower accuracy"}, res["models"][0])
}

func TestCreate_Upload(t *testing.T) {
	d := newTestData(t)
	fsMock.On("Save", mock.Anything).Return("/uploads/x.mp4", nil)
	dispMock.On("Upload", mock.Anything, mock.Anything).Return(nil)

	resp := testCode(t, d, newForm(t, "Video.MP4", map[string]string{"language": "lt", "model_size": "small"}), 200)

	v := decodeView(t, resp)
	assert.Equal(t, "pending", v.Status)
	assert.Equal(t, 0.0, v.Progress)
	assert.Equal(t, "upload", v.SourceType)
	assert.Equal(t, "Video.MP4", v.SourceName)
	assert.Equal(t, "small", v.Model)
	assert.Nil(t, v.Text)
	assert.Equal(t, "body", fsMock.body)
	name := fsMock.Calls[0].Arguments.String(0)
	assert.True(t, strings.HasSuffix(name, ".mp4"), name)
	dispMock.AssertCalled(t, "Upload", v.ID, transcribe.UploadInput{FilePath: "/uploads/x.mp4", FileName: "Video.MP4",
		FileSize: 4, Language: "lt", Model: "small"})
	saved, _ := repo.Get(v.ID)
	require.NotNil(t, saved)
	assert.Equal(t, status.Pending, saved.Status)
	assert.Equal(t, int64(4), saved.Source.SizeBytes)
}

func TestCreate_Remote(t *testing.T) {
	d := newTestData(t)
	dispMock.On("Remote", mock.Anything, mock.Anything).Return(nil)

	resp := testCode(t, d, newForm(t, "", map[string]string{"youtube_url": "https://youtu.be/x", "language": "auto"}), 200)

	v := decodeView(t, resp)
	assert.Equal(t, "pending", v.Status)
	assert.Equal(t, "remote", v.SourceType)
	assert.Equal(t, "base", v.Model)
	dispMock.AssertCalled(t, "Remote", v.ID, transcribe.RemoteInput{URL: "https://youtu.be/x", Model: "base"})
	fsMock.AssertNotCalled(t, "Save", mock.Anything)
}

func TestCreate_RemoteURLParam(t *testing.T) {
	d := newTestData(t)
	dispMock.On("Remote", mock.Anything, mock.Anything).Return(nil)

	testCode(t, d, newForm(t, "", map[string]string{"url": "https://vimeo.com/1"}), 200)

	dispMock.AssertCalled(t, "Remote", mock.Anything, transcribe.RemoteInput{URL: "https://vimeo.com/1", Model: "base"})
}

func TestCreate_NoSource(t *testing.T) {
	d := newTestData(t)
	testCode(t, d, newForm(t, "", map[string]string{"language": "en"}), 400)
	testCode(t, d, httptest.NewRequest("POST", "/api/v1/transcriptions", nil), 400)
	list, _ := repo.List()
	assert.Equal(t, 0, len(list))
}

func TestCreate_UnknownModel(t *testing.T) {
	d := newTestData(t)
	testCode(t, d, newForm(t, "a.mp4", map[string]string{"model_size": "huge"}), 400)
	fsMock.AssertNotCalled(t, "Save", mock.Anything)
}

func TestCreate_TooLarge(t *testing.T) {
	d := newTestData(t)
	fsMock.On("Save", mock.Anything).Return("", errors.Wrap(saver.ErrTooLarge, "limit"))
	testCode(t, d, newForm(t, "a.mp4", nil), 413)

	d.MaxFileSize = 2
	testCode(t, d, newForm(t, "a.mp4", nil), 413)
	list, _ := repo.List()
	assert.Equal(t, 0, len(list))
}

func TestCreate_SaveFails(t *testing.T) {
	d := newTestData(t)
	fsMock.On("Save", mock.Anything).Return("", errors.New("olia"))
	testCode(t, d, newForm(t, "a.mp4", nil), 500)
	dispMock.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestCreate_DispatchFails(t *testing.T) {
	d := newTestData(t)
	dispMock.On("Remote", mock.Anything, mock.Anything).Return(errors.New("olia"))

	testCode(t, d, newForm(t, "", map[string]string{"youtube_url": "x"}), 500)

	list, _ := repo.List()
	require.Equal(t, 1, len(list))
	assert.Equal(t, status.Failed, list[0].Status)
	assert.Equal(t, "olia", list[0].Error)
}

func TestList(t *testing.T) {
	d := newTestData(t)
	resp := testCode(t, d, httptest.NewRequest("GET", "/api/v1/transcriptions", nil), 200)
	assert.Equal(t, "[]", strings.TrimSpace(resp.Body.String()))

	t1 := completed(t)
	t2 := transcription.New(transcription.Source{Kind: transcription.Remote, URL: "x"}, "base")
	require.Nil(t, repo.Save(t2))

	resp = testCode(t, d, httptest.NewRequest("GET", "/api/v1/transcriptions", nil), 200)
	var res []*TranscriptionView
	require.Nil(t, json.NewDecoder(resp.Body).Decode(&res))
	require.Equal(t, 2, len(res))
	assert.Equal(t, t1.ID, res[0].ID)
	assert.Equal(t, t2.ID, res[1].ID)
}

func TestGet(t *testing.T) {
	d := newTestData(t)
	tr := completed(t)

	resp := testCode(t, d, httptest.NewRequest("GET", "/api/v1/transcriptions/"+tr.ID, nil), 200)

	v := decodeView(t, resp)
	assert.Equal(t, "completed", v.Status)
	assert.Equal(t, 100.0, v.Progress)
	require.NotNil(t, v.Text)
	assert.Equal(t, "hello world", *v.Text)
	assert.Equal(t, "en", v.Language)
	assert.Equal(t, "cpu", v.Device)
	require.NotNil(t, v.ProcessingTime)
	assert.Equal(t, 2.0, *v.ProcessingTime)
	assert.NotNil(t, v.CompletedAt)
}

func TestGet_NotFound(t *testing.T) {
	testCode(t, newTestData(t), httptest.NewRequest("GET", "/api/v1/transcriptions/missing", nil), 404)
}

func TestDelete(t *testing.T) {
	d := newTestData(t)
	tr := completed(t)
	resp := testCode(t, d, httptest.NewRequest("DELETE", "/api/v1/transcriptions/"+tr.ID, nil), 200)
	assert.Equal(t, `{"status":"deleted"}`, strings.TrimSpace(resp.Body.String()))
	testCode(t, d, httptest.NewRequest("DELETE", "/api/v1/transcriptions/"+tr.ID, nil), 404)
	testCode(t, d, httptest.NewRequest("GET", "/api/v1/transcriptions/"+tr.ID, nil), 404)
}

func TestExport(t *testing.T) {
	d := newTestData(t)
	tr := completed(t)

	resp := testCode(t, d, httptest.NewRequest("GET", "/api/v1/transcriptions/"+tr.ID+"/export", nil), 200)
	assert.Equal(t, `{"content":"hello world","format":"txt"}`, strings.TrimSpace(resp.Body.String()))

	resp = testCode(t, d, httptest.NewRequest("GET", "/api/v1/transcriptions/"+tr.ID+"/export?format=srt", nil), 200)
	res := exportResult{}
	require.Nil(t, json.NewDecoder(resp.Body).Decode(&res))
	assert.Equal(t, "srt", res.Format)
	assert.Equal(t, "1\n00:00:00,000 --> 00:00:01,200\nhello world\n\n", res.Content)

	resp = testCode(t, d, httptest.NewRequest("GET", "/api/v1/transcriptions/"+tr.ID+"/export?format=json", nil), 200)
	assert.Contains(t, resp.Body.String(), `"segments":[{"start":0,"end":1.2,"text":"hello world"}]`)
}

func TestExport_Fails(t *testing.T) {
	d := newTestData(t)
	tr := completed(t)
	testCode(t, d, httptest.NewRequest("GET", "/api/v1/transcriptions/"+tr.ID+"/export?format=doc", nil), 400)
	testCode(t, d, httptest.NewRequest("GET", "/api/v1/transcriptions/missing/export", nil), 404)

	pending := transcription.New(transcription.Source{Kind: transcription.Remote, URL: "x"}, "base")
	require.Nil(t, repo.Save(pending))
	resp := testCode(t, d, httptest.NewRequest("GET", "/api/v1/transcriptions/"+pending.ID+"/export", nil), 400)
	assert.Equal(t, "Transcription not completed", strings.TrimSpace(resp.Body.String()))
}

func TestCors(t *testing.T) {
	d := newTestData(t)
	h := withCors(NewRouter(d), []string{"http://localhost:3000"})
	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	assert.Equal(t, "http://localhost:3000", resp.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/api/v1/health", nil)
	req.Header.Set("Origin", "http://other")
	resp = httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	assert.Equal(t, "", resp.Header().Get("Access-Control-Allow-Origin"))
}

func TestInstrument(t *testing.T) {
	d := newTestData(t)
	_, err := initMetrics(d)
	require.Nil(t, err)
	testCode(t, d, httptest.NewRequest("GET", "/api/v1/transcriptions", nil), 200)
}
