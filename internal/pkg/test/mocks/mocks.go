package mocks

import (
	"context"

	"bitbucket.org/airenas/vidscribe/internal/pkg/messages"
	"bitbucket.org/airenas/vidscribe/internal/pkg/transcription"
	"github.com/stretchr/testify/mock"
)

//Transcriber is a mock
type Transcriber struct {
	mock.Mock
	//Progress values are reported before returning
	Progress []float64
}

//Transcribe is a mocked Transcribe function
func (m *Transcriber) Transcribe(ctx context.Context, audioPath, language string,
	onProgress transcription.ProgressFunc) (*transcription.Recognition, error) {
	for _, p := range m.Progress {
		if onProgress != nil {
			onProgress(p)
		}
	}
	args := m.Mock.Called(audioPath, language)
	return mockRecognition(args.Get(0)), args.Error(1)
}

//Device is a mocked Device function
func (m *Transcriber) Device() string {
	args := m.Mock.Called()
	return args.String(0)
}

//Fetcher is a mock
type Fetcher struct {
	mock.Mock
	//Progress values are reported before DownloadAudio returns
	Progress []float64
}

//Info is a mocked Info function
func (m *Fetcher) Info(ctx context.Context, url string) (*transcription.MediaInfo, error) {
	args := m.Mock.Called(url)
	return mockMediaInfo(args.Get(0)), args.Error(1)
}

//DownloadAudio is a mocked DownloadAudio function
func (m *Fetcher) DownloadAudio(ctx context.Context, url, destination string,
	onProgress transcription.ProgressFunc) (string, error) {
	for _, p := range m.Progress {
		if onProgress != nil {
			onProgress(p)
		}
	}
	args := m.Mock.Called(url, destination)
	return args.String(0), args.Error(1)
}

//Repository is a mock
type Repository struct {
	mock.Mock
}

//Save is a mocked Save function
func (m *Repository) Save(t *transcription.Transcription) error {
	args := m.Mock.Called(t)
	return args.Error(0)
}

//Get is a mocked Get function
func (m *Repository) Get(ID string) (*transcription.Transcription, error) {
	args := m.Mock.Called(ID)
	return mockTranscription(args.Get(0)), args.Error(1)
}

//List is a mocked List function
func (m *Repository) List() ([]*transcription.Transcription, error) {
	args := m.Mock.Called()
	res, _ := args.Get(0).([]*transcription.Transcription)
	return res, args.Error(1)
}

//Delete is a mocked Delete function
func (m *Repository) Delete(ID string) (bool, error) {
	args := m.Mock.Called(ID)
	return args.Bool(0), args.Error(1)
}

//Publisher is a mock
type Publisher struct {
	mock.Mock
}

//Publish is a mocked Publish function
func (m *Publisher) Publish(msg *messages.StatusMessage, topic string) error {
	args := m.Mock.Called(msg, topic)
	return args.Error(0)
}

//OldProvider is a mock
type OldProvider struct {
	mock.Mock
}

//Get is a mocked Get function
func (m *OldProvider) Get() ([]string, error) {
	args := m.Mock.Called()
	res, _ := args.Get(0).([]string)
	return res, args.Error(1)
}

//Cleaner is a mock
type Cleaner struct {
	mock.Mock
}

//Clean is a mocked Clean function
func (m *Cleaner) Clean(name string) error {
	args := m.Mock.Called(name)
	return args.Error(0)
}

func mockRecognition(v interface{}) *transcription.Recognition {
	res, _ := v.(*transcription.Recognition)
	return res
}

func mockMediaInfo(v interface{}) *transcription.MediaInfo {
	res, _ := v.(*transcription.MediaInfo)
	return res
}

func mockTranscription(v interface{}) *transcription.Transcription {
	res, _ := v.(*transcription.Transcription)
	return res
}
