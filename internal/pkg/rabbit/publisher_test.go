package rabbit

import (
	"testing"

	"bitbucket.org/airenas/vidscribe/internal/pkg/messages"
	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type fakeRunner struct {
	calls int
	err   error
}

func (r *fakeRunner) RunOnChannelWithRetry(f runOnChannelFunc) error {
	r.calls++
	return r.err
}

type constBackOffProvider struct {
	retries uint64
}

func (bp *constBackOffProvider) Get() backoff.BackOff {
	return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, bp.retries)
}

func TestNewPublisher_Fails(t *testing.T) {
	_, err := NewPublisher(nil, &ExpBackOffProvider{})
	assert.NotNil(t, err)
	_, err = NewPublisher(&ChannelProvider{}, nil)
	assert.NotNil(t, err)
}

func TestPublish(t *testing.T) {
	r := &fakeRunner{}
	p := &Publisher{provider: r, bp: &constBackOffProvider{retries: 3}, declared: map[string]bool{}}
	err := p.Publish(messages.NewStatusMessage("1", "pending", 0), messages.TranscriptionStatus)
	assert.Nil(t, err)
	assert.Equal(t, 1, r.calls)
}

func TestPublish_Retries(t *testing.T) {
	r := &fakeRunner{err: errors.New("olia")}
	p := &Publisher{provider: r, bp: &constBackOffProvider{retries: 3}, declared: map[string]bool{}}
	err := p.Publish(messages.NewStatusMessage("1", "pending", 0), messages.TranscriptionStatus)
	assert.NotNil(t, err)
	assert.Equal(t, 4, r.calls)
}

func TestPublish_NoMessage(t *testing.T) {
	r := &fakeRunner{}
	p := &Publisher{provider: r, bp: &constBackOffProvider{}, declared: map[string]bool{}}
	assert.NotNil(t, p.Publish(nil, messages.TranscriptionStatus))
	assert.Equal(t, 0, r.calls)
}

func TestExpBackOffProvider(t *testing.T) {
	bp := &ExpBackOffProvider{MaxElapsedTime: 0}
	b := bp.Get()
	assert.NotNil(t, b)
	assert.True(t, b.NextBackOff() > 0)
}
