package api

import (
	"sync"

	"bitbucket.org/airenas/vidscribe/internal/app/transcribe"
	"bitbucket.org/airenas/vidscribe/internal/pkg/cmdapp"
	"bitbucket.org/airenas/vidscribe/internal/pkg/messages"
	"bitbucket.org/airenas/vidscribe/internal/pkg/transcription"
	"github.com/pkg/errors"
)

//Notifier pushes job snapshots to websocket subscribers and to the message broker.
//Events are processed on one goroutine, Notify never blocks.
type Notifier struct {
	hub       *Hub
	publisher messages.Publisher
	topic     string
	queue     chan *transcription.Transcription
	wg        sync.WaitGroup
}

//NewNotifier creates the notifier, publisher may be nil
func NewNotifier(hub *Hub, publisher messages.Publisher, topic string, size int) (*Notifier, error) {
	if hub == nil {
		return nil, errors.New("No hub")
	}
	if size <= 0 {
		return nil, errors.Errorf("Wrong queue size %d", size)
	}
	if topic == "" {
		topic = messages.TranscriptionStatus
	}
	res := &Notifier{hub: hub, publisher: publisher, topic: topic,
		queue: make(chan *transcription.Transcription, size)}
	res.wg.Add(1)
	go res.loop()
	return res, nil
}

//Notify queues the snapshot, the event is dropped if the queue is full
func (n *Notifier) Notify(t *transcription.Transcription) {
	select {
	case n.queue <- t.Clone():
	default:
		cmdapp.Log.Warnf("Event queue is full, dropped event for %s", t.ID)
	}
}

//Close stops accepting events and waits for the queued ones
func (n *Notifier) Close() {
	close(n.queue)
	n.wg.Wait()
}

func (n *Notifier) loop() {
	defer n.wg.Done()
	for t := range n.queue {
		n.hub.Send(t.ID, toView(t))
		if n.publisher == nil {
			continue
		}
		msg := messages.NewStatusMessage(t.ID, t.Status.String(), t.Progress)
		msg.Error = t.Error
		if err := n.publisher.Publish(msg, n.topic); err != nil {
			cmdapp.Log.Error(errors.Wrapf(err, "Can't publish status of %s", t.ID))
		}
	}
}

// notifyingRepository emits an event after every successful save
type notifyingRepository struct {
	transcribe.Repository
	notifier *Notifier
}

func (r *notifyingRepository) Save(t *transcription.Transcription) error {
	if err := r.Repository.Save(t); err != nil {
		return err
	}
	r.notifier.Notify(t)
	return nil
}
