package messages

// Publisher publishes a status event to a topic
type Publisher interface {
	Publish(msg *StatusMessage, topic string) error
}
