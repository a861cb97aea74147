package messages

//TranscriptionStatus default exchange for status events
const TranscriptionStatus = "TranscriptionStatus"

//StatusMessage is published on every job state change
type StatusMessage struct {
	ID       string  `json:"id"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	Error    string  `json:"error,omitempty"`
}

//NewStatusMessage creates the message
func NewStatusMessage(id, status string, progress float64) *StatusMessage {
	return &StatusMessage{ID: id, Status: status, Progress: progress}
}
