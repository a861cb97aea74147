package status

//Status represents transcription job status
type Status int

const (
	//Pending - job is created and waits for a pipeline
	Pending Status = iota + 1
	//Downloading - remote media is being fetched
	Downloading
	//ExtractingAudio is reserved for pipelines with a separate extraction step
	ExtractingAudio
	//Transcribing - inference is running
	Transcribing
	//Completed - terminal, result is available
	Completed
	//Failed - terminal, error message is available
	Failed
	//Cancelled - terminal
	Cancelled
)

var (
	statusName = map[Status]string{Pending: "pending", Downloading: "downloading",
		ExtractingAudio: "extracting_audio", Transcribing: "transcribing",
		Completed: "completed", Failed: "failed", Cancelled: "cancelled"}
	nameStatus = map[string]Status{"pending": Pending, "downloading": Downloading,
		"extracting_audio": ExtractingAudio, "transcribing": Transcribing,
		"completed": Completed, "failed": Failed, "cancelled": Cancelled}

	// allowed holds the edges of the job state machine
	allowed = map[Status][]Status{
		Pending:         {Downloading, ExtractingAudio, Transcribing, Failed, Cancelled},
		Downloading:     {ExtractingAudio, Transcribing, Failed, Cancelled},
		ExtractingAudio: {Transcribing, Failed, Cancelled},
		Transcribing:    {Completed, Failed, Cancelled},
	}
)

//Name returns the wire name of the status
func Name(st Status) string {
	return statusName[st]
}

//From parses status name, returns 0 for an unknown name
func From(st string) Status {
	return nameStatus[st]
}

func (st Status) String() string {
	return Name(st)
}

//IsTerminal returns true for statuses that allow no further transition
func IsTerminal(st Status) bool {
	return st == Completed || st == Failed || st == Cancelled
}

//CanMove checks if the state machine has the edge from -> to
func CanMove(from, to Status) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}
