package transcription

//Segment is one recognized span of speech
type Segment struct {
	ID         int     `json:"id"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

//Duration returns segment length in seconds
func (s Segment) Duration() float64 {
	return s.End - s.Start
}

//Result is the outcome of a successful transcription
type Result struct {
	Text            string    `json:"text"`
	Segments        []Segment `json:"segments"`
	Language        string    `json:"language"`
	DurationSeconds float64   `json:"durationSeconds"`
}

func (r *Result) clone() *Result {
	if r == nil {
		return nil
	}
	res := *r
	if r.Segments != nil {
		res.Segments = make([]Segment, len(r.Segments))
		copy(res.Segments, r.Segments)
	}
	return &res
}

//ProgressFunc receives a progress value in [0, 100]
type ProgressFunc func(progress float64)

//Recognition is what an inference engine returns
type Recognition struct {
	Text     string
	Segments []Segment
	Language string
}

//MediaInfo describes remote media without downloading it
type MediaInfo struct {
	Title           string
	DurationSeconds float64
	URL             string
}
