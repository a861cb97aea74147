package transcription

//SourceKind tells where the media comes from
type SourceKind string

const (
	//Upload - file posted by the caller
	Upload SourceKind = "upload"
	//Remote - media fetched from a locator
	Remote SourceKind = "remote"
)

//Source describes the media of a job
type Source struct {
	Kind            SourceKind
	FileName        string
	URL             string
	Title           string
	DurationSeconds *float64
	SizeBytes       int64
}

//Name returns file name for uploads or title for remote media
func (s Source) Name() string {
	if s.FileName != "" {
		return s.FileName
	}
	return s.Title
}

func (s Source) clone() Source {
	res := s
	if s.DurationSeconds != nil {
		d := *s.DurationSeconds
		res.DurationSeconds = &d
	}
	return res
}
