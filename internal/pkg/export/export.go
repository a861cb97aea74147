package export

import (
	"fmt"
	"math"
	"strings"

	"bitbucket.org/airenas/vidscribe/internal/pkg/transcription"
	"github.com/pkg/errors"
)

//Format of the exported transcript
type Format string

const (
	//TXT plain text
	TXT Format = "txt"
	//SRT subtitles
	SRT Format = "srt"
	//VTT web subtitles
	VTT Format = "vtt"
	//JSON text with segments
	JSON Format = "json"
)

//ErrUnsupported is returned for an unknown format
var ErrUnsupported = errors.New("unsupported format")

//JSONSegment is a segment in the json export
type JSONSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

//JSONContent is the json export
type JSONContent struct {
	Text     string        `json:"text"`
	Language string        `json:"language"`
	Segments []JSONSegment `json:"segments"`
}

//Render converts the result to the format.
//The returned value is a string for text formats and *JSONContent for json.
func Render(r *transcription.Result, f Format) (interface{}, error) {
	if r == nil {
		return nil, errors.New("No result")
	}
	switch f {
	case TXT:
		return r.Text, nil
	case SRT:
		return toSRT(r.Segments), nil
	case VTT:
		return toVTT(r.Segments), nil
	case JSON:
		return toJSON(r), nil
	}
	return nil, errors.Wrapf(ErrUnsupported, "%s", f)
}

func toSRT(segments []transcription.Segment) string {
	var b strings.Builder
	for i, s := range segments {
		fmt.Fprintf(&b, "%d\n%s --> %s\n%s\n\n", i+1, timestamp(s.Start, ","), timestamp(s.End, ","), s.Text)
	}
	return b.String()
}

func toVTT(segments []transcription.Segment) string {
	var b strings.Builder
	b.WriteString("WEBVTT\n\n")
	for _, s := range segments {
		fmt.Fprintf(&b, "%s --> %s\n%s\n\n", timestamp(s.Start, "."), timestamp(s.End, "."), s.Text)
	}
	return b.String()
}

func toJSON(r *transcription.Result) *JSONContent {
	res := &JSONContent{Text: r.Text, Language: r.Language, Segments: make([]JSONSegment, 0, len(r.Segments))}
	for _, s := range r.Segments {
		res.Segments = append(res.Segments, JSONSegment{Start: s.Start, End: s.End, Text: s.Text})
	}
	return res
}

// timestamp formats seconds as HH:MM:SS<sep>mmm
func timestamp(sec float64, sep string) string {
	if sec < 0 || math.IsNaN(sec) {
		sec = 0
	}
	ms := int64(math.Round(sec * 1000))
	s := ms / 1000
	return fmt.Sprintf("%02d:%02d:%02d%s%03d", s/3600, (s%3600)/60, s%60, sep, ms%1000)
}
