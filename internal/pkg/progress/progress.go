package progress

import "math"

//Range maps a sub operation progress [0, 100] into [Offset, Offset+100*Scale] of a job
type Range struct {
	Offset float64
	Scale  float64
}

var (
	//Full passes the value unchanged
	Full = Range{Offset: 0, Scale: 1}
	//Download is the share of media fetching in a remote job
	Download = Range{Offset: 0, Scale: 0.3}
	//AfterDownload is the share of inference in a remote job
	AfterDownload = Range{Offset: 30, Scale: 0.7}
)

//Map converts the sub operation value to the job progress
func (r Range) Map(v float64) float64 {
	if math.IsNaN(v) {
		v = 0
	}
	v = math.Max(0, math.Min(v, 100))
	return r.Offset + v*r.Scale
}

//Reporter returns a callback that maps values and passes them to set
func (r Range) Reporter(set func(float64)) func(float64) {
	return func(v float64) {
		set(r.Map(v))
	}
}
