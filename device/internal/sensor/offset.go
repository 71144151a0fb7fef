package sensor

// MaxSampleCount caps the weight of the running offset average, which
// keeps it responsive to drift in the host/sensor temperature gap.
const MaxSampleCount = 10

// OffsetState is the running estimate of (die temperature - sensor
// temperature) for one slot.
type OffsetState struct {
	AverageDelta float64
	SampleCount  int
}

// NewOffsetState returns the initial state, optionally seeded with a
// single observed delta.
func NewOffsetState(seed float64) OffsetState {
	return OffsetState{AverageDelta: seed, SampleCount: 1}
}

// Fold adds one observed delta to the running average. The prior average
// is weighted by the sample count, saturated at MaxSampleCount.
func (o *OffsetState) Fold(delta float64) {
	n := min(max(o.SampleCount, 1), MaxSampleCount)
	o.AverageDelta = (o.AverageDelta*float64(n) + delta) / float64(n+1)
	o.SampleCount = min(n+1, MaxSampleCount)
}

// Learned reports whether at least one real sample has been folded in and
// produced a usable offset.
func (o OffsetState) Learned() bool {
	return o.SampleCount > 1 && o.AverageDelta != 0
}
