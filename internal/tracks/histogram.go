package tracks

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"
)

// Signal axis bounds in dBm.
const (
	AxisMinSignal = -100
	AxisMaxSignal = -1
)

// MaxHistogramRows caps the number of time buckets HistogramFromSamples
// will allocate. A week of one-minute buckets fits comfortably.
const MaxHistogramRows = 100_000

// ErrMalformedHistogram wraps every histogram validation failure.
var ErrMalformedHistogram = errors.New("malformed signal waterfall histogram")

// SignalWaterfallHistogram is a time by signal-strength grid of frame counts.
// Z[i][j] is the number of frames in time bucket Y[i] at signal X[j].
type SignalWaterfallHistogram struct {
	Y []time.Time `json:"y"`
	X []int       `json:"x"`
	Z [][]int64   `json:"z"`
}

// SignalAxis returns the fixed signal axis, -100 to -1 dBm ascending.
func SignalAxis() []int {
	axis := make([]int, 0, AxisMaxSignal-AxisMinSignal+1)
	for s := AxisMinSignal; s <= AxisMaxSignal; s++ {
		axis = append(axis, s)
	}
	return axis
}

// NewSignalWaterfallHistogram builds a histogram over the fixed signal axis
// and validates it.
func NewSignalWaterfallHistogram(y []time.Time, z [][]int64) (*SignalWaterfallHistogram, error) {
	h := &SignalWaterfallHistogram{Y: y, X: SignalAxis(), Z: z}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return h, nil
}

// Validate rejects histograms whose axes and grid disagree. Misaligned axes
// would shift every derived centerline, so nothing is truncated silently.
func (h *SignalWaterfallHistogram) Validate() error {
	if len(h.Y) != len(h.Z) {
		return fmt.Errorf("%w: %d time buckets but %d rows", ErrMalformedHistogram, len(h.Y), len(h.Z))
	}
	for i, s := range h.X {
		if s < AxisMinSignal || s > AxisMaxSignal {
			return fmt.Errorf("%w: signal axis value %d at index %d outside [%d, %d]", ErrMalformedHistogram, s, i, AxisMinSignal, AxisMaxSignal)
		}
		if i > 0 && s <= h.X[i-1] {
			return fmt.Errorf("%w: signal axis not strictly ascending at index %d", ErrMalformedHistogram, i)
		}
	}
	for i, row := range h.Z {
		if len(row) != len(h.X) {
			return fmt.Errorf("%w: row %d has %d cells, signal axis has %d", ErrMalformedHistogram, i, len(row), len(h.X))
		}
		for j, count := range row {
			if count < 0 {
				return fmt.Errorf("%w: negative count %d at row %d, signal %d", ErrMalformedHistogram, count, i, h.X[j])
			}
		}
		if i > 0 && !h.Y[i].After(h.Y[i-1]) {
			return fmt.Errorf("%w: time bucket %d (%s) not after bucket %d", ErrMalformedHistogram, i, h.Y[i].Format(time.RFC3339), i-1)
		}
	}
	return nil
}

// SignalSample is one aggregated (time, signal) frame count, as produced by
// the periodic signal index job.
type SignalSample struct {
	Timestamp time.Time `json:"timestamp"`
	Signal    int       `json:"signal"`
	Count     int64     `json:"count"`
}

// HistogramFromSamples buckets samples into a histogram over the fixed
// signal axis. Every bucket between the first and last sample gets a row,
// so quiet periods appear as empty rows. Samples outside the axis are
// dropped. Spans needing more than MaxHistogramRows buckets are rejected.
func HistogramFromSamples(samples []SignalSample, bucket time.Duration) (*SignalWaterfallHistogram, error) {
	if bucket <= 0 {
		return nil, fmt.Errorf("bucket length must be positive, got %s", bucket)
	}
	h := &SignalWaterfallHistogram{X: SignalAxis()}
	if len(samples) == 0 {
		return h, nil
	}

	sorted := append([]SignalSample(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })

	first := sorted[0].Timestamp.Truncate(bucket)
	last := sorted[len(sorted)-1].Timestamp.Truncate(bucket)
	span := int64(last.Sub(first) / bucket)
	if span >= MaxHistogramRows {
		return nil, fmt.Errorf("%w: samples from %s to %s need more than %d buckets of %s",
			ErrMalformedHistogram, first.Format(time.RFC3339), last.Format(time.RFC3339), MaxHistogramRows, bucket)
	}
	rows := int(span) + 1

	h.Y = make([]time.Time, rows)
	h.Z = make([][]int64, rows)
	for i := range h.Y {
		h.Y[i] = first.Add(time.Duration(i) * bucket)
		h.Z[i] = make([]int64, len(h.X))
	}
	for _, s := range sorted {
		if s.Signal < AxisMinSignal || s.Signal > AxisMaxSignal || s.Count <= 0 {
			continue
		}
		row := int(s.Timestamp.Truncate(bucket).Sub(first) / bucket)
		h.Z[row][s.Signal-AxisMinSignal] += s.Count
	}
	return h, nil
}

// LoadSamplesJSON decodes a JSON array of samples and buckets it.
func LoadSamplesJSON(r io.Reader, bucket time.Duration) (*SignalWaterfallHistogram, error) {
	var samples []SignalSample
	if err := json.NewDecoder(r).Decode(&samples); err != nil {
		return nil, fmt.Errorf("failed to decode samples: %w", err)
	}
	return HistogramFromSamples(samples, bucket)
}

// LoadHistogramJSON decodes and validates a histogram in its JSON form.
func LoadHistogramJSON(r io.Reader) (*SignalWaterfallHistogram, error) {
	var h SignalWaterfallHistogram
	if err := json.NewDecoder(r).Decode(&h); err != nil {
		return nil, fmt.Errorf("failed to decode histogram: %w", err)
	}
	if len(h.X) == 0 {
		h.X = SignalAxis()
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	return &h, nil
}
