package tracks

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/nzymedefense/nzyme/internal/config"
)

// Default detector parameters.
const (
	FrameThreshold         = 20 // a cell must hold more frames than this to count
	GapThreshold           = 8  // consecutive quiet cells that close a run
	SignalCenterlineJitter = 8  // dBm a centerline may drift and stay in one track
)

// PartialTrack is a single-row detection.
type PartialTrack struct {
	Timestamp  time.Time `json:"timestamp"`
	MinSignal  int       `json:"min_signal"`
	MaxSignal  int       `json:"max_signal"`
	Centerline int       `json:"centerline"`
}

// Track is a cluster of partial tracks with nearby centerlines.
type Track struct {
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	MinSignal  int       `json:"min_signal"`
	MaxSignal  int       `json:"max_signal"`
	Centerline int       `json:"centerline"`
	Partials   int       `json:"partials"`
}

// DetectorConfig holds the detection thresholds.
type DetectorConfig struct {
	FrameThreshold   int64
	GapThreshold     int
	CenterlineJitter int
}

// DefaultDetectorConfig returns the built-in thresholds.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		FrameThreshold:   FrameThreshold,
		GapThreshold:     GapThreshold,
		CenterlineJitter: SignalCenterlineJitter,
	}
}

// DetectorConfigFromSettings builds a DetectorConfig from loaded settings.
func DetectorConfigFromSettings(cfg *config.BanditsConfig) DetectorConfig {
	return DetectorConfig{
		FrameThreshold:   cfg.GetTrackFrameThreshold(),
		GapThreshold:     cfg.GetTrackGapThreshold(),
		CenterlineJitter: cfg.GetTrackCenterlineJitter(),
	}
}

// Detector finds tracks in waterfall histograms.
type Detector struct {
	cfg DetectorConfig
}

// NewDetector returns a Detector. A GapThreshold below 1 is raised to 1.
func NewDetector(cfg DetectorConfig) *Detector {
	if cfg.GapThreshold < 1 {
		cfg.GapThreshold = 1
	}
	return &Detector{cfg: cfg}
}

// Detect validates h and returns its tracks ordered by centerline.
func (d *Detector) Detect(h *SignalWaterfallHistogram) ([]Track, error) {
	partials, err := d.PartialTracks(h)
	if err != nil {
		return nil, err
	}
	return d.aggregate(groupByCenterline(partials)), nil
}

// PartialTracks runs the first pass only: one PartialTrack per qualifying
// run, in row order then signal order.
func (d *Detector) PartialTracks(h *SignalWaterfallHistogram) ([]PartialTrack, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}
	var out []PartialTrack
	for i, row := range h.Z {
		out = d.scanRow(out, h.Y[i], h.X, row)
	}
	return out, nil
}

// scanRow walks one row from the weakest to the strongest signal. A run
// opens on the first busy cell and closes once GapThreshold quiet cells
// follow its last busy cell, or at the end of the axis.
func (d *Detector) scanRow(out []PartialTrack, ts time.Time, axis []int, row []int64) []PartialTrack {
	var (
		open      bool
		runStart  int
		lastBusy  int
		gapLength int
	)
	for j, count := range row {
		signal := axis[j]
		if count > d.cfg.FrameThreshold {
			if !open {
				open = true
				runStart = signal
			}
			lastBusy = signal
			gapLength = 0
			continue
		}
		if !open {
			continue
		}
		gapLength++
		if gapLength >= d.cfg.GapThreshold {
			out = append(out, newPartialTrack(ts, runStart, lastBusy))
			open = false
			gapLength = 0
		}
	}
	if open {
		out = append(out, newPartialTrack(ts, runStart, lastBusy))
	}
	return out
}

func newPartialTrack(ts time.Time, minSignal, maxSignal int) PartialTrack {
	return PartialTrack{
		Timestamp:  ts,
		MinSignal:  minSignal,
		MaxSignal:  maxSignal,
		Centerline: int(math.Round(float64(minSignal+maxSignal) / 2)),
	}
}

type centerlineGroup struct {
	key      int
	partials []PartialTrack
}

// groupByCenterline buckets partial tracks by exact centerline, ascending.
func groupByCenterline(partials []PartialTrack) []centerlineGroup {
	byKey := make(map[int][]PartialTrack)
	for _, p := range partials {
		byKey[p.Centerline] = append(byKey[p.Centerline], p)
	}
	groups := make([]centerlineGroup, 0, len(byKey))
	for k, ps := range byKey {
		groups = append(groups, centerlineGroup{key: k, partials: ps})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].key < groups[j].key })
	return groups
}

// aggregate merges each group into the first accepted aggregate whose key is
// within the jitter, then reduces every aggregate to a Track.
func (d *Detector) aggregate(groups []centerlineGroup) []Track {
	var aggregates []centerlineGroup
	for _, g := range groups {
		merged := false
		for i := range aggregates {
			if abs(aggregates[i].key-g.key) <= d.cfg.CenterlineJitter {
				aggregates[i].partials = append(aggregates[i].partials, g.partials...)
				merged = true
				break
			}
		}
		if !merged {
			aggregates = append(aggregates, centerlineGroup{key: g.key, partials: append([]PartialTrack(nil), g.partials...)})
		}
	}

	out := make([]Track, 0, len(aggregates))
	for _, a := range aggregates {
		out = append(out, reduce(a))
	}
	return out
}

func reduce(a centerlineGroup) Track {
	mins := make([]float64, len(a.partials))
	maxs := make([]float64, len(a.partials))
	start, end := a.partials[0].Timestamp, a.partials[0].Timestamp
	for i, p := range a.partials {
		mins[i] = float64(p.MinSignal)
		maxs[i] = float64(p.MaxSignal)
		if p.Timestamp.Before(start) {
			start = p.Timestamp
		}
		if p.Timestamp.After(end) {
			end = p.Timestamp
		}
	}
	return Track{
		Start:      start,
		End:        end,
		MinSignal:  int(floats.Min(mins)),
		MaxSignal:  int(floats.Max(maxs)),
		Centerline: a.key,
		Partials:   len(a.partials),
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
