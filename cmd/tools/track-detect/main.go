// Command track-detect runs the track detector against a signal waterfall
// histogram stored as JSON ({"y": [...timestamps], "x": [...dBm], "z": [[...counts]]}),
// or against raw signal samples ([{"timestamp", "signal", "count"}, ...]) that
// it buckets by track_histogram_bucket_length first.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/nzymedefense/nzyme/internal/config"
	"github.com/nzymedefense/nzyme/internal/tracks"
)

var (
	histogramPath = flag.String("histogram", "", "Path to the histogram JSON file (stdin if empty)")
	configPath    = flag.String("config", "", "Path to a .json, .yaml or .yml config file for detector thresholds")
	samplesInput  = flag.Bool("samples", false, "Input is a JSON array of signal samples instead of a histogram")
	jsonOutput    = flag.Bool("json", false, "Print tracks as JSON")
)

type options struct {
	samples bool
	bucket  time.Duration
	asJSON  bool
}

func main() {
	flag.Parse()

	cfg := config.EmptyBanditsConfig()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadBanditsConfig(*configPath); err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}

	in := io.Reader(os.Stdin)
	if *histogramPath != "" {
		f, err := os.Open(*histogramPath)
		if err != nil {
			log.Fatalf("Failed to open histogram: %v", err)
		}
		defer f.Close()
		in = f
	}

	opts := options{samples: *samplesInput, bucket: cfg.GetTrackHistogramBucketLength(), asJSON: *jsonOutput}
	if err := detect(in, os.Stdout, tracks.DetectorConfigFromSettings(cfg), opts); err != nil {
		log.Fatalf("%v", err)
	}
}

func detect(in io.Reader, out io.Writer, cfg tracks.DetectorConfig, opts options) error {
	var (
		h   *tracks.SignalWaterfallHistogram
		err error
	)
	if opts.samples {
		h, err = tracks.LoadSamplesJSON(in, opts.bucket)
	} else {
		h, err = tracks.LoadHistogramJSON(in)
	}
	if err != nil {
		return err
	}

	found, err := tracks.NewDetector(cfg).Detect(h)
	if err != nil {
		return err
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if found == nil {
			found = []tracks.Track{}
		}
		return enc.Encode(found)
	}

	fmt.Fprintf(out, "%s time buckets, %d track(s)\n", humanize.Comma(int64(len(h.Y))), len(found))
	if len(found) == 0 {
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CENTERLINE\tSIGNAL\tSTART\tEND\tDURATION\tROWS")
	for _, t := range found {
		fmt.Fprintf(tw, "%d dBm\t%d..%d dBm\t%s\t%s\t%s\t%d\n",
			t.Centerline, t.MinSignal, t.MaxSignal,
			t.Start.Format(time.RFC3339), t.End.Format(time.RFC3339),
			t.End.Sub(t.Start), t.Partials)
	}
	return tw.Flush()
}
