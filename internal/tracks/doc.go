// Package tracks extracts physical-presence tracks from signal-strength
// waterfall histograms.
//
// A waterfall histogram counts frames per (time bucket, signal strength)
// cell. A transmitter that stays in range shows up as a band of busy cells
// whose position on the signal axis drifts slowly over time. Detection runs
// in three passes:
//
//  1. per row, find runs of cells above the frame threshold, tolerating
//     short gaps, and emit one PartialTrack per run;
//  2. cluster partial tracks whose centerlines lie within the jitter of an
//     already accepted cluster;
//  3. reduce each cluster to a Track bounded in time and signal.
//
// Detection is purely functional and holds no state between calls.
package tracks
