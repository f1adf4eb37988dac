// Package probe runs single play-and-measure probes and classifies their outcome.
// A suppressed playback completes almost instantly while an audible one takes
// close to the clip's real duration; the elapsed time decides silent or ring.
package probe
