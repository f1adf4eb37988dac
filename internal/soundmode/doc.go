// Package soundmode infers the device's audible-alert state by probing.
//
// A Manager composes a probe engine, a periodic scheduler and an observer
// registry. Probes are triggered manually or by the observation timer, which
// is disarmed in the background and re-armed on return to the foreground; at
// most one probe is in flight at a time. Mode changes are fanned out to every live Token and then to the
// completions of the callers waiting on that probe, all on a single delivery
// context so observers never race each other.
//
// States are {Idle, Observing} x {NotProbing, Probing}. Observing may be
// paused while the process is in the background; the observing intent is kept
// and the timer is re-armed on the next foreground event.
package soundmode
