// Package daemon provides the orchestration for `soundmode watch`.
// It wires the probe player, the sound mode manager, the lifecycle source,
// the D-Bus service, transition history and configuration hot-reload.
package daemon
