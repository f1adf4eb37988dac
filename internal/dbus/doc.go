// Package dbus connects the sound mode manager to D-Bus. It exports the
// current mode on the session bus, emits a ModeChanged signal, and follows
// logind's PrepareForSleep signal on the system bus to pause observation
// while the machine sleeps.
package dbus
