package soundmode

// LifecycleNotifier reports process background/foreground transitions.
// Each registration returns a function that removes the handler.
type LifecycleNotifier interface {
	OnDidEnterBackground(handler func()) (unsubscribe func())
	OnWillEnterForeground(handler func()) (unsubscribe func())
}
