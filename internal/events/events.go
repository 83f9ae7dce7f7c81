// Package events provides a small process-wide event bus used only to
// signal that something elsewhere wants cancellation or cleanup; the
// actual cancellation mechanism is always a context.Context, the bus
// just lets a tunnel supervisor or an action batch request it without
// being wired directly into main.
package events

import "github.com/asaskevich/EventBus"

var GlobalBus EventBus.Bus

func init() {
	GlobalBus = EventBus.New()
}

const (
	EventShutdownRequested = "app:shutdown:requested"
	EventShutdownComplete  = "app:shutdown:complete"

	EventScanStarted   = "scan:started"
	EventScanProgress  = "scan:progress"
	EventScanCompleted = "scan:completed"

	EventRemoteTunnelUp   = "remote:tunnel:up"
	EventRemoteTunnelDown = "remote:tunnel:down"
)
