package services

// Notifier pushes real-time events to connected clients. The chat hub
// implements it; services call it strictly after the corresponding row is
// persisted, so a delivered event always refers to durable state.
//
// Implementations must not block: delivery to slow or absent clients is
// best-effort and never affects the outcome of the operation that emitted
// the event.
type Notifier interface {
	// RoomEvent delivers an event to every client attached to a room.
	RoomEvent(roomID string, event any)

	// RoomEventExcept delivers an event to every client attached to a room
	// except the named user's connections. New-message fan-out uses it: the
	// sender already holds the message and must not receive an echo.
	RoomEventExcept(roomID, exceptUserID string, event any)

	// UserEvent delivers an event to every connection of one user.
	UserEvent(userID string, event any)
}

// NopNotifier discards all events. Used when no hub is wired, and in tests.
type NopNotifier struct{}

// RoomEvent implements Notifier.
func (NopNotifier) RoomEvent(string, any) {}

// RoomEventExcept implements Notifier.
func (NopNotifier) RoomEventExcept(string, string, any) {}

// UserEvent implements Notifier.
func (NopNotifier) UserEvent(string, any) {}
