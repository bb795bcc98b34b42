package ports

// EventSink receives machine-readable run events.
//
//go:generate mockgen -source=event_sink.go -destination=mocks/mock_event_sink.go -package=mocks
type EventSink interface {
	// Emit writes one event of the given kind. Payloads must be
	// JSON-serializable; emission failures are swallowed so that event
	// output never fails a run.
	Emit(kind string, payload any)

	// Close flushes any buffered events.
	Close() error
}
