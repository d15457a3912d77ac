package domain

// EventName identifies a lifecycle event emitted for one download.
type EventName string

const (
	EventStart    EventName = "start"
	EventProgress EventName = "progress"
	EventMerging  EventName = "merging"
	EventComplete EventName = "complete"
	EventError    EventName = "error"
)

// Event is one lifecycle event. A complete or error event is always the
// last event emitted for a download.
type Event struct {
	Name       EventName `json:"-"`
	DownloadID string    `json:"download_id,omitempty"`
	Progress   int       `json:"progress,omitempty"`
	Message    string    `json:"message,omitempty"`
	Filename   string    `json:"filename,omitempty"`
	FilePath   string    `json:"file_path,omitempty"`
}

// EventSink receives lifecycle events from the orchestrator. Emit is
// called from the orchestrator's goroutine; implementations decide how
// to relay events to the client.
type EventSink interface {
	Emit(event Event)
}

// EventSinkFunc adapts a function to the EventSink interface.
type EventSinkFunc func(event Event)

// Emit calls the underlying function.
func (f EventSinkFunc) Emit(event Event) { f(event) }
