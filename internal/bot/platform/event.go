package platform

// EventKind discriminates the inbound interaction callbacks the platform
// delivers. Each event is handled as an independent unit of work.
type EventKind string

const (
	EventCommand     EventKind = "command"      // slash-style admin command
	EventButton      EventKind = "button"       // button press
	EventMenuSelect  EventKind = "menu_select"  // single-select menu choice
	EventModalSubmit EventKind = "modal_submit" // modal form submission
)

// Event is one inbound interaction callback.
type Event struct {
	Kind   EventKind
	UserID int64 // invoking user

	// CustomID identifies the component (button, menu, modal) or the
	// command name for EventCommand.
	CustomID string

	// Values carries menu selections, in selection order.
	Values []string

	// Fields carries modal inputs and command options by name.
	Fields map[string]string
}

// Reply is the outbound response to one event. The transport renders it as
// an ephemeral or broadcast message and attaches the named follow-up
// component when set.
type Reply struct {
	Text      string
	Ephemeral bool

	// Component names the follow-up view to attach (selection menu,
	// modal-open button, confirm button). Empty means text only.
	Component string

	// File carries tabular attachments (CSV exports) when non-nil.
	File *File
}

// File is a named attachment.
type File struct {
	Name    string
	Content []byte
}
