package wizard

import (
	"errors"
	"time"

	"github.com/jonathan/skill-gap-wizard/internal/upload"
)

// Controller errors
var (
	// ErrClosed is returned by callbacks invoked after the controller was closed.
	ErrClosed = errors.New("wizard controller is closed")
	// ErrBranchLocked is returned when the requirement choice changes after
	// the branch step has been entered.
	ErrBranchLocked = errors.New("requirement branch is already fixed for this session")
	// ErrInvalidChoice is returned for a requirement choice other than have/define.
	ErrInvalidChoice = errors.New("requirement choice must be \"have\" or \"define\"")
)

// EventType classifies controller events.
type EventType string

// Event types
const (
	EventTransition     EventType = "transition"
	EventScrollTop      EventType = "scroll_top"
	EventExit           EventType = "exit"
	EventUploadProgress EventType = "upload_progress"
	EventUploadComplete EventType = "upload_complete"
	EventInternalError  EventType = "internal_error"
)

// Event is emitted to the controller observer after the state change it
// describes has been applied.
type Event struct {
	Type    EventType         `json:"type"`
	Index   int               `json:"index"`
	Step    StepID            `json:"step"`
	Uploads *upload.Artifacts `json:"uploads,omitempty"`
	Message string            `json:"message,omitempty"`
	At      time.Time         `json:"at"`
}
