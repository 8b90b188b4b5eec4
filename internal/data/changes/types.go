// Package changes holds the changelist model and the bounded in-memory cache of recent history.
package changes

import "time"

// ChangeSummary is one submitted changelist. Number is unique and totally ordered.
type ChangeSummary struct {
	Number      int       `json:"number"`
	Author      string    `json:"author"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// FileChangeSummary is one revision in the history of a single file.
type FileChangeSummary struct {
	Path        string    `json:"path"`
	Revision    int       `json:"revision"`
	Number      int       `json:"number"`
	Action      string    `json:"action"`
	Author      string    `json:"author"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

// Revision actions reported by repository clients.
const (
	ActionAdd        = "add"
	ActionEdit       = "edit"
	ActionDelete     = "delete"
	ActionMoveDelete = "move/delete"
	ActionPurge      = "purge"
)

// IsRemoval reports whether the action leaves no content behind at that revision.
func IsRemoval(action string) bool {
	switch action {
	case ActionDelete, ActionMoveDelete, ActionPurge:
		return true
	}
	return false
}

type ChangeType int

const (
	ChangeTypeCode ChangeType = iota + 1
	ChangeTypeContent
)

func (t ChangeType) String() string {
	switch t {
	case ChangeTypeCode:
		return "code"
	case ChangeTypeContent:
		return "content"
	default:
		return "unknown"
	}
}
