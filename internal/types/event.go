package types

// Event is pushed to websocket clients watching a project.
type Event struct {
	Type      string `json:"type"`
	ProjectID uint   `json:"project_id"`
	Resource  string `json:"resource,omitempty"`
	ID        uint   `json:"id,omitempty"`
	Message   string `json:"message,omitempty"`
}

const (
	EventConnected = "connected"
	EventCreated   = "created"
	EventUpdated   = "updated"
	EventDeleted   = "deleted"
)
