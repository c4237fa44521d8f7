package notification

import (
	"encoding/json"

	"projectnotify/internal/directory"
)

// ProjectUpdatedEvent carries the before/after pair for a project update. A
// status transition only exists when the two statuses differ.
type ProjectUpdatedEvent struct {
	Original directory.Project `json:"original"`
	Updated  directory.Project `json:"updated"`
}

// MemberEvent is shared by the member.added and member.removed routing keys.
type MemberEvent struct {
	ProjectID int64  `json:"projectId"`
	UserID    int64  `json:"userId"`
	Role      string `json:"role"`
	IsPrimary bool   `json:"isPrimary"`
	UpdatedBy int64  `json:"updatedBy"`
}

type MemberUpdatedEvent struct {
	Updated MemberChange `json:"updated"`
}

type MemberChange struct {
	ProjectID int64  `json:"projectId"`
	UserID    int64  `json:"userId"`
	Role      string `json:"role"`
	IsPrimary bool   `json:"isPrimary"`
}

// ReminderEvent is the minimal payload a re-queued reminder carries; the
// engine re-fetches the full project.
type ReminderEvent struct {
	Updated struct {
		ID int64 `json:"id"`
	} `json:"updated"`
}

// TopicNotice is a discourse topic to be created through the directory API.
type TopicNotice struct {
	ProjectID int64
	Title     string
	Body      string
}

// ChatMessage is a chat notice payload. The shape follows the Slack incoming
// webhook format so the same object can be mirrored to a webhook unchanged.
type ChatMessage struct {
	Username    string       `json:"username"`
	IconURL     string       `json:"icon_url,omitempty"`
	Channel     string       `json:"channel"`
	Attachments []Attachment `json:"attachments"`
}

type Attachment struct {
	Color      string  `json:"color"`
	Fallback   string  `json:"fallback"`
	Pretext    string  `json:"pretext"`
	Title      string  `json:"title"`
	TitleLink  string  `json:"title_link"`
	Text       string  `json:"text"`
	Fields     []Field `json:"fields,omitempty"`
	Footer     string  `json:"footer,omitempty"`
	FooterIcon string  `json:"footer_icon,omitempty"`
	Ts         int64   `json:"ts"`
}

type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// Bundle is the rule engine's output: everything the pipeline should fan out
// for one event. A zero Bundle means the event requires no action.
type Bundle struct {
	Discourse   []TopicNotice
	ManagerChat []ChatMessage
	CopilotChat []ChatMessage

	// Delayed holds the payload to republish on the delay exchange when a
	// future re-check is required. Nil otherwise.
	Delayed json.RawMessage
}

// Empty reports whether the bundle requires no fan-out at all.
func (b *Bundle) Empty() bool {
	return len(b.Discourse) == 0 &&
		len(b.ManagerChat) == 0 &&
		len(b.CopilotChat) == 0 &&
		b.Delayed == nil
}
