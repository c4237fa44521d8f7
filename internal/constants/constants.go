package constants

import "time"

// Routing keys consumed from the source exchange.
const (
	EventProjectDraftCreated  = "project.draft-created"
	EventProjectUpdated       = "project.updated"
	EventProjectMemberAdded   = "project.member.added"
	EventProjectMemberRemoved = "project.member.removed"
	EventProjectMemberUpdated = "project.member.updated"
	EventProjectUnclaimed     = "project.copilot-unclaimed"
)

// Routing keys published to the target exchange.
const (
	NotifyManagerChat = "notifications.chat.manager"
	NotifyCopilotChat = "notifications.chat.copilot"
)

// Project lifecycle statuses as the directory API reports them.
const (
	StatusDraft     = "draft"
	StatusInReview  = "in_review"
	StatusReviewed  = "reviewed"
	StatusActive    = "active"
	StatusCancelled = "cancelled"
	StatusCompleted = "completed"
)

const (
	RoleCustomer = "customer"
	RoleManager  = "manager"
	RoleCopilot  = "copilot"
)

// TTLHeader carries the remaining reminder republish budget on a delivery.
const TTLHeader = "ttl"

// DelayHeader is the x-delayed-message plugin's delay header.
const DelayHeader = "x-delay"

const (
	DefaultHTTPTimeout = 10 * time.Second
	DefaultTokenTTL    = 5 * time.Minute
)

const (
	DefaultPrefetch         = 8
	DefaultReminderAttempts = 3
	DefaultReminderDelay    = 24 * time.Hour
)

const (
	ShutdownTimeout = 5 * time.Second
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

// ChatTextLimit bounds the description excerpt carried in a chat notice.
const ChatTextLimit = 200
