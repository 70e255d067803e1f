package tasks

import "time"

// Task Types
const (
	TypePasswordResetEmail = "email:password_reset"
	TypeVerificationEmail  = "email:verification"
	TypeWelcomeEmail       = "email:welcome"

	TypePruneRefreshTokens = "accounts:prune_refresh_tokens"
	TypeOverdueDigest      = "leads:overdue_digest"
)

// Task Queues
const (
	QueueCritical = "critical" // mail the user is waiting for
	QueueDefault  = "default"
	QueueLow      = "low" // cleanup
)

// Periodic schedules, standard five-field cron.
const (
	SchedulePruneRefreshTokens = "0 * * * *"
	ScheduleOverdueDigest      = "0 8 * * *"
)

// Task Timeouts
const (
	TimeoutShort  = 1 * time.Minute
	TimeoutMedium = 5 * time.Minute
	TimeoutLong   = 30 * time.Minute
)

// Task Retry Settings
const (
	RetryMax     = 5
	RetryDefault = 3
	RetryMin     = 1
)

// EmailPayload is the body of every email:* task.
type EmailPayload struct {
	AccountID string `json:"accountId"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	Token     string `json:"token,omitempty"`
}
