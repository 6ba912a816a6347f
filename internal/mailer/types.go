package mailer

import "time"

// Task type names routed through the asynq mux.
const (
	TaskNotificationEmail = "email:notification"
	TaskWelcomeEmail      = "email:welcome"
	TaskKYCDecisionEmail  = "email:kyc_decision"
)

// EmailEnvelope is the rendered message handed to the SMTP sender.
type EmailEnvelope struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NotificationEmailPayload mirrors a high priority in-app notification
// onto email.
type NotificationEmailPayload struct {
	UserID         string        `json:"user_id"`
	NotificationID string        `json:"notification_id"`
	Topic          string        `json:"topic"`
	Envelope       EmailEnvelope `json:"envelope"`
	SentAt         time.Time     `json:"sent_at"`
}

// WelcomeEmailPayload greets a newly registered user.
type WelcomeEmailPayload struct {
	UserID   string        `json:"user_id"`
	Name     string        `json:"name"`
	Email    string        `json:"email"`
	Envelope EmailEnvelope `json:"envelope"`
	SentAt   time.Time     `json:"sent_at"`
}

// KYCDecisionPayload informs a user of a KYC review outcome.
type KYCDecisionPayload struct {
	UserID   string        `json:"user_id"`
	Decision string        `json:"decision"`
	Envelope EmailEnvelope `json:"envelope"`
	SentAt   time.Time     `json:"sent_at"`
}
