package mailer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hibiken/asynq"

	"github.com/LuisNMHN/netmarkethn-backend/internal/logger"
)

var errNotConfigured = errors.New("mailer: smtp not configured")

// Mailer runs the background email pipeline on top of asynq. It is an
// optional side channel; with an empty redis address every Enqueue call
// is a no-op and the in-app notification row remains the record.
type Mailer struct {
	client *asynq.Client
	server *asynq.Server
}

// New starts the asynq client and worker server. Pass an empty redisAddr
// to run without the email pipeline.
func New(redisAddr string) *Mailer {
	if redisAddr == "" {
		return &Mailer{}
	}

	ConfigureFromEnv()

	opts := asynq.RedisClientOpt{Addr: redisAddr}
	m := &Mailer{client: asynq.NewClient(opts)}

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskNotificationEmail, handleNotificationEmail)
	mux.HandleFunc(TaskWelcomeEmail, handleWelcomeEmail)
	mux.HandleFunc(TaskKYCDecisionEmail, handleKYCDecisionEmail)

	m.server = asynq.NewServer(opts, asynq.Config{
		Concurrency: 5,
		Queues: map[string]int{
			"emails": 10,
		},
	})
	go func() {
		if err := m.server.Run(mux); err != nil {
			logger.Log.Errorf("Asynq server stopped: %v", err)
		}
	}()

	logger.Log.Infof("Mailer initialized (addr=%s)", redisAddr)
	return m
}

// Close releases the client and stops the worker server.
func (m *Mailer) Close() {
	if m.client != nil {
		_ = m.client.Close()
	}
	if m.server != nil {
		m.server.Shutdown()
	}
}

// EnqueueNotificationEmail mirrors a high priority notification to email.
func (m *Mailer) EnqueueNotificationEmail(userID, notificationID, topic, email, title, body string) error {
	if m.client == nil {
		return nil
	}

	payload := NotificationEmailPayload{
		UserID:         userID,
		NotificationID: notificationID,
		Topic:          topic,
		Envelope:       EmailEnvelope{To: email, Subject: title, Body: body},
		SentAt:         time.Now(),
	}
	b, _ := json.Marshal(payload)
	_, err := m.client.Enqueue(asynq.NewTask(TaskNotificationEmail, b), asynq.Queue("emails"))
	return err
}

// EnqueueWelcomeEmail greets a new user.
func (m *Mailer) EnqueueWelcomeEmail(userID, email, name string) error {
	if m.client == nil {
		return nil
	}

	payload := WelcomeEmailPayload{
		UserID: userID,
		Name:   name,
		Email:  email,
		Envelope: EmailEnvelope{
			To:      email,
			Subject: "Welcome to NetMarketHN, " + name + "!",
			Body:    "Hi " + name + ", thanks for joining NetMarketHN. Complete KYC verification to unlock the full platform.",
		},
		SentAt: time.Now(),
	}
	b, _ := json.Marshal(payload)
	_, err := m.client.Enqueue(asynq.NewTask(TaskWelcomeEmail, b), asynq.Queue("emails"))
	return err
}

// EnqueueKYCDecisionEmail informs a user of a KYC review outcome.
func (m *Mailer) EnqueueKYCDecisionEmail(userID, email, decision, note string) error {
	if m.client == nil {
		return nil
	}

	body := "Your identity verification was " + decision + "."
	if note != "" {
		body += "\n\nReviewer note: " + note
	}
	payload := KYCDecisionPayload{
		UserID:   userID,
		Decision: decision,
		Envelope: EmailEnvelope{To: email, Subject: "KYC verification update", Body: body},
		SentAt:   time.Now(),
	}
	b, _ := json.Marshal(payload)
	_, err := m.client.Enqueue(asynq.NewTask(TaskKYCDecisionEmail, b), asynq.Queue("emails"))
	return err
}

func handleNotificationEmail(_ context.Context, t *asynq.Task) error {
	var p NotificationEmailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	if err := SendEmail(p.Envelope.To, p.Envelope.Subject, p.Envelope.Body); err != nil {
		if errors.Is(err, errNotConfigured) {
			logger.Log.Infof("[mailer] notification email skipped (smtp off) -> user=%s topic=%s", p.UserID, p.Topic)
			return nil
		}
		logger.Log.Errorf("[mailer] notification email failed: %v", err)
		return err
	}
	logger.Log.Infof("[mailer] notification email sent -> to=%s topic=%s", p.Envelope.To, p.Topic)
	return nil
}

func handleWelcomeEmail(_ context.Context, t *asynq.Task) error {
	var p WelcomeEmailPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	if err := SendEmail(p.Email, p.Envelope.Subject, p.Envelope.Body); err != nil {
		if errors.Is(err, errNotConfigured) {
			return nil
		}
		logger.Log.Errorf("[mailer] welcome email failed: %v", err)
		return err
	}
	logger.Log.Infof("[mailer] welcome email sent -> to=%s user=%s", p.Email, p.UserID)
	return nil
}

func handleKYCDecisionEmail(_ context.Context, t *asynq.Task) error {
	var p KYCDecisionPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return err
	}
	if err := SendEmail(p.Envelope.To, p.Envelope.Subject, p.Envelope.Body); err != nil {
		if errors.Is(err, errNotConfigured) {
			return nil
		}
		logger.Log.Errorf("[mailer] kyc decision email failed: %v", err)
		return err
	}
	logger.Log.Infof("[mailer] kyc decision email sent -> to=%s decision=%s", p.Envelope.To, p.Decision)
	return nil
}
