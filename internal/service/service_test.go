package service

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/LuisNMHN/netmarkethn-backend/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Init("error")
	os.Exit(m.Run())
}

type notifierCall struct {
	UserID    uuid.UUID
	Topic     string
	Event     string
	Title     string
	Body      string
	Priority  string
	DedupeKey *string
}

// mockNotifier records notifications instead of delivering them.
type mockNotifier struct {
	mu    sync.Mutex
	calls []notifierCall
}

func (n *mockNotifier) Notify(_ context.Context, userID uuid.UUID, topic, event, title, body, priority string, dedupeKey *string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifierCall{
		UserID:    userID,
		Topic:     topic,
		Event:     event,
		Title:     title,
		Body:      body,
		Priority:  priority,
		DedupeKey: dedupeKey,
	})
}

func (n *mockNotifier) events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	events := make([]string, len(n.calls))
	for i, call := range n.calls {
		events[i] = call.Event
	}
	return events
}

func (n *mockNotifier) callsFor(userID uuid.UUID) []notifierCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notifierCall
	for _, call := range n.calls {
		if call.UserID == userID {
			out = append(out, call)
		}
	}
	return out
}
