package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Preference keys the server accepts. Anything else is rejected so the
// store keeps a defined schema instead of becoming an ad hoc cache.
var AllowedPreferenceKeys = map[string]struct{}{
	"locale":                {},
	"theme":                 {},
	"notifications_email":   {},
	"notifications_push":    {},
	"default_sale_currency": {},
}

// Preference is one server-side user preference entry.
type Preference struct {
	UserID    uuid.UUID       `db:"user_id" json:"user_id"`
	Key       string          `db:"key" json:"key"`
	Value     json.RawMessage `db:"value" json:"value"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}
