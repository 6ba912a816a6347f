package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr bool
	}{
		{"valid", "maria@example.hn", false},
		{"valid with plus", "maria+pagos@example.hn", false},
		{"uppercase normalized", "MARIA@EXAMPLE.HN", false},
		{"empty", "", true},
		{"missing at", "maria.example.hn", true},
		{"two ats", "maria@@example.hn", true},
		{"no tld", "maria@localhost", true},
		{"spaces in local part", "ma ria@example.hn", true},
		{"local part too long", strings.Repeat("a", 65) + "@example.hn", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(1))
	assert.NoError(t, ValidateAmount(MaxAmount))
	assert.Error(t, ValidateAmount(0))
	assert.Error(t, ValidateAmount(-500))
	assert.Error(t, ValidateAmount(MaxAmount+1))
}

func TestValidateFullName(t *testing.T) {
	assert.NoError(t, ValidateFullName("María Rodríguez"))
	assert.Error(t, ValidateFullName(""))
	assert.Error(t, ValidateFullName("X"))
	assert.Error(t, ValidateFullName(strings.Repeat("a", MaxFullNameLength+1)))
}

func TestValidateMessageContent(t *testing.T) {
	assert.NoError(t, ValidateMessageContent("¿Sigue disponible?"))
	assert.Error(t, ValidateMessageContent(""))
	assert.Error(t, ValidateMessageContent("   "))
	assert.Error(t, ValidateMessageContent(strings.Repeat("a", MaxMessageLength+1)))
}

func TestValidateMarketQuestion(t *testing.T) {
	assert.NoError(t, ValidateMarketQuestion("Will it rain in Tegucigalpa tomorrow?"))
	assert.Error(t, ValidateMarketQuestion(""))
	assert.Error(t, ValidateMarketQuestion("Too short"))
	assert.Error(t, ValidateMarketQuestion(strings.Repeat("q", MaxMarketQuestionLength+1)))
}
