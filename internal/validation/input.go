package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Input limits
const (
	MinFullNameLength       = 2
	MaxFullNameLength       = 100
	MinMessageLength        = 1
	MaxMessageLength        = 5000
	MinMarketQuestionLength = 10
	MaxMarketQuestionLength = 500
	MaxDisputeReasonLength  = 2000
	MaxDescriptionLength    = 500

	// Largest accepted amount: 100 million HNLD in centavos.
	MaxAmount = int64(100_000_000) * 100
)

var (
	emailLocalRegex  = regexp.MustCompile(`^[a-z0-9._+-]+$`)
	emailDomainRegex = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
)

// ValidateLength checks a string's rune length against bounds.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s must be at most %d characters", fieldName, max)
	}
	return nil
}

// ValidateEmail checks the email format.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}

	email = strings.ToLower(strings.TrimSpace(email))

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("invalid email format")
	}

	localPart, domainPart := parts[0], parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("email local part must be between 1 and 64 characters")
	}
	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("email domain must be between 1 and 255 characters")
	}
	if !emailLocalRegex.MatchString(localPart) {
		return fmt.Errorf("email local part contains invalid characters")
	}
	if !emailDomainRegex.MatchString(domainPart) {
		return fmt.Errorf("email domain has an invalid format")
	}

	return nil
}

// ValidateNonEmpty checks the string is not blank.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}
	return nil
}

// ValidateFullName checks a display name.
func ValidateFullName(fullName string) error {
	if fullName == "" {
		return fmt.Errorf("full name is required")
	}
	return ValidateLength("full name", strings.TrimSpace(fullName), MinFullNameLength, MaxFullNameLength)
}

// ValidateAmount checks a ledger amount in centavos.
func ValidateAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("amount must be positive")
	}
	if amount > MaxAmount {
		return fmt.Errorf("amount exceeds the maximum of %d centavos", MaxAmount)
	}
	return nil
}

// ValidateMessageContent checks a chat message body.
func ValidateMessageContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("message cannot be empty")
	}
	return ValidateLength("message", strings.TrimSpace(content), MinMessageLength, MaxMessageLength)
}

// ValidateMarketQuestion checks a prediction market question.
func ValidateMarketQuestion(question string) error {
	if question == "" {
		return fmt.Errorf("market question is required")
	}
	return ValidateLength("market question", strings.TrimSpace(question), MinMarketQuestionLength, MaxMarketQuestionLength)
}
