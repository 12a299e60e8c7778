package services

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/debugmarathon/apiserver/internal/auth"
)

var (
	usernamePattern      = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,50}$`)
	emailPattern         = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	participantIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,50}$`)
)

const (
	maxEmailLength    = 255
	minPasswordLength = 8
	maxPasswordLength = 128
)

func validateUsername(username string) error {
	switch {
	case username == "":
		return auth.ErrValidation("Username is required")
	case len(username) < 3:
		return auth.ErrValidation("Username must be at least 3 characters")
	case len(username) > 50:
		return auth.ErrValidation("Username must not exceed 50 characters")
	case !usernamePattern.MatchString(username):
		return auth.ErrValidation("Username can only contain letters, numbers, hyphens and underscores")
	}
	return nil
}

func validateEmail(email string) error {
	switch {
	case email == "":
		return auth.ErrValidation("Email is required")
	case len(email) > maxEmailLength:
		return auth.ErrValidation("Email is too long")
	case !emailPattern.MatchString(email):
		return auth.ErrValidation("Invalid email format")
	}
	return nil
}

func validatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	switch {
	case password == "":
		return auth.ErrValidation("Password is required")
	case n < minPasswordLength:
		return auth.ErrValidation("Password must be at least 8 characters")
	case n > maxPasswordLength:
		return auth.ErrValidation("Password is too long")
	}
	return nil
}

// isNumericID reports whether id is made only of ASCII digits.
func isNumericID(id string) bool {
	if id == "" {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return true
}

func validateParticipantID(id string) error {
	if strings.TrimSpace(id) == "" {
		return auth.ErrValidation("Participant ID is required")
	}
	if !isNumericID(id) && !participantIDPattern.MatchString(id) {
		return auth.ErrValidation("Invalid participant ID format")
	}
	return nil
}
