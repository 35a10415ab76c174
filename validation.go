package main

import (
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"unicode"
)

var (
	// Indian mobile numbers: 10 digits starting with 6-9.
	phonePattern = regexp.MustCompile(`^[6-9]\d{9}$`)
	namePattern  = regexp.MustCompile(`^[a-zA-Z\s]{2,50}$`)
)

const (
	minPasswordLength   = 8
	minPasswordStrength = 3
	minMemberAge        = 18
	maxMemberAge        = 100
)

var (
	errDestinationRequired = errors.New("phone or email required")
	errInvalidPhone        = errors.New("invalid phone number")
	errInvalidEmail        = errors.New("invalid email address")
)

// destination is where an OTP is delivered and the username of the account.
type destination struct {
	Value   string
	Channel string
}

// resolveDestination picks the phone when present, the email otherwise.
func resolveDestination(phone, email string) (destination, error) {
	if phone = normalizePhone(phone); phone != "" {
		if !phonePattern.MatchString(phone) {
			return destination{}, errInvalidPhone
		}
		return destination{Value: phone, Channel: "phone"}, nil
	}
	if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
		if !validEmail(email) {
			return destination{}, errInvalidEmail
		}
		return destination{Value: email, Channel: "email"}, nil
	}
	return destination{}, errDestinationRequired
}

func normalizePhone(phone string) string {
	return strings.Join(strings.Fields(phone), "")
}

// normalizeUsername lowercases emails and strips spaces from phone numbers.
func normalizeUsername(username string) string {
	username = strings.TrimSpace(username)
	if strings.Contains(username, "@") {
		return strings.ToLower(username)
	}
	return normalizePhone(username)
}

func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

func validName(name string) bool {
	return namePattern.MatchString(strings.TrimSpace(name))
}

// passwordStrength scores length, upper, lower, digit and special characters
// one point each.
func passwordStrength(password string) int {
	if len(password) < minPasswordLength {
		return 0
	}
	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(`!@#$%^&*(),.?":{}|<>`, r):
			special = true
		}
	}
	strength := 1
	for _, ok := range []bool{upper, lower, digit, special} {
		if ok {
			strength++
		}
	}
	return strength
}

func validPassword(password string) bool {
	return passwordStrength(password) >= minPasswordStrength
}
