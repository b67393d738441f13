// Package domain holds the value types shared by every layer (room ids,
// usernames, annotation features) together with their validation rules.
package domain

import (
	"errors"
	"strings"
	"unicode/utf8"
)

const MaxUsernameLen = 36

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
)

// NormalizeUsername trims surrounding whitespace and enforces length limits.
func NormalizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", ErrUsernameEmpty
	}
	if utf8.RuneCountInString(username) > MaxUsernameLen {
		return "", ErrUsernameTooLong
	}
	return username, nil
}
