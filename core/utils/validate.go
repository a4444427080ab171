package utils

import (
	"errors"
	"regexp"
)

var (
	usernameRe        = regexp.MustCompile(`^[a-zA-Z0-9._-]{3,32}$`)
	passwordMinLength = 10
	passwordMaxLength = 128
	letterRe          = regexp.MustCompile(`[A-Za-z]`)
	digitRe           = regexp.MustCompile(`[0-9]`)
	whitespaceRe      = regexp.MustCompile(`\s`)
)

func ValidateUsername(s string) error {
	if !usernameRe.MatchString(s) {
		return errors.New("invalid username")
	}
	return nil
}

// ValidatePassword is the back-office policy; POS PINs are not accounts here.
func ValidatePassword(s string) error {
	if len(s) < passwordMinLength {
		return errors.New("password too short (min 10 chars)")
	}
	if len(s) > passwordMaxLength {
		return errors.New("password too long (max 128 chars)")
	}
	if whitespaceRe.MatchString(s) {
		return errors.New("password must not contain spaces")
	}
	if !letterRe.MatchString(s) || !digitRe.MatchString(s) {
		return errors.New("password must mix letters and digits")
	}
	return nil
}
