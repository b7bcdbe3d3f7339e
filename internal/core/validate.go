package core

import (
	"net/mail"
	"regexp"
	"strings"
)

// ValidationError reports an input field that failed a format check.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return e.Field + " " + e.Message
}

// ValidationErrors collects every failed check of one input.
type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// OrNil returns nil for an empty set so callers can return it as an error.
func (v ValidationErrors) OrNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

var phMobile = regexp.MustCompile(`^9\d{9}$`)

func IsValidEmail(email string) bool {
	email = strings.TrimSpace(email)
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return false
	}
	at := strings.LastIndex(email, "@")
	return strings.Contains(email[at+1:], ".")
}

// IsValidPhilippinesPhone checks the local mobile form 9XXXXXXXXX.
func IsValidPhilippinesPhone(phone string) bool {
	return phMobile.MatchString(phone)
}

func IsValidPassword(password string) bool {
	return len(password) >= 6
}

func IsValidName(name string) bool {
	return len(strings.TrimSpace(name)) >= 2
}

// NormalizePhone strips separators and the +63 or 0 prefix, yielding the
// stored 10-digit form. Input that does not reduce to digits is returned
// trimmed but otherwise untouched.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(phone) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')' || r == '.':
		case r == '+' && b.Len() == 0:
		default:
			return strings.TrimSpace(phone)
		}
	}
	digits := b.String()
	switch {
	case strings.HasPrefix(digits, "63") && len(digits) == 12:
		digits = digits[2:]
	case strings.HasPrefix(digits, "0") && len(digits) == 11:
		digits = digits[1:]
	}
	return digits
}

// FormatPhoneNumber renders a stored 10-digit number as "+63 XXX XXX XXXX".
func FormatPhoneNumber(phone string) string {
	if len(phone) != 10 {
		return phone
	}
	return "+63 " + phone[0:3] + " " + phone[3:6] + " " + phone[6:]
}

// SignUp is the input of a new account.
type SignUp struct {
	FullName string
	Email    string
	Phone    string
	Password string
}

// Validate checks every signup field and reports all failures at once.
// Phone is checked after normalization.
func (s SignUp) Validate() error {
	var errs ValidationErrors
	if !IsValidName(s.FullName) {
		errs = append(errs, ValidationError{Field: "fullName", Message: "must be at least 2 characters"})
	}
	if !IsValidEmail(s.Email) {
		errs = append(errs, ValidationError{Field: "email", Message: "is not a valid email address"})
	}
	if !IsValidPhilippinesPhone(NormalizePhone(s.Phone)) {
		errs = append(errs, ValidationError{Field: "phoneNumber", Message: "must be a Philippine mobile number (9XXXXXXXXX)"})
	}
	if !IsValidPassword(s.Password) {
		errs = append(errs, ValidationError{Field: "password", Message: "must be at least 6 characters"})
	}
	return errs.OrNil()
}
