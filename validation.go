package cookieauth

import (
	"net/mail"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	maxEmailLength = 255
	maxCodeLength  = 64
)

type violations []FieldViolation

func (v *violations) add(path, message string) {
	*v = append(*v, FieldViolation{Path: path, Message: message})
}

func (v violations) err() error {
	if len(v) == 0 {
		return nil
	}
	return validationError(v)
}

func (v *violations) email(path, email string) {
	switch {
	case email == "":
		v.add(path, "Email is required")
	case utf8.RuneCountInString(email) > maxEmailLength:
		v.add(path, "Email must be at most 255 characters")
	case !isEmail(email):
		v.add(path, "Invalid email")
	}
}

func (v *violations) password(path, password string, cfg PasswordConfig) {
	n := len(password)
	switch {
	case n < cfg.MinLength:
		v.add(path, "Password must be at least "+strconv.Itoa(cfg.MinLength)+" characters")
	case n > cfg.MaxLength:
		v.add(path, "Password must be at most "+strconv.Itoa(cfg.MaxLength)+" characters")
	}
}

func (v *violations) code(path, code string) {
	switch {
	case code == "":
		v.add(path, "Verification code is required")
	case len(code) > maxCodeLength:
		v.add(path, "Verification code is too long")
	}
}

// isEmail accepts a bare addr-spec. Display names and angle brackets are
// rejected.
func isEmail(s string) bool {
	if strings.ContainsAny(s, " <>") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Address == s && strings.Contains(s[strings.LastIndexByte(s, '@')+1:], ".")
}

func (in RegisterInput) validate(cfg PasswordConfig) error {
	var v violations
	v.email("email", in.Email)
	v.password("password", in.Password, cfg)
	v.password("confirmPassword", in.ConfirmPassword, cfg)
	if len(v) == 0 && in.Password != in.ConfirmPassword {
		v.add("confirmPassword", "Passwords do not match")
	}
	return v.err()
}

func (in LoginInput) validate(cfg PasswordConfig) error {
	var v violations
	v.email("email", in.Email)
	v.password("password", in.Password, cfg)
	return v.err()
}

func (in ResetPasswordInput) validate(cfg PasswordConfig) error {
	var v violations
	v.password("password", in.Password, cfg)
	v.code("verificationCode", in.Code)
	return v.err()
}

func validateResetEmail(email string) error {
	var v violations
	v.email("email", email)
	return v.err()
}

func validateVerificationCode(code string) error {
	var v violations
	v.code("code", code)
	return v.err()
}
