package sessionauth

import (
	"net/mail"
	"strings"
)

const maxActivationKeyLength = 64

type fieldCollector struct {
	fields []FieldError
}

func (c *fieldCollector) add(field, code, message string) {
	c.fields = append(c.fields, FieldError{Field: field, Code: code, Message: message})
}

func (c *fieldCollector) err() error {
	if len(c.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: c.fields}
}

// length checks len(value) in bytes against [min, max].
func (c *fieldCollector) length(field, value string, min, max int) bool {
	switch {
	case len(value) == 0:
		c.add(field, CodeRequired, field+" is required")
	case len(value) < min:
		c.add(field, CodeTooShort, field+" is too short")
	case len(value) > max:
		c.add(field, CodeTooLong, field+" is too long")
	default:
		return true
	}
	return false
}

func (e *Engine) validateOrigin(c *fieldCollector, origin string) {
	switch {
	case strings.TrimSpace(origin) == "":
		c.add("origin", CodeRequired, "origin is required")
	case len(origin) > maxStoredOrigin:
		c.add("origin", CodeTooLong, "origin is too long")
	}
}

func (e *Engine) validateLogin(req LoginRequest) error {
	p := e.config.Policy
	var c fieldCollector
	c.length("username", req.Username, p.MinUsername, p.MaxUsername)
	c.length("password", req.Password, p.MinPassword, p.MaxPassword)
	return c.err()
}

func (e *Engine) validateRegistration(req RegisterRequest) error {
	p := e.config.Policy
	var c fieldCollector

	usernameOK := c.length("username", req.Username, p.MinUsername, p.MaxUsername)
	passwordOK := c.length("password", req.Password, p.MinPassword, p.MaxPassword)
	if c.length("email", req.Email, p.MinEmail, p.MaxEmail) && !validEmail(req.Email) {
		c.add("email", CodeInvalidFormat, "email address is invalid")
	}
	if usernameOK && passwordOK && strings.Contains(req.Password, req.Username) {
		c.add("password", CodeContainsUsername, "password must not contain the username")
	}
	if passwordOK && req.Password != req.ConfirmPassword {
		c.add("confirm_password", CodeMismatch, "passwords do not match")
	}

	return c.err()
}

func (e *Engine) validatePasswordChange(req ChangePasswordRequest) error {
	p := e.config.Policy
	var c fieldCollector

	usernameOK := c.length("username", req.Username, p.MinUsername, p.MaxUsername)
	c.length("current_password", req.Current, p.MinPassword, p.MaxPassword)
	newOK := c.length("new_password", req.New, p.MinPassword, p.MaxPassword)
	if usernameOK && newOK && strings.Contains(req.New, req.Username) {
		c.add("new_password", CodeContainsUsername, "password must not contain the username")
	}
	if newOK && req.New != req.ConfirmNew {
		c.add("confirm_new_password", CodeMismatch, "passwords do not match")
	}

	return c.err()
}

func (e *Engine) validateActivation(req ActivateRequest) error {
	p := e.config.Policy
	var c fieldCollector
	c.length("username", req.Username, p.MinUsername, p.MaxUsername)
	if req.Key == "" {
		c.add("key", CodeRequired, "key is required")
	} else if len(req.Key) > maxActivationKeyLength {
		c.add("key", CodeTooLong, "key is too long")
	}
	return c.err()
}

// validEmail accepts a bare addr-spec with a dotted domain.
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return false
	}
	at := strings.LastIndexByte(email, '@')
	return at > 0 && strings.Contains(email[at+1:], ".")
}
