package validate

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	PasswordMinLen = 8
	PasswordMaxLen = 128

	// PasswordSpecials is the set that satisfies the special-character rule.
	PasswordSpecials = `!@#$%^&*(),.?":{}|<>`
)

// v is the package-level singleton validator. Custom tags are registered in
// init before the first call to Struct.
var v = validator.New()

func init() {
	_ = v.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return Password(fl.Field().String()) == nil
	})
}

// Struct validates the given struct using its validate tags.
// Returns a human-readable error string or nil.
func Struct(s interface{}) error {
	if err := v.Struct(s); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return err
		}
		var msgs []string
		for _, fe := range ve {
			msgs = append(msgs, fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag()))
		}
		return fmt.Errorf("%s", strings.Join(msgs, "; "))
	}
	return nil
}

// Password enforces the password policy: 8 to 128 characters with at least one
// upper-case letter, one lower-case letter, one digit and one special
// character from PasswordSpecials. Other characters are allowed but count
// toward no class.
func Password(p string) error {
	n := utf8.RuneCountInString(p)
	if n < PasswordMinLen {
		return errors.New("password too short")
	}
	if n > PasswordMaxLen {
		return errors.New("password too long")
	}
	var upper, lower, digit, special bool
	for _, r := range p {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(PasswordSpecials, r):
			special = true
		}
	}
	if !upper || !lower || !digit || !special {
		return errors.New("password must include upper, lower, number, special")
	}
	return nil
}

// Email lowercases and trims an address the same way on every path.
func Email(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
