package services

import "errors"

// ValidationError is a client mistake. Its message is returned verbatim in
// the 400 envelope.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

func invalidErr(err error) error {
	return &ValidationError{Message: capitalize(err.Error()), Err: err}
}

// IsValidation reports whether err should be answered with a 400.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
