package common

import "fmt"

// AuthError is a provider-side authentication failure. Kind is one of the
// Err* auth sentinels; Message is the provider's own description, if any.
type AuthError struct {
	Kind    error
	Message string
	Err     error
}

// NewAuthError builds an AuthError of the given kind.
func NewAuthError(kind error, message string) *AuthError {
	return &AuthError{Kind: kind, Message: message}
}

func (e *AuthError) Error() string {
	kind := "auth error"
	if e.Kind != nil {
		kind = e.Kind.Error()
	}
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", kind, e.Message, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", kind, e.Err)
	}
	return kind
}

// Is reports whether target is the kind of this error.
func (e *AuthError) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
