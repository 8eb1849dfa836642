package domain

import "errors"

var (
	// ErrEmptyClientID is returned when a client without an ID is added or updated
	ErrEmptyClientID = errors.New("empty client id")

	// ErrInvalidClientSecret is returned when a client secret does not match its hash
	ErrInvalidClientSecret = errors.New("invalid client secret")

	// ErrUnknownGrantType is returned when a grant type value is not recognised
	ErrUnknownGrantType = errors.New("unknown grant type")
)
