package domain

import "context"

// CodeStore binds one-time authorization codes to the request they were issued for
type CodeStore interface {
	// SetCode binds code to request. It returns false without overwriting when
	// the code is already bound; the caller should generate a new code and retry.
	SetCode(ctx context.Context, code string, request OAuth2Request) (bool, error)

	// ConsumeCode returns the bound request and deletes the binding in one step
	ConsumeCode(ctx context.Context, code string) (OAuth2Request, bool, error)

	// Reset removes every pending code
	Reset(ctx context.Context) error
}
