// Package session keeps the logged in user and the pending authorization
// request in an encrypted cookie.
package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/mcygoogle/demo-for-google-identity/internal/domain"
	apperrors "github.com/mcygoogle/demo-for-google-identity/internal/domain/errors"
	httperrors "github.com/mcygoogle/demo-for-google-identity/internal/interfaces/http/errors"
	"go.uber.org/zap"
)

const (
	sessionName = "oauth2_session"

	usernameKey       = "username"
	pendingRequestKey = "pending_request"

	authKeyLength       = 64
	encryptionKeyLength = 32
)

// Options configures the session cookie
type Options struct {
	// AuthKey and EncryptionKey are base64 encoded; empty values generate random keys
	AuthKey       string
	EncryptionKey string
	Secure        bool
	MaxAge        int
}

// Manager reads and writes session state
type Manager struct {
	store  sessions.Store
	logger *zap.Logger
}

func NewManager(opts Options, logger *zap.Logger) (*Manager, error) {
	authKey, err := decodeKey("session authentication key", opts.AuthKey, authKeyLength)
	if err != nil {
		return nil, err
	}
	encryptionKey, err := decodeKey("session encryption key", opts.EncryptionKey, encryptionKeyLength)
	if err != nil {
		return nil, err
	}
	if opts.AuthKey == "" || opts.EncryptionKey == "" {
		logger.Warn("Session keys not configured, sessions will not survive a restart")
	}

	maxAge := opts.MaxAge
	if maxAge == 0 {
		maxAge = 3600
	}

	store := sessions.NewCookieStore(authKey, encryptionKey)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}

	return &Manager{store: store, logger: logger}, nil
}

func decodeKey(name, encoded string, length int) ([]byte, error) {
	if encoded == "" {
		return securecookie.GenerateRandomKey(length), nil
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", name, err)
	}
	if len(key) != length {
		return nil, fmt.Errorf("invalid %s length: want %d bytes, got %d", name, length, len(key))
	}
	return key, nil
}

// get returns the request's session. A cookie that no longer decodes yields a
// fresh session.
func (m *Manager) get(r *http.Request) *sessions.Session {
	session, err := m.store.Get(r, sessionName)
	if err != nil {
		m.logger.Debug("Discarding unreadable session", zap.Error(err))
	}
	return session
}

// Username returns the logged in user
func (m *Manager) Username(r *http.Request) (string, bool) {
	username, ok := m.get(r).Values[usernameKey].(string)
	return username, ok && username != ""
}

// SetUsername logs the user in for the rest of the session
func (m *Manager) SetUsername(w http.ResponseWriter, r *http.Request, username string) error {
	session := m.get(r)
	session.Values[usernameKey] = username
	return session.Save(r, w)
}

// PendingRequest returns the authorization request awaiting consent
func (m *Manager) PendingRequest(r *http.Request) (domain.OAuth2Request, bool) {
	raw, ok := m.get(r).Values[pendingRequestKey].(string)
	if !ok || raw == "" {
		return domain.OAuth2Request{}, false
	}

	var request domain.OAuth2Request
	if err := json.Unmarshal([]byte(raw), &request); err != nil {
		m.logger.Info("Discarding malformed pending request", zap.Error(err))
		return domain.OAuth2Request{}, false
	}
	return request, true
}

// SetPendingRequest stores the request awaiting consent, replacing any earlier one
func (m *Manager) SetPendingRequest(w http.ResponseWriter, r *http.Request, request domain.OAuth2Request) error {
	raw, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("encode pending request: %w", err)
	}
	session := m.get(r)
	session.Values[pendingRequestKey] = string(raw)
	return session.Save(r, w)
}

// ClearPendingRequest drops the request awaiting consent
func (m *Manager) ClearPendingRequest(w http.ResponseWriter, r *http.Request) error {
	session := m.get(r)
	delete(session.Values, pendingRequestKey)
	return session.Save(r, w)
}

// RequireUser resolves the user from the session, falling back to an
// authenticated bearer subject which is then remembered in the session.
// Requests with neither get invalid_request NO_USER.
func (m *Manager) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, ok := m.Username(r)
		if !ok {
			subject, hasSubject := domain.GetSubject(r.Context())
			if !hasSubject || subject == "" {
				httperrors.RespondWithOAuth2Error(w, apperrors.NewNoUserError())
				return
			}
			if err := m.SetUsername(w, r, subject); err != nil {
				m.logger.Error("Failed to save session", zap.Error(err))
				httperrors.RespondWithOAuth2Error(w, apperrors.NewServerError("failed to save session"))
				return
			}
			username = subject
		}

		next.ServeHTTP(w, r.WithContext(domain.WithUsername(r.Context(), username)))
	})
}
