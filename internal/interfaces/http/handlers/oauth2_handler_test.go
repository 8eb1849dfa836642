package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/mcygoogle/demo-for-google-identity/internal/application"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authorizeURL(overrides url.Values) string {
	params := url.Values{
		"client_id":     {"google"},
		"redirect_uri":  {testRedirectURI},
		"response_type": {"code"},
		"scope":         {"read"},
		"state":         {"xyz"},
	}
	for key, values := range overrides {
		params[key] = values
	}
	return "/oauth2/authorize?" + params.Encode()
}

func formRequest(target string, form url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// startAuthorization runs the GET phase for user and returns the response carrying the session
func (f *oauth2Fixture) startAuthorization(t *testing.T, user string, overrides url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, authorizeURL(overrides), nil)
	req.Header.Set(testUserHeader, user)
	w := f.serve(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return w
}

func (f *oauth2Fixture) decide(user, approve string, session *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	req := formRequest("/oauth2/authorize", url.Values{application.ParamUserApprove: {approve}})
	req.Header.Set(testUserHeader, user)
	if session != nil {
		req = withCookies(req, session)
	}
	return f.serve(req)
}

func (f *oauth2Fixture) authorizationCode(t *testing.T, user string) string {
	t.Helper()
	w := f.decide(user, "true", f.startAuthorization(t, user, nil))
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())

	location, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "xyz", location.Query().Get("state"))
	code := location.Query().Get("code")
	require.NotEmpty(t, code)
	return code
}

func (f *oauth2Fixture) exchange(t *testing.T, code string) application.TokenResponse {
	t.Helper()
	req := formRequest("/oauth2/token", url.Values{
		"grant_type":   {"authorization_code"},
		"code":         {code},
		"redirect_uri": {testRedirectURI},
	})
	req.SetBasicAuth("google", testClientSecret)
	w := f.serve(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	var response application.TokenResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	return response
}

func TestAuthorizeHandler_ConsentPrompt(t *testing.T) {
	f := newOAuth2Fixture(t)

	w := f.startAuthorization(t, "alice", nil)

	var prompt ConsentPrompt
	require.NoError(t, json.NewDecoder(w.Body).Decode(&prompt))
	assert.Equal(t, ConsentPrompt{
		ClientID:     "google",
		Username:     "alice",
		Scopes:       []string{"read"},
		ResponseType: "code",
		RedirectURI:  testRedirectURI,
		State:        "xyz",
		ApproveParam: "user_approve",
	}, prompt)
	assert.NotEmpty(t, w.Result().Cookies())
}

func TestAuthorizeHandler_Errors(t *testing.T) {
	tests := []struct {
		name           string
		user           string
		overrides      url.Values
		expectedStatus int
		expectedBody   string
		expectedQuery  url.Values
	}{
		{
			name:           "no user",
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `{"error":"invalid_request","error_description":"No Logged In User!"}`,
		},
		{
			name:           "unknown client is not redirected",
			user:           "alice",
			overrides:      url.Values{"client_id": {"unknown"}},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"invalid_request","error_description":"Client ID does not exist!"}`,
		},
		{
			name:           "redirect uri mismatch is not redirected",
			user:           "alice",
			overrides:      url.Values{"redirect_uri": {"https://evil.example.com"}},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"error":"invalid_request","error_description":"Redirect Uri Mismatch!"}`,
		},
		{
			name:           "unsupported response type is redirected",
			user:           "alice",
			overrides:      url.Values{"response_type": {"id_token"}},
			expectedStatus: http.StatusFound,
			expectedQuery: url.Values{
				"error":             {"unsupported_response_type"},
				"error_description": {"Response type must be code or token!"},
				"state":             {"xyz"},
			},
		},
		{
			name:           "invalid scope is redirected",
			user:           "alice",
			overrides:      url.Values{"scope": {"write"}},
			expectedStatus: http.StatusFound,
			expectedQuery: url.Values{
				"error":             {"invalid_scope"},
				"error_description": {"Requested scope is not allowed for this client!"},
				"state":             {"xyz"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOAuth2Fixture(t)
			req := httptest.NewRequest(http.MethodGet, authorizeURL(tt.overrides), nil)
			if tt.user != "" {
				req.Header.Set(testUserHeader, tt.user)
			}

			w := f.serve(req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedBody != "" {
				assert.JSONEq(t, tt.expectedBody, w.Body.String())
			}
			if tt.expectedQuery != nil {
				location, err := url.Parse(w.Header().Get("Location"))
				require.NoError(t, err)
				assert.Equal(t, "www.google.com", location.Host)
				assert.Equal(t, tt.expectedQuery, location.Query())
			}
		})
	}
}

func TestDecisionHandler(t *testing.T) {
	t.Run("no pending request", func(t *testing.T) {
		f := newOAuth2Fixture(t)
		w := f.decide("alice", "true", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"invalid_request","error_description":"No Authorization Request!"}`, w.Body.String())
	})

	t.Run("invalid consent keeps the request", func(t *testing.T) {
		f := newOAuth2Fixture(t)
		session := f.startAuthorization(t, "alice", nil)

		w := f.decide("alice", "maybe", session)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.JSONEq(t, `{"error":"invalid_request","error_description":"Invalid User Consent!"}`, w.Body.String())

		w = f.decide("alice", "true", session)
		assert.Equal(t, http.StatusFound, w.Code)
	})

	t.Run("denied", func(t *testing.T) {
		f := newOAuth2Fixture(t)
		session := f.startAuthorization(t, "alice", nil)

		w := f.decide("alice", "false", session)
		require.Equal(t, http.StatusFound, w.Code)
		location, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "access_denied", location.Query().Get("error"))
		assert.Equal(t, "xyz", location.Query().Get("state"))

		again := f.decide("alice", "true", w)
		assert.Equal(t, http.StatusBadRequest, again.Code)
	})

	t.Run("request of another user is ignored", func(t *testing.T) {
		f := newOAuth2Fixture(t)
		session := f.startAuthorization(t, "alice", nil)

		req := formRequest("/oauth2/authorize", url.Values{application.ParamUserApprove: {"true"}})
		req.Header.Set(testUserHeader, "mallory")
		w := f.serve(req)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		// the session cookie still names alice
		assert.Equal(t, http.StatusFound, f.decide("mallory", "true", session).Code)
	})

	t.Run("implicit grant", func(t *testing.T) {
		f := newOAuth2Fixture(t)
		session := f.startAuthorization(t, "alice", url.Values{"response_type": {"token"}})

		w := f.decide("alice", "true", session)
		require.Equal(t, http.StatusFound, w.Code)

		location, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		fragment, err := url.ParseQuery(location.Fragment)
		require.NoError(t, err)
		assert.NotEmpty(t, fragment.Get("access_token"))
		assert.Equal(t, "Bearer", fragment.Get("token_type"))
		assert.Equal(t, "xyz", fragment.Get("state"))
		assert.Empty(t, location.Query().Get("code"))
	})
}

func TestOAuth2Handler_CodeFlow(t *testing.T) {
	f := newOAuth2Fixture(t)

	tokens := f.exchange(t, f.authorizationCode(t, "alice"))
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, "Bearer", tokens.TokenType)
	assert.Equal(t, "read", tokens.Scope)
	assert.Positive(t, tokens.ExpiresIn)

	t.Run("tokeninfo", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/oauth2/tokeninfo", nil)
		req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
		w := f.serve(req)
		require.Equal(t, http.StatusOK, w.Code)

		var info application.TokenInfo
		require.NoError(t, json.NewDecoder(w.Body).Decode(&info))
		assert.Equal(t, "google", info.ClientID)
		assert.Equal(t, "alice", info.Username)
		assert.Equal(t, "read", info.Scope)

		w = f.serve(httptest.NewRequest(http.MethodGet, "/oauth2/tokeninfo?access_token=bogus", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = f.serve(httptest.NewRequest(http.MethodGet, "/oauth2/tokeninfo", nil))
		assert.JSONEq(t, `{"error":"invalid_request","error_description":"No Token!"}`, w.Body.String())
	})

	t.Run("refresh with form credentials", func(t *testing.T) {
		w := f.serve(formRequest("/oauth2/token", url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {tokens.RefreshToken},
			"client_id":     {"google"},
			"client_secret": {testClientSecret},
		}))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var refreshed application.TokenResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&refreshed))
		assert.NotEqual(t, tokens.AccessToken, refreshed.AccessToken)
		assert.Equal(t, tokens.RefreshToken, refreshed.RefreshToken)
	})

	t.Run("code replay", func(t *testing.T) {
		code := f.authorizationCode(t, "alice")
		f.exchange(t, code)

		req := formRequest("/oauth2/token", url.Values{
			"grant_type":   {"authorization_code"},
			"code":         {code},
			"redirect_uri": {testRedirectURI},
		})
		req.SetBasicAuth("google", testClientSecret)
		w := f.serve(req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"invalid_grant"`)
	})

	t.Run("links and unlink", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/links", nil)
		req.Header.Set(testUserHeader, "alice")
		w := f.serve(req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[{"client_id":"google","scopes":["read"]}]`, w.Body.String())

		req = httptest.NewRequest(http.MethodDelete, "/api/links/google", nil)
		req.Header.Set(testUserHeader, "alice")
		assert.Equal(t, http.StatusNoContent, f.serve(req).Code)

		_, ok := f.tokens.ReadAccessToken(tokens.AccessToken)
		assert.False(t, ok)

		req = httptest.NewRequest(http.MethodGet, "/api/links", nil)
		req.Header.Set(testUserHeader, "alice")
		w = f.serve(req)
		assert.JSONEq(t, `[]`, w.Body.String())

		req = httptest.NewRequest(http.MethodDelete, "/api/links/google", nil)
		req.Header.Set(testUserHeader, "bob")
		assert.Equal(t, http.StatusNotFound, f.serve(req).Code)
	})
}

func TestTokenHandler_Errors(t *testing.T) {
	tests := []struct {
		name           string
		form           url.Values
		basicSecret    string
		expectedStatus int
		expectedError  string
		expectedDesc   string
	}{
		{
			name:           "missing grant type",
			form:           url.Values{},
			basicSecret:    testClientSecret,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid_request",
			expectedDesc:   "No Grant Type!",
		},
		{
			name:           "unsupported grant type",
			form:           url.Values{"grant_type": {"password"}},
			basicSecret:    testClientSecret,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "unsupported_grant_type",
		},
		{
			name:           "wrong secret",
			form:           url.Values{"grant_type": {"authorization_code"}, "code": {"x"}},
			basicSecret:    "wrong",
			expectedStatus: http.StatusUnauthorized,
			expectedError:  "invalid_client",
		},
		{
			name:           "missing code",
			form:           url.Values{"grant_type": {"authorization_code"}},
			basicSecret:    testClientSecret,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid_request",
			expectedDesc:   "No Authorization Code!",
		},
		{
			name:           "unknown code",
			form:           url.Values{"grant_type": {"authorization_code"}, "code": {"nope"}},
			basicSecret:    testClientSecret,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid_grant",
		},
		{
			name:           "missing refresh token",
			form:           url.Values{"grant_type": {"refresh_token"}},
			basicSecret:    testClientSecret,
			expectedStatus: http.StatusBadRequest,
			expectedError:  "invalid_request",
			expectedDesc:   "No Refresh Token!",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newOAuth2Fixture(t)
			req := formRequest("/oauth2/token", tt.form)
			req.SetBasicAuth("google", tt.basicSecret)

			w := f.serve(req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			var body map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, tt.expectedError, body["error"])
			if tt.expectedDesc != "" {
				assert.Equal(t, tt.expectedDesc, body["error_description"])
			}
			if tt.expectedError == "invalid_client" {
				assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestRevokeHandler(t *testing.T) {
	f := newOAuth2Fixture(t)
	tokens := f.exchange(t, f.authorizationCode(t, "alice"))

	revoke := func(token string) *httptest.ResponseRecorder {
		req := formRequest("/oauth2/revoke", url.Values{"token": {token}})
		req.SetBasicAuth("google", testClientSecret)
		return f.serve(req)
	}

	assert.Equal(t, http.StatusOK, revoke(tokens.AccessToken).Code)
	_, ok := f.tokens.ReadAccessToken(tokens.AccessToken)
	assert.False(t, ok)

	assert.Equal(t, http.StatusOK, revoke(tokens.RefreshToken).Code)
	_, ok = f.tokens.ReadRefreshToken(tokens.RefreshToken)
	assert.False(t, ok)

	assert.Equal(t, http.StatusOK, revoke("unknown").Code)
	assert.Equal(t, http.StatusBadRequest, revoke("").Code)

	unauthenticated := formRequest("/oauth2/revoke", url.Values{"token": {"x"}})
	assert.Equal(t, http.StatusUnauthorized, f.serve(unauthenticated).Code)
}
