// Package token obtains bearer tokens from a Docker Registry v2
// authorization server, following the token authentication flow the
// registry advertises in its WWW-Authenticate challenges.
package token

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Credentials authenticate the token request itself. The registry side
// of the exchange never sees them.
type Credentials struct {
	Username string
	Password string
}

// Manager requests tokens from a single authorization server endpoint,
// e.g. https://auth.docker.io/token.
type Manager struct {
	endpoint *url.URL
	client   *http.Client
}

// NewManager validates authServer and returns a manager that requests
// tokens from it. A nil client falls back to http.DefaultClient.
func NewManager(authServer string, client *http.Client) (*Manager, error) {
	u, err := url.Parse(authServer)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse authorization server url '%s'", authServer)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("invalid authorization server url '%s'", authServer)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Manager{endpoint: u, client: client}, nil
}

// Get requests a token for the given service, scoped to scope. When
// creds is set the request carries basic auth and the account query
// parameter, so the server can issue a token above the public grants.
func (m *Manager) Get(ctx context.Context, service, scope string, creds *Credentials) (string, error) {
	u := *m.endpoint
	q := u.Query()
	q.Set("service", service)
	q.Set("scope", scope)
	if creds != nil {
		q.Set("account", creds.Username)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", errors.Wrap(err, "failed to create token request")
	}
	if creds != nil {
		req.SetBasicAuth(creds.Username, creds.Password)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "failed to request token")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("unexpected status for token request: %s", resp.Status)
	}

	// Older servers reply with access_token instead of token.
	var payload struct {
		Token       string `json:"token"`
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", errors.Wrap(err, "failed to decode token response")
	}
	tok := payload.Token
	if tok == "" {
		tok = payload.AccessToken
	}
	if tok == "" {
		return "", errors.New("token missing in response from authorization server")
	}

	logrus.WithFields(logrus.Fields{
		"service": service,
		"scope":   scope,
	}).Debug("fetched registry token")

	return tok, nil
}
