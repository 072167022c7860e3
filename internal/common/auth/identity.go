package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"invoice-assistant/internal/common/config"
)

// Identity is the authenticated caller resolved from a bearer token.
type Identity struct {
	UserID   string `json:"sub"`
	Username string `json:"preferred_username"`
	Email    string `json:"email"`
	Active   bool   `json:"active"`
}

// Verifier resolves bearer tokens to user identities. Every write path in
// the assistant requires a verified identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// IntrospectionVerifier validates tokens against the identity provider's
// OAuth token-introspection endpoint.
type IntrospectionVerifier struct {
	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	httpClient   *http.Client
}

func NewIntrospectionVerifier(cfg config.IdentityConfig) *IntrospectionVerifier {
	return &IntrospectionVerifier{
		baseURL:      strings.TrimSuffix(cfg.URL, "/"),
		realm:        cfg.Realm,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (v *IntrospectionVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, fmt.Errorf("empty bearer token")
	}

	endpoint := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token/introspect", v.baseURL, v.realm)

	data := url.Values{}
	data.Set("token", token)
	data.Set("client_id", v.clientID)
	data.Set("client_secret", v.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create introspection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("introspection request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("introspection endpoint returned status %d", resp.StatusCode)
	}

	var id Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return nil, fmt.Errorf("failed to decode introspection response: %w", err)
	}
	if !id.Active || id.UserID == "" {
		return nil, fmt.Errorf("token is not active")
	}
	return &id, nil
}

// StaticVerifier treats the token itself as the user id. Used when the
// identity provider is disabled (local development, tests).
type StaticVerifier struct{}

func (StaticVerifier) Verify(_ context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, fmt.Errorf("empty bearer token")
	}
	return &Identity{UserID: token, Active: true}, nil
}
