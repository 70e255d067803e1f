package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"mdmc/internal/errs"
)

// Identity is what an external provider vouches for after a successful exchange.
type Identity struct {
	ProviderID string
	Email      string
	GivenName  string
	FamilyName string
	AvatarURL  string
}

type IdentityProvider interface {
	Exchange(ctx context.Context, accessToken string) (*Identity, error)
}

// GoogleProvider resolves a Google OAuth access token against the userinfo endpoint.
type GoogleProvider struct {
	userInfoURL string
	client      *http.Client
}

func NewGoogleProvider(userInfoURL string) *GoogleProvider {
	return &GoogleProvider{
		userInfoURL: userInfoURL,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

type googleUserInfo struct {
	Sub        string `json:"sub"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
	Picture    string `json:"picture"`
}

func (g *GoogleProvider) Exchange(ctx context.Context, accessToken string) (*Identity, error) {
	if accessToken == "" {
		return nil, errs.Validation("Google access token is required")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoURL, nil)
	if err != nil {
		return nil, errs.Internal("Failed to build Google request", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, errs.Internal("Failed getting user info from Google", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, errs.Unauthorized("Google authentication failed")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errs.Internal("Google userinfo request failed", fmt.Errorf("status %d", resp.StatusCode))
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, errs.Internal("Failed to decode Google user info", err)
	}
	if info.Sub == "" || info.Email == "" {
		return nil, errs.Unauthorized("Google account has no usable identity")
	}
	return &Identity{
		ProviderID: info.Sub,
		Email:      info.Email,
		GivenName:  info.GivenName,
		FamilyName: info.FamilyName,
		AvatarURL:  info.Picture,
	}, nil
}
