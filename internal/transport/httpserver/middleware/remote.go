package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type remoteUserResponse struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	Sub          string                 `json:"sub"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	User         struct {
		ID  string `json:"id"`
		Sub string `json:"sub"`
	} `json:"user"`
}

// RemoteVerifier asks an external identity endpoint who owns the token.
type RemoteVerifier struct {
	url    string
	apiKey string
	client *http.Client
}

func NewRemoteVerifier(url, apiKey string, timeout time.Duration) *RemoteVerifier {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &RemoteVerifier{
		url:    strings.TrimRight(url, "/"),
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
	}
}

func (v *RemoteVerifier) Verify(ctx context.Context, token string) (User, error) {
	if v.url == "" {
		return User{}, fmt.Errorf("remote identity url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return User{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if v.apiKey != "" {
		req.Header.Set("apikey", v.apiKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return User{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return User{}, fmt.Errorf("%w: identity endpoint returned %d", ErrInvalidToken, resp.StatusCode)
	}

	var payload remoteUserResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return User{}, err
	}

	userID := firstNonEmpty(payload.ID, payload.Sub, payload.User.ID, payload.User.Sub)
	if userID == "" {
		return User{}, ErrInvalidToken
	}

	meta := payload.UserMetadata
	return User{
		ID:        userID,
		Email:     payload.Email,
		FirstName: firstNonEmpty(stringFromMap(meta, "first_name"), stringFromMap(meta, "firstName")),
		LastName:  firstNonEmpty(stringFromMap(meta, "last_name"), stringFromMap(meta, "lastName")),
		AvatarURL: stringFromMap(meta, "avatar_url"),
	}, nil
}
