package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"family-circle-go/internal/config"
	userdomain "family-circle-go/internal/domain/user"
	"family-circle-go/pkg/logger"
)

var ErrInvalidToken = errors.New("invalid token")

type contextKey int

const (
	userIDKey contextKey = iota
	userKey
)

type User struct {
	ID        string
	Email     string
	FirstName string
	LastName  string
	AvatarURL string
}

// Verifier turns a bearer token into the caller's identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (User, error)
}

type ProfileSaver interface {
	UpsertProfile(ctx context.Context, profile userdomain.Profile) error
}

type Authenticator struct {
	verifier Verifier
	profiles ProfileSaver
	log      logger.Logger
	skipAuth bool
	mockUser User
}

func NewAuthenticator(cfg config.AuthConfig, verifier Verifier, profiles ProfileSaver, log logger.Logger) *Authenticator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Authenticator{
		verifier: verifier,
		profiles: profiles,
		log:      log,
		skipAuth: cfg.SkipAuth,
		mockUser: User{
			ID:        strings.TrimSpace(cfg.MockUserID),
			Email:     strings.TrimSpace(cfg.MockUserEmail),
			FirstName: strings.TrimSpace(cfg.MockFirstName),
			LastName:  strings.TrimSpace(cfg.MockLastName),
			AvatarURL: strings.TrimSpace(cfg.MockUserAvatar),
		},
	}
}

func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.skipAuth {
			user := a.mockUser
			if user.ID == "" {
				writeError(w, http.StatusInternalServerError, "auth mock user id not configured")
				return
			}
			a.saveProfile(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(a.withUser(r.Context(), user)))
			return
		}

		if a.verifier == nil {
			writeError(w, http.StatusInternalServerError, "auth not configured")
			return
		}

		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			unauthorized(w)
			return
		}

		user, err := a.verifier.Verify(r.Context(), token)
		if err != nil || user.ID == "" {
			logger.FromContext(r.Context(), a.log).Debug("auth: token rejected", "err", err)
			unauthorized(w)
			return
		}

		a.saveProfile(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(a.withUser(r.Context(), user)))
	})
}

// withUser stores the identity and tags the request logger with it.
func (a *Authenticator) withUser(ctx context.Context, user User) context.Context {
	ctx = WithUser(ctx, user)
	return logger.WithContext(ctx, logger.FromContext(ctx, a.log).With("user_id", user.ID))
}

func (a *Authenticator) saveProfile(ctx context.Context, user User) {
	if a.profiles == nil {
		return
	}
	err := a.profiles.UpsertProfile(ctx, userdomain.Profile{
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		AvatarURL: user.AvatarURL,
	})
	if err != nil {
		logger.FromContext(ctx, a.log).Error("auth: upsert profile failed", "err", err, "user_id", user.ID)
	}
}

func bearerToken(value string) (string, bool) {
	parts := strings.Fields(value)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func unauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, "invalid token")
}

func WithUser(ctx context.Context, user User) context.Context {
	ctx = context.WithValue(ctx, userKey, user)
	return context.WithValue(ctx, userIDKey, user.ID)
}

func UserFromContext(ctx context.Context) (User, bool) {
	value := ctx.Value(userKey)
	user, ok := value.(User)
	if !ok || user.ID == "" {
		return User{}, false
	}
	return user, true
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	value := ctx.Value(userIDKey)
	userID, ok := value.(string)
	if !ok || userID == "" {
		return "", false
	}
	return userID, true
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"statusCode": status,
		"message":    message,
		"success":    false,
	})
}

func stringFromMap(values map[string]interface{}, key string) string {
	if values == nil {
		return ""
	}
	parsed, _ := values[key].(string)
	return parsed
}
