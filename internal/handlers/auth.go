package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/shopmate/shopmate/internal/logging"
	"github.com/shopmate/shopmate/internal/models"
	"github.com/shopmate/shopmate/internal/observability"
	"github.com/shopmate/shopmate/internal/services"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims identify the caller. Subject is the customer or shopper id, or the
// operator name for admin tokens.
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenVerifier signs and checks HS256 bearer tokens.
type TokenVerifier struct {
	secret []byte
	now    func() time.Time
}

func NewTokenVerifier(secret string) (*TokenVerifier, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("jwt secret must be at least 32 bytes")
	}
	return &TokenVerifier{secret: []byte(secret), now: time.Now}, nil
}

// Issue mints a token for role and subject valid for ttl.
func (v *TokenVerifier) Issue(role models.Role, subject string, ttl time.Duration) (string, error) {
	if _, err := actorFor(role, subject); err != nil {
		return "", err
	}
	now := v.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}

// Verify parses raw and returns the actor it names.
func (v *TokenVerifier) Verify(raw string) (services.Actor, error) {
	token, err := jwt.ParseWithClaims(
		raw,
		&Claims{},
		func(*jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return actorFor(claims.Role, claims.Subject)
}

func actorFor(role models.Role, subject string) (services.Actor, error) {
	switch role {
	case models.RoleCustomer, models.RoleShopper:
		id, err := uuid.Parse(subject)
		if err != nil {
			return nil, fmt.Errorf("%w: subject must be a uuid", ErrInvalidToken)
		}
		if role == models.RoleCustomer {
			return services.CustomerActor{ID: id}, nil
		}
		return services.ShopperActor{ID: id}, nil
	case models.RoleAdmin:
		return services.SystemActor{Subject: subject}, nil
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, role)
	}
}

type actorContextKey struct{}

func withActor(ctx context.Context, actor services.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func actorFromContext(ctx context.Context) (services.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(services.Actor)
	return actor, ok && actor != nil
}

// Authenticate requires a bearer token. Websocket clients that cannot set
// headers may pass it as the access_token query parameter instead.
func (h *Handlers) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		raw := bearerToken(r)
		if raw == "" {
			observability.Count(ctx, "auth.rejected", "reason", "missing")
			writeErrorBody(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		actor, err := h.tokens.Verify(raw)
		if err != nil {
			observability.Count(ctx, "auth.rejected", "reason", "invalid")
			h.loggerFromContext(ctx).Debug("rejected bearer token", "error", err)
			writeErrorBody(w, http.StatusUnauthorized, "unauthorized", "invalid bearer token")
			return
		}

		observability.Tag(ctx, "user.role", string(actor.Role()), "user.id", actor.String())
		ctx = logging.With(ctx, h.logger, "actor", actor.String())
		ctx = withActor(ctx, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
		return strings.TrimSpace(r.URL.Query().Get("access_token"))
	}
	return ""
}
