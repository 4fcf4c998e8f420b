package middleware

import (
	"context"
	"net/http"

	"firebase.google.com/go/v4/auth"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/anonto42/shelflog/backend/internal/feed"
	"github.com/anonto42/shelflog/backend/internal/models"
)

// TokenVerifier is satisfied by *auth.Client.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// UserStore resolves Firebase identities to local users.
type UserStore interface {
	GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
}

// FirebaseAuthMiddleware verifies Firebase ID tokens. A first-time user is
// provisioned from the token claims.
func FirebaseAuthMiddleware(verifier TokenVerifier, users UserStore, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			idToken, err := bearerToken(c)
			if err != nil {
				return err
			}

			ctx := c.Request().Context()
			token, err := verifier.VerifyIDToken(ctx, idToken)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired ID token")
			}

			user, err := users.GetUserByFirebaseUID(ctx, token.UID)
			if feed.IsNotFound(err) {
				user = userFromToken(token)
				err = users.CreateUser(ctx, user)
			}
			if err != nil {
				log.Error().Err(err).Str("firebase_uid", token.UID).Msg("user lookup failed")
				return echo.NewHTTPError(http.StatusInternalServerError, "Authenticated user could not be resolved")
			}

			c.Set("firebaseUID", token.UID)
			c.Set(UserIDKey, user.ID)
			return next(c)
		}
	}
}

func userFromToken(token *auth.Token) *models.User {
	u := &models.User{FirebaseUID: token.UID}
	if name, ok := token.Claims["name"].(string); ok {
		u.Name = name
	}
	if email, ok := token.Claims["email"].(string); ok {
		u.Email = email
	}
	if picture, ok := token.Claims["picture"].(string); ok {
		u.AvatarURL = picture
	}
	return u
}
