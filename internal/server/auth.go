package server

import (
	"errors"
	"strings"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tmsbilling/internal/authorization"
	"github.com/smallbiznis/tmsbilling/internal/identity"
	obscontext "github.com/smallbiznis/tmsbilling/internal/observability/context"
)

const bearerPrefix = "bearer "

// accessClaims is what the identity provider puts in dashboard tokens.
type accessClaims struct {
	Role string `json:"role"`
	jwt.StandardClaims
}

var errUnexpectedSigningMethod = errors.New("unexpected_signing_method")

// AuthRequired resolves the caller from an HS256 bearer token.
func (s *Server) AuthRequired() gin.HandlerFunc {
	secret := []byte(s.cfg.AuthJWTSecret)

	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if len(secret) == 0 || len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		raw := strings.TrimSpace(header[len(bearerPrefix):])

		var claims accessClaims
		token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errUnexpectedSigningMethod
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		userID := strings.TrimSpace(claims.Subject)
		role, ok := identity.ParseRole(claims.Role)
		if userID == "" || !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx := identity.WithActor(c.Request.Context(), identity.Actor{UserID: userID, Role: role})
		ctx = obscontext.WithActor(ctx, string(role), userID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequirePermission checks the caller's role against the casbin policy.
func (s *Server) RequirePermission(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := identity.ActorFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		if err := s.authzSvc.Authorize(c.Request.Context(), string(actor.Role), object, action); err != nil {
			if errors.Is(err, authorization.ErrForbidden) || errors.Is(err, authorization.ErrInvalidRole) {
				AbortWithError(c, ErrForbidden)
				return
			}
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}
