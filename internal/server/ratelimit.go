package server

import (
	"context"
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tmsbilling/internal/identity"
	"github.com/smallbiznis/tmsbilling/internal/ratelimit"
	"go.uber.org/zap"
)

type renderLimiter interface {
	Allow(ctx context.Context, actorID string) (ratelimit.Result, error)
}

// LimitDocumentRender throttles PDF generation per caller. Limiter failures let the request through.
func (s *Server) LimitDocumentRender() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.renderLimiter == nil {
			c.Next()
			return
		}
		actor, ok := identity.ActorFromContext(c.Request.Context())
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		res, err := s.renderLimiter.Allow(c.Request.Context(), actor.UserID)
		if err != nil {
			s.log.Warn("document rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			if res.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			}
			AbortWithError(c, ErrTooManyRequests)
			return
		}
		c.Next()
	}
}
