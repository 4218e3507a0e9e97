package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/attendsync/backend/internal/infrastructure/auth"
	"github.com/attendsync/backend/internal/infrastructure/logger"
	"github.com/attendsync/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Operator context keys
const (
	OperatorClaimsKey = "operator_claims"
	// OperatorKey is also read by the access log
	OperatorKey   = "operator"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

var errMissingCredentials = errors.New("missing bearer token")

// TokenValidator validates operator tokens
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*auth.OperatorClaims, error)
}

// OperatorAuthConfig holds configuration for the operator auth middleware
type OperatorAuthConfig struct {
	Tokens TokenValidator
	// OnError replaces the default 401 response
	OnError func(c *gin.Context, err error)
	Logger  *zap.Logger
}

// OperatorAuth requires a valid operator bearer token
func OperatorAuth(tokens TokenValidator, log *zap.Logger) gin.HandlerFunc {
	return OperatorAuthWithConfig(OperatorAuthConfig{Tokens: tokens, Logger: log})
}

// OperatorAuthWithConfig creates the operator auth middleware with custom config
func OperatorAuthWithConfig(cfg OperatorAuthConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader == "" {
			handleAuthError(c, cfg, errMissingCredentials, "Missing authorization header")
			return
		}
		if !strings.HasPrefix(authHeader, BearerPrefix) {
			handleAuthError(c, cfg, errMissingCredentials, "Invalid authorization header format")
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
		if tokenString == "" {
			handleAuthError(c, cfg, errMissingCredentials, "Missing token")
			return
		}

		claims, err := cfg.Tokens.Validate(c.Request.Context(), tokenString)
		if err != nil {
			handleAuthError(c, cfg, err, "Token validation failed")
			return
		}

		c.Set(OperatorClaimsKey, claims)
		c.Set(OperatorKey, claims.Operator)

		ctx := logger.WithOperator(c.Request.Context(), claims.Operator)
		reqLogger := logger.FromContext(ctx).With(zap.String("operator", claims.Operator))
		c.Request = c.Request.WithContext(logger.WithContext(ctx, reqLogger))

		cfg.Logger.Debug("Operator authenticated", zap.String("operator", claims.Operator))
		c.Next()
	}
}

func handleAuthError(c *gin.Context, cfg OperatorAuthConfig, err error, message string) {
	if cfg.OnError != nil {
		cfg.OnError(c, err)
		return
	}

	code, text := dto.ErrCodeUnauthorized, "Authentication required"
	switch {
	case errors.Is(err, errMissingCredentials):
	case errors.Is(err, auth.ErrExpiredToken):
		code, text = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrTokenRevoked):
		code, text = dto.ErrCodeTokenRevoked, "Token has been revoked"
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrInvalidClaims),
		errors.Is(err, auth.ErrMissingOperator),
		errors.Is(err, auth.ErrTokenNotYetValid):
		code, text = dto.ErrCodeTokenInvalid, "Invalid token"
	default:
		// revocation backend failure; reject rather than let a revoked token through
		cfg.Logger.Error("Operator token check failed", zap.Error(err))
	}

	cfg.Logger.Warn("Operator authentication failed",
		zap.Error(err),
		zap.String("message", message),
		zap.String("path", c.Request.URL.Path),
	)
	c.AbortWithStatusJSON(http.StatusUnauthorized,
		dto.NewErrorResponseWithRequestID(code, text, GetRequestID(c)))
}

// GetOperatorClaims retrieves the operator claims from gin.Context
func GetOperatorClaims(c *gin.Context) *auth.OperatorClaims {
	if claims, exists := c.Get(OperatorClaimsKey); exists {
		if oc, ok := claims.(*auth.OperatorClaims); ok {
			return oc
		}
	}
	return nil
}

// GetOperator returns the authenticated operator name, or "" for anonymous requests
func GetOperator(c *gin.Context) string {
	return c.GetString(OperatorKey)
}
