// Package middleware provides request-scoped logging, identity, metrics and tracing middleware.
package middleware

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"storefront/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Token issuer and audience accepted by the identity middleware.
const (
	TokenIssuer   = "storefront-api"
	TokenAudience = "storefront-client"
)

var (
	errMissingToken = errors.New("authorization required")
	errInvalidToken = errors.New("invalid or expired token")
)

// UserIDFromLocals returns the authenticated user, if any.
func UserIDFromLocals(c *fiber.Ctx) (uint, bool) {
	uid, ok := c.Locals("userID").(uint)
	return uid, ok && uid != 0
}

// Identity parses an optional bearer token. Requests without a valid token
// continue anonymously; session issuance is handled elsewhere.
func Identity(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := userIDFromRequest(c, secret)
		if err == nil {
			setUser(c, userID)
		}
		return c.Next()
	}
}

// AuthRequired rejects requests without a valid bearer token.
func AuthRequired(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := UserIDFromLocals(c); ok {
			return c.Next()
		}
		userID, err := userIDFromRequest(c, secret)
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized,
				models.NewUnauthorizedError(err.Error()))
		}
		setUser(c, userID)
		return c.Next()
	}
}

func setUser(c *fiber.Ctx, userID uint) {
	c.Locals("userID", userID)
	ctx := context.WithValue(c.UserContext(), UserIDKey, userID)
	c.SetUserContext(ctx)
}

func userIDFromRequest(c *fiber.Ctx, secret string) (uint, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return 0, errMissingToken
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return 0, errMissingToken
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(TokenIssuer), jwt.WithAudience(TokenAudience))
	if err != nil || !token.Valid {
		return 0, errInvalidToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return 0, errInvalidToken
	}

	userID, err := strconv.ParseUint(sub, 10, 32)
	if err != nil || userID == 0 {
		return 0, errInvalidToken
	}
	return uint(userID), nil
}
