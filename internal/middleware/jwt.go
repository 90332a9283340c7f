package middleware

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/crisiscoach-go-api/internal/utils"
)

// JWTProtected validates HMAC-signed bearer tokens issued by the identity
// provider and stores the subject under the "user_id" local. Websocket
// upgrades may pass the token as the access_token query parameter.
func JWTProtected(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, message := bearerToken(c)
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, message)
		}

		token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method")
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token claims")
		}

		userID := extractUserIDFromClaims(claims)
		if userID == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "token subject missing")
		}
		c.Locals("user_id", userID)

		return c.Next()
	}
}

func bearerToken(c *fiber.Ctx) (string, string) {
	authorization := c.Get("Authorization")
	if authorization == "" {
		if token := strings.TrimSpace(c.Query("access_token")); token != "" && strings.EqualFold(c.Get("Upgrade"), "websocket") {
			return token, ""
		}
		return "", "authorization header missing"
	}

	const bearer = "Bearer "
	if len(authorization) < len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
		return "", "invalid authorization header"
	}

	token := strings.TrimSpace(authorization[len(bearer):])
	if token == "" {
		return "", "invalid token"
	}
	return token, ""
}

func extractUserIDFromClaims(claims jwt.MapClaims) string {
	for _, key := range []string{"sub", "user_id", "id"} {
		if value, ok := claims[key]; ok {
			if normalized := normalizeUserID(value); normalized != "" {
				return normalized
			}
		}
	}
	return ""
}

// normalizeUserID accepts opaque string subjects (uuids, provider ids) as
// well as numeric ones.
func normalizeUserID(value interface{}) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v < 0 || v != float64(int64(v)) {
			return ""
		}
		return strconv.FormatInt(int64(v), 10)
	default:
		return ""
	}
}
