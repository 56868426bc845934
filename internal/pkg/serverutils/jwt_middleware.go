package serverutils

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	LocalUserID  = "user_id"
	HeaderUserID = "X-User-Id"
)

// IdentityMiddleware puts the caller's user id in ctx.Locals("user_id").
// With a secret it verifies a Bearer token and reads its user_id (or sub)
// claim. Without one, it trusts X-User-Id set by the upstream auth layer.
func IdentityMiddleware(jwtSecret string) fiber.Handler {
	if jwtSecret == "" {
		return headerIdentity
	}
	return jwtIdentity([]byte(jwtSecret))
}

func headerIdentity(ctx *fiber.Ctx) error {
	userID := strings.TrimSpace(ctx.Get(HeaderUserID))
	if userID == "" {
		return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing user identity", nil))
	}
	ctx.Locals(LocalUserID, userID)
	return ctx.Next()
}

func jwtIdentity(secret []byte) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		authHeader := ctx.Get("Authorization")
		if len(authHeader) < 7 || authHeader[:7] != "Bearer " {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Missing token", nil))
		}
		tokenStr := authHeader[7:]

		token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return secret, nil
		})
		if err != nil || !token.Valid {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid token", nil))
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Invalid claims", nil))
		}

		userID, _ := claims["user_id"].(string)
		if userID == "" {
			userID, _ = claims.GetSubject()
		}
		if userID == "" {
			return ctx.Status(fiber.StatusUnauthorized).JSON(ErrorResponse(fiber.StatusUnauthorized, "Token has no user", nil))
		}

		ctx.Locals(LocalUserID, userID)
		return ctx.Next()
	}
}

// UserID reads the id stored by IdentityMiddleware.
func UserID(ctx *fiber.Ctx) string {
	id, _ := ctx.Locals(LocalUserID).(string)
	return id
}
