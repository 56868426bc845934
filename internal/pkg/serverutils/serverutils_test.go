package serverutils

import (
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"support-chatbot-be/internal/pkg/logger"
	"support-chatbot-be/pkg/store"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(secret string, handler fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware(logger.NewNopLogger()))
	app.Get("/me", IdentityMiddleware(secret), handler)
	return app
}

func echoUser(ctx *fiber.Ctx) error {
	return ctx.SendString(UserID(ctx))
}

func TestIdentityMiddleware_Header(t *testing.T) {
	app := newApp("", echoUser)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set(HeaderUserID, "u-1")
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "u-1", string(body))

	resp, err = app.Test(httptest.NewRequest("GET", "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestIdentityMiddleware_JWT(t *testing.T) {
	app := newApp("secret", echoUser)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u-9",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	resp, err := app.Test(req)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "u-9", string(body))

	req = httptest.NewRequest("GET", "/me", nil)
	req.Header.Set(HeaderUserID, "spoofed")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, 401, resp.StatusCode, "header identity is ignored when tokens are required")
}

func TestErrorHandlerMiddleware(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{fmt.Errorf("wrap: %w", store.ErrStoreUnavailable), 503},
		{store.ErrSessionNotFound, 404},
		{&ValidationError{Fields: map[string]string{"Chat": "failed on 'required' rule"}}, 400},
		{fiber.NewError(fiber.StatusConflict, "conflict"), 409},
		{fmt.Errorf("boom"), 500},
	}
	for _, tt := range tests {
		err := tt.err
		app := newApp("", func(*fiber.Ctx) error { return err })
		req := httptest.NewRequest("GET", "/me", nil)
		req.Header.Set(HeaderUserID, "u")
		resp, e := app.Test(req)
		require.NoError(t, e)
		assert.Equal(t, tt.code, resp.StatusCode, tt.err.Error())
	}
}

func TestValidateRequest(t *testing.T) {
	type req struct {
		Chat string `validate:"required"`
	}
	err := ValidateRequest(req{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "Chat")
	assert.NoError(t, ValidateRequest(req{Chat: "hi"}))
}
