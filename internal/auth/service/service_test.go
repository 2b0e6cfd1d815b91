package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"careflow/internal/auth"
	"careflow/internal/auth/store/user"
	"careflow/internal/jwttoken"
	dErrors "careflow/pkg/domain-errors"
)

func newTestService(t *testing.T) (*Service, *jwttoken.Service, uuid.UUID) {
	t.Helper()

	users := user.NewMemory()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)

	id := uuid.New()
	require.NoError(t, users.Create(context.Background(), auth.User{
		ID:           id,
		Email:        "john@demo.com",
		PasswordHash: string(hash),
		CreatedAt:    time.Now(),
	}))

	tokens := jwttoken.NewService("test-key", "careflow", 15*time.Minute)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(users, tokens, logger, nil), tokens, id
}

func TestLoginVerifyRoundTrip(t *testing.T) {
	svc, tokens, id := newTestService(t)

	result, err := svc.Login(context.Background(), &auth.LoginRequest{
		Email:    "John@Demo.com",
		Password: "correct horse",
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.Token)
	assert.Equal(t, int64((15 * time.Minute).Seconds()), result.ExpiresIn)

	// The issued token verifies back to the same subject.
	claims, err := tokens.Verify(result.Token)
	require.NoError(t, err)
	assert.Equal(t, id.String(), claims.Subject)
	assert.Equal(t, "john@demo.com", claims.Email)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, tokens, _ := newTestService(t)

	result, err := svc.Login(context.Background(), &auth.LoginRequest{
		Email:    "john@demo.com",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Nil(t, result)

	// Nothing a failed login returns may verify as a token.
	_, verifyErr := tokens.Verify("")
	assert.Error(t, verifyErr)
}

func TestLoginUnknownEmail(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Login(context.Background(), &auth.LoginRequest{
		Email:    "nobody@demo.com",
		Password: "correct horse",
	})
	require.Error(t, err)
	// Same outcome as a wrong password: no user enumeration.
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	assert.Equal(t, "invalid credentials", err.Error())
}

func TestLoginValidation(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Login(context.Background(), &auth.LoginRequest{Email: "not-an-email", Password: "x"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = svc.Login(context.Background(), &auth.LoginRequest{Email: "john@demo.com"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = svc.Login(context.Background(), nil)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}
