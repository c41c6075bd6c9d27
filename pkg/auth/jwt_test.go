package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/healthoffice-api/internal/model"
)

func TestValidateToken(t *testing.T) {
	actor := model.Actor{ID: uuid.New(), Role: model.RoleDoctor}
	svc := NewJWTService("s3cret", "healthoffice")

	token, err := SignToken("s3cret", "healthoffice", actor, time.Hour)
	require.NoError(t, err)

	got, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, actor, got)
}

func TestValidateTokenRejects(t *testing.T) {
	actor := model.Actor{ID: uuid.New(), Role: model.RoleStaff}
	svc := NewJWTService("s3cret", "healthoffice")

	wrongKey, _ := SignToken("other", "healthoffice", actor, time.Hour)
	wrongIssuer, _ := SignToken("s3cret", "elsewhere", actor, time.Hour)
	expired, _ := SignToken("s3cret", "healthoffice", actor, -time.Minute)
	badRole, _ := SignToken("s3cret", "healthoffice", model.Actor{ID: uuid.New(), Role: "janitor"}, time.Hour)
	noUser, _ := SignToken("s3cret", "healthoffice", model.Actor{Role: model.RoleStaff}, time.Hour)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": actor.ID.String()}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)

	for name, token := range map[string]string{
		"wrong key":    wrongKey,
		"wrong issuer": wrongIssuer,
		"expired":      expired,
		"unknown role": badRole,
		"missing user": noUser,
		"alg none":     none,
		"garbage":      "not.a.token",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
