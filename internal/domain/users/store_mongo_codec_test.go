package users

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"onboarding/internal/domain/auth"
)

func TestUserDocDecodesStringTimestamps(t *testing.T) {
	oid := primitive.NewObjectID()
	raw, err := bson.Marshal(bson.M{
		"_id":        oid,
		"name":       "Legacy Hire",
		"email":      "legacy@example.com",
		"password":   "$2b$12$hash",
		"role":       "hr",
		"isActive":   true,
		"status":     "active",
		"created_at": "2024-05-01T08:30:00.123456",
		"updated_at": "2024-05-02T09:00:00",
		"last_login": "2024-05-03T10:15:30.5+00:00",
	})
	require.NoError(t, err)

	var doc userDoc
	require.NoError(t, bson.Unmarshal(raw, &doc))
	u := doc.toUser()

	assert.Equal(t, oid.Hex(), u.ID)
	assert.Equal(t, auth.RoleHR, u.Role)
	assert.Equal(t, time.Date(2024, 5, 1, 8, 30, 0, 123456000, time.UTC), u.CreatedAt)
	assert.Equal(t, time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC), u.UpdatedAt)
	require.NotNil(t, u.LastLogin)
	assert.Equal(t, time.Date(2024, 5, 3, 10, 15, 30, 500000000, time.UTC), *u.LastLogin)
}

func TestUserDocEncodesISOStrings(t *testing.T) {
	at := time.Date(2026, 2, 3, 4, 5, 6, 7000, time.FixedZone("AST", 3*3600))
	raw, err := bson.Marshal(fromUser(User{Name: "New", Email: "new@example.com", CreatedAt: at, UpdatedAt: at}))
	require.NoError(t, err)

	var stored bson.M
	require.NoError(t, bson.Unmarshal(raw, &stored))
	assert.Equal(t, "2026-02-03T01:05:06.000007Z", stored["created_at"])
	assert.Equal(t, "2026-02-03T01:05:06.000007Z", stored["updated_at"])
	assert.Nil(t, stored["last_login"])

	var doc userDoc
	require.NoError(t, bson.Unmarshal(raw, &doc))
	assert.Nil(t, doc.toUser().LastLogin)
}
