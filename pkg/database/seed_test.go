package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	storage := NewFileStorage(t.TempDir())
	client, err := New(storage)
	require.NoError(t, err)
	return client
}

func TestSeedCreatesDemoData(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	orgs, err := client.From("organizations").Select().Exec(ctx)
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, "org-1", orgs[0]["id"])
	assert.Equal(t, "Demo Organization", orgs[0]["organization_name"])

	profiles, err := client.From("profiles").Select().Exec(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	emails := []string{}
	for _, p := range profiles {
		emails = append(emails, p["email"].(string))
	}
	assert.Contains(t, emails, "admin@studyhabit.com")
	assert.Contains(t, emails, "student@studyhabit.com")

	invitations, err := client.From("invitations").Select().Exec(ctx)
	require.NoError(t, err)
	assert.Empty(t, invitations)
}

func TestSeedSessions(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	sessions, err := client.From("study_sessions").Select().Exec(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 14)

	subjects := map[string]bool{"Math": true, "Science": true, "History": true, "English": true}
	for _, s := range sessions {
		assert.Equal(t, "student-1", s["user_id"])
		assert.True(t, subjects[s["subject"].(string)], "unexpected subject %v", s["subject"])

		hours := s["duration_hours"].(float64)
		assert.GreaterOrEqual(t, hours, 0.5)
		assert.LessOrEqual(t, hours, 3.5)
	}
}

func TestSeedVersionGuard(t *testing.T) {
	storage := NewFileStorage(t.TempDir())
	client, err := New(storage)
	require.NoError(t, err)
	ctx := context.Background()

	// 用户数据在版本匹配时应当保留
	_, err = client.Auth().SignUp(ctx, "kept@example.com", "secret", nil)
	require.NoError(t, err)

	client2, err := New(storage)
	require.NoError(t, err)

	profiles, err := client2.From("profiles").Select().Exec(ctx)
	require.NoError(t, err)
	assert.Len(t, profiles, 3)
}

func TestSeedVersionMismatchResets(t *testing.T) {
	storage := NewFileStorage(t.TempDir())
	client, err := New(storage)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = client.Auth().SignUp(ctx, "dropped@example.com", "secret", nil)
	require.NoError(t, err)

	// 清掉版本标记后重建客户端，所有集合整体覆盖
	require.NoError(t, ClearVersionMarker(storage))

	client2, err := New(storage)
	require.NoError(t, err)

	profiles, err := client2.From("profiles").Select().Exec(ctx)
	require.NoError(t, err)
	assert.Len(t, profiles, 2)
}
