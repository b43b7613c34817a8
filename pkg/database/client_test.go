package database

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAssignsIDAndTimestamps(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	records, err := client.From("study_sessions").
		Insert(Record{
			"user_id":        "student-1",
			"subject":        "Math",
			"duration_hours": 1.5,
			// 引擎字段不接受调用方覆盖
			"id":         "forged",
			"created_at": "1999-01-01T00:00:00Z",
		}).
		Exec(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	id := rec["id"].(string)
	assert.True(t, strings.HasPrefix(id, "study_sessions-"), "id %q", id)
	assert.NotEqual(t, "forged", id)
	assert.NotEqual(t, "1999-01-01T00:00:00Z", rec["created_at"])
	assert.Equal(t, rec["created_at"], rec["updated_at"])

	all, err := client.From("study_sessions").Select().Exec(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 15)
}

func TestUpdateByID(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	records, err := client.From("profiles").
		Update(Record{"full_name": "Renamed Student"}).
		Eq("id", "student-1").
		Exec(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Renamed Student", records[0]["full_name"])

	// 补丁不能改写主键和创建时间
	records, err = client.From("profiles").
		Update(Record{"id": "hijacked", "created_at": "1999-01-01T00:00:00Z", "full_name": "Again"}).
		Eq("id", "student-1").
		Exec(ctx)
	require.NoError(t, err)
	assert.Equal(t, "student-1", records[0]["id"])
	assert.NotEqual(t, "1999-01-01T00:00:00Z", records[0]["created_at"])
}

func TestUpdateByAlternateKey(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.From("invitations").
		Insert(Record{
			"invitation_code": "INV-TESTCODE",
			"student_name":    "Invited Student",
			"student_email":   "invited@example.com",
			"status":          "pending",
		}).
		Exec(ctx)
	require.NoError(t, err)

	records, err := client.From("invitations").
		Update(Record{"status": "accepted"}).
		Eq("invitation_code", "INV-TESTCODE").
		Exec(ctx)
	require.NoError(t, err)
	assert.Equal(t, "accepted", records[0]["status"])
}

func TestUpdateMissingTarget(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.From("profiles").
		Update(Record{"full_name": "Nobody"}).
		Eq("id", "missing").
		Exec(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateRejectsCompoundLookup(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	// 多个非 id 等值过滤无法构成唯一查找键
	_, err := client.From("profiles").
		Update(Record{"full_name": "Nobody"}).
		Eq("email", "student@studyhabit.com").
		Eq("role", "student").
		Exec(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteByID(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.From("study_sessions").
		Delete().
		Eq("id", "session-0").
		Exec(ctx)
	require.NoError(t, err)

	remaining, err := client.From("study_sessions").Select().Exec(ctx)
	require.NoError(t, err)
	assert.Len(t, remaining, 13)
}

func TestDeleteRequiresID(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.From("study_sessions").
		Delete().
		Eq("subject", "Math").
		Exec(ctx)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestDeleteMissingTarget(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.From("study_sessions").
		Delete().
		Eq("id", "missing").
		Exec(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteDoesNotCascade(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.From("profiles").
		Delete().
		Eq("id", "student-1").
		Exec(ctx)
	require.NoError(t, err)

	// 关联的学习记录原样保留
	sessions, err := client.From("study_sessions").
		Select().
		Eq("user_id", "student-1").
		Exec(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 14)
}

func TestDecodeRoundTrip(t *testing.T) {
	rec := Record{"id": "x-1", "email": "x@example.com", "full_name": "X"}

	var out struct {
		ID       string `json:"id"`
		Email    string `json:"email"`
		FullName string `json:"full_name"`
	}
	require.NoError(t, Decode(rec, &out))
	assert.Equal(t, "x-1", out.ID)

	back, err := ToRecord(out)
	require.NoError(t, err)
	assert.Equal(t, "x@example.com", back["email"])
}
