package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryEq(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	records, err := client.From("profiles").
		Select().
		Eq("email", "admin@studyhabit.com").
		Exec(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "admin-1", records[0]["id"])
}

func TestQueryRangeFilters(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	all, err := client.From("study_sessions").
		Select().
		Gte("duration_hours", 0.5).
		Lte("duration_hours", 3.5).
		Exec(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 14)

	long, err := client.From("study_sessions").
		Select().
		Gte("duration_hours", 3.0).
		Exec(ctx)
	require.NoError(t, err)
	for _, s := range long {
		assert.GreaterOrEqual(t, s["duration_hours"].(float64), 3.0)
	}
	assert.Less(t, len(long), 14)
}

func TestQueryIn(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	records, err := client.From("study_sessions").
		Select().
		In("subject", []interface{}{"Math", "Science"}).
		Exec(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, records)
	for _, s := range records {
		assert.Contains(t, []string{"Math", "Science"}, s["subject"])
	}
}

func TestQueryOrderAndLimit(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	records, err := client.From("study_sessions").
		Select().
		Order("session_date", false).
		Limit(5).
		Exec(ctx)
	require.NoError(t, err)
	require.Len(t, records, 5)

	// RFC3339 字符串按字典序即按时间序
	for i := 1; i < len(records); i++ {
		prev := records[i-1]["session_date"].(string)
		cur := records[i]["session_date"].(string)
		assert.GreaterOrEqual(t, prev, cur)
	}
}

func TestQueryLaterOrderWins(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	records, err := client.From("study_sessions").
		Select().
		Order("duration_hours", false).
		Order("session_date", true).
		Exec(ctx)
	require.NoError(t, err)
	require.Len(t, records, 14)

	for i := 1; i < len(records); i++ {
		prev := records[i-1]["session_date"].(string)
		cur := records[i]["session_date"].(string)
		assert.LessOrEqual(t, prev, cur)
	}
}

func TestQueryImmutableBuilder(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	base := client.From("study_sessions").Select().Eq("user_id", "student-1")
	math := base.Eq("subject", "Math")
	science := base.Eq("subject", "Science")

	mathRecords, err := math.Exec(ctx)
	require.NoError(t, err)
	scienceRecords, err := science.Exec(ctx)
	require.NoError(t, err)
	baseRecords, err := base.Exec(ctx)
	require.NoError(t, err)

	// 派生查询互不影响，基础查询保持不变
	assert.Len(t, baseRecords, 14)
	for _, s := range mathRecords {
		assert.Equal(t, "Math", s["subject"])
	}
	for _, s := range scienceRecords {
		assert.Equal(t, "Science", s["subject"])
	}
}

func TestQuerySingle(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	rec, err := client.From("profiles").
		Select().
		Eq("id", "student-1").
		Single(ctx)
	require.NoError(t, err)
	assert.Equal(t, "student@studyhabit.com", rec["email"])

	// 多条匹配返回第一条，不报错
	first, err := client.From("study_sessions").
		Select().
		Order("session_date", true).
		Single(ctx)
	require.NoError(t, err)
	assert.NotNil(t, first["id"])
}

func TestQuerySingleNoRows(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.From("profiles").
		Select().
		Eq("id", "missing").
		Single(ctx)
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestQueryGoChannel(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	ch := client.From("profiles").Select().Go(ctx)
	result := <-ch
	require.NoError(t, result.Err)
	assert.Len(t, result.Data, 2)
}

func TestQueryUnknownTableIsEmpty(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	records, err := client.From("achievements").Select().Exec(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestQueryCancelledContext(t *testing.T) {
	client := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.From("profiles").Select().Exec(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
