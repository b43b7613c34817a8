package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignInWithPassword(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	rec, err := client.Auth().SignInWithPassword(ctx, "student@studyhabit.com", "student123")
	require.NoError(t, err)
	assert.Equal(t, "student-1", rec["id"])

	user := client.Auth().GetUser()
	require.NotNil(t, user)
	assert.Equal(t, "student-1", user.ID)
	assert.Equal(t, "student@studyhabit.com", user.Email)
}

func TestSignInInvalidCredentials(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	// 密码错误和邮箱不存在返回同一个错误
	_, err := client.Auth().SignInWithPassword(ctx, "student@studyhabit.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = client.Auth().SignInWithPassword(ctx, "nobody@studyhabit.com", "student123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// 失败的登录不改变会话状态
	assert.Nil(t, client.Auth().GetUser())
}

func TestSignUp(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	rec, err := client.Auth().SignUp(ctx, "new@example.com", "secret", Record{
		"full_name": "New Person",
		"role":      "student",
	})
	require.NoError(t, err)
	assert.Equal(t, "New Person", rec["full_name"])
	assert.Equal(t, "student", rec["role"])

	// 注册不会自动登录
	assert.Nil(t, client.Auth().GetUser())

	// 随后可用新凭据登录
	_, err = client.Auth().SignInWithPassword(ctx, "new@example.com", "secret")
	require.NoError(t, err)
}

func TestSignUpDefaults(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	rec, err := client.Auth().SignUp(ctx, "plain@example.com", "secret", nil)
	require.NoError(t, err)
	assert.Equal(t, "plain", rec["full_name"])
	assert.Equal(t, "student", rec["role"])
	assert.Nil(t, rec["organization_id"])
}

func TestSignUpDuplicateEmail(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.Auth().SignUp(ctx, "student@studyhabit.com", "secret", nil)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestSignOutIdempotent(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.Auth().SignInWithPassword(ctx, "admin@studyhabit.com", "admin123")
	require.NoError(t, err)

	require.NoError(t, client.Auth().SignOut(ctx))
	assert.Nil(t, client.Auth().GetUser())

	// 已登出状态下再次登出不报错
	require.NoError(t, client.Auth().SignOut(ctx))
}

func TestSessionRestore(t *testing.T) {
	storage := NewFileStorage(t.TempDir())
	client, err := New(storage)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = client.Auth().SignInWithPassword(ctx, "admin@studyhabit.com", "admin123")
	require.NoError(t, err)

	// 新客户端从持久化会话恢复
	client2, err := New(storage)
	require.NoError(t, err)
	user := client2.Auth().GetUser()
	require.NotNil(t, user)
	assert.Equal(t, "admin-1", user.ID)
}

func TestUpdateUserRequiresSession(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.Auth().UpdateUser(ctx, "newpass")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestUpdateUserChangesPassword(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.Auth().SignInWithPassword(ctx, "student@studyhabit.com", "student123")
	require.NoError(t, err)

	_, err = client.Auth().UpdateUser(ctx, "newpass")
	require.NoError(t, err)

	require.NoError(t, client.Auth().SignOut(ctx))

	_, err = client.Auth().SignInWithPassword(ctx, "student@studyhabit.com", "student123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = client.Auth().SignInWithPassword(ctx, "student@studyhabit.com", "newpass")
	require.NoError(t, err)
}

func TestProfileUpdateRefreshesSession(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.Auth().SignInWithPassword(ctx, "student@studyhabit.com", "student123")
	require.NoError(t, err)

	_, err = client.From("profiles").
		Update(Record{"full_name": "Fresh Name"}).
		Eq("id", "student-1").
		Exec(ctx)
	require.NoError(t, err)

	profile := client.Auth().CurrentProfile()
	require.NotNil(t, profile)
	assert.Equal(t, "Fresh Name", profile["full_name"])
}

func TestResetPasswordForEmail(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Auth().ResetPasswordForEmail(ctx, "student@studyhabit.com"))

	err := client.Auth().ResetPasswordForEmail(ctx, "nobody@studyhabit.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

type authEvent struct {
	event AuthEvent
	user  *Identity
}

func collectAuthEvents(t *testing.T, a *Auth) (<-chan authEvent, func()) {
	t.Helper()
	ch := make(chan authEvent, 16)
	unsubscribe := a.OnAuthStateChange(func(event AuthEvent, user *Identity) {
		ch <- authEvent{event: event, user: user}
	})
	return ch, unsubscribe
}

func waitEvent(t *testing.T, ch <-chan authEvent) authEvent {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for auth event")
		return authEvent{}
	}
}

func TestOnAuthStateChangeReplay(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	// 未登录状态重放 SIGNED_OUT
	ch, unsub := collectAuthEvents(t, client.Auth())
	e := waitEvent(t, ch)
	assert.Equal(t, EventSignedOut, e.event)
	assert.Nil(t, e.user)
	unsub()

	_, err := client.Auth().SignInWithPassword(ctx, "admin@studyhabit.com", "admin123")
	require.NoError(t, err)

	// 已登录状态重放 SIGNED_IN
	ch2, unsub2 := collectAuthEvents(t, client.Auth())
	defer unsub2()
	e = waitEvent(t, ch2)
	assert.Equal(t, EventSignedIn, e.event)
	require.NotNil(t, e.user)
	assert.Equal(t, "admin-1", e.user.ID)
}

func TestOnAuthStateChangeNotifies(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	ch, unsub := collectAuthEvents(t, client.Auth())
	defer unsub()

	// 消费初始重放
	e := waitEvent(t, ch)
	require.Equal(t, EventSignedOut, e.event)

	_, err := client.Auth().SignInWithPassword(ctx, "student@studyhabit.com", "student123")
	require.NoError(t, err)
	e = waitEvent(t, ch)
	assert.Equal(t, EventSignedIn, e.event)
	require.NotNil(t, e.user)
	assert.Equal(t, "student-1", e.user.ID)

	require.NoError(t, client.Auth().SignOut(ctx))
	e = waitEvent(t, ch)
	assert.Equal(t, EventSignedOut, e.event)
	assert.Nil(t, e.user)
}

func TestOnAuthStateChangeUnsubscribe(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	ch, unsub := collectAuthEvents(t, client.Auth())
	waitEvent(t, ch) // 初始重放

	unsub()

	_, err := client.Auth().SignInWithPassword(ctx, "admin@studyhabit.com", "admin123")
	require.NoError(t, err)

	select {
	case e := <-ch:
		t.Fatalf("received event after unsubscribe: %v", e.event)
	case <-time.After(100 * time.Millisecond):
	}
}
