package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"studyhabit-backend/pkg/logs"
)

// AuthEvent 认证状态事件
type AuthEvent string

const (
	EventSignedIn  AuthEvent = "SIGNED_IN"
	EventSignedOut AuthEvent = "SIGNED_OUT"
)

// Identity 当前会话的最小身份视图
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// AuthCallback 认证状态订阅回调
type AuthCallback func(event AuthEvent, user *Identity)

// Auth 会话状态机：SignedOut ↔ SignedIn(profile)。
// 同一时刻至多一个会话，持有已认证 Profile 的副本；
// 该 Profile 被变更时副本会被刷新。
// 显式构造并随 Client 传递，不依赖包级可变状态。
type Auth struct {
	client *Client

	mu      sync.Mutex
	current Record
	subs    map[int]AuthCallback
	nextSub int
}

func newAuth(c *Client) *Auth {
	return &Auth{client: c, subs: make(map[int]AuthCallback)}
}

// restore 启动时从持久化会话恢复状态；数据缺失或损坏一律视为 SignedOut。
func (a *Auth) restore() {
	data, ok := a.client.storage.Get(keyCurrentUser)
	if !ok {
		return
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		logs.Logger.Warn("discarding unparsable session data")
		return
	}
	a.mu.Lock()
	a.current = rec
	a.mu.Unlock()
}

func copyRecord(rec Record) Record {
	if rec == nil {
		return nil
	}
	cp := make(Record, len(rec))
	for k, v := range rec {
		cp[k] = v
	}
	return cp
}

func stringField(rec Record, key string) string {
	if rec == nil {
		return ""
	}
	s, _ := rec[key].(string)
	return s
}

func (a *Auth) identityLocked() *Identity {
	if a.current == nil {
		return nil
	}
	return &Identity{ID: stringField(a.current, "id"), Email: stringField(a.current, "email")}
}

// persistLocked 把当前会话写回存储；调用方必须持有 a.mu。
func (a *Auth) persistLocked() {
	if a.current == nil {
		if err := a.client.storage.Delete(keyCurrentUser); err != nil {
			logs.Logger.WithError(err).Warn("failed to clear persisted session")
		}
		return
	}
	data, err := json.Marshal(a.current)
	if err != nil {
		return
	}
	if err := a.client.storage.Put(keyCurrentUser, data); err != nil {
		logs.Logger.WithError(err).Warn("failed to persist session")
	}
}

// SignInWithPassword 在 Profile 集合中线性扫描 email+password 的精确匹配。
// 匹配则进入 SignedIn 并持久化会话；失败返回 ErrInvalidCredentials，
// 不透露具体哪个字段错误，会话保持原状。
func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	profiles := readCollection(a.client.storage, keyProfiles)
	for _, p := range profiles {
		if stringField(p, "email") == email && stringField(p, "password") == password {
			user := copyRecord(p)

			a.mu.Lock()
			a.current = user
			a.persistLocked()
			ident := a.identityLocked()
			a.mu.Unlock()

			a.notify(EventSignedIn, ident)
			return copyRecord(user), nil
		}
	}

	return nil, ErrInvalidCredentials
}

// SignUp 创建新 Profile。邮箱已存在返回 ErrAlreadyExists；
// 角色缺省为 student。注册不会自动登录，需另行调用 SignInWithPassword。
func (a *Auth) SignUp(ctx context.Context, email, password string, fields Record) (Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.client.mu.Lock()
	defer a.client.mu.Unlock()

	profiles := readCollection(a.client.storage, keyProfiles)
	for _, p := range profiles {
		if stringField(p, "email") == email {
			return nil, ErrAlreadyExists
		}
	}

	fullName := stringField(fields, "full_name")
	if fullName == "" {
		fullName = strings.SplitN(email, "@", 2)[0]
	}
	role := stringField(fields, "role")
	if role == "" {
		role = "student"
	}

	now := nowRFC3339()
	user := Record{
		"id":         fmt.Sprintf("user-%d", time.Now().UnixMilli()),
		"email":      email,
		"password":   password,
		"full_name":  fullName,
		"role":       role,
		"avatar_url": nil,
		"created_at": now,
		"updated_at": now,
	}
	if orgID, ok := fields["organization_id"]; ok {
		user["organization_id"] = orgID
	} else {
		user["organization_id"] = nil
	}

	profiles = append(profiles, user)
	if err := writeCollection(a.client.storage, keyProfiles, profiles); err != nil {
		return nil, err
	}

	return copyRecord(user), nil
}

// SignOut 清除会话及其持久化副本。幂等：重复调用保持 SignedOut，不报错。
func (a *Auth) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.Lock()
	wasSignedIn := a.current != nil
	a.current = nil
	a.persistLocked()
	a.mu.Unlock()

	if wasSignedIn {
		a.notify(EventSignedOut, nil)
	}
	return nil
}

// GetUser 返回当前会话的最小身份；无会话返回 nil，永不报错。
func (a *Auth) GetUser() *Identity {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.identityLocked()
}

// CurrentProfile 返回会话持有的完整 Profile 副本（无会话返回 nil）
func (a *Auth) CurrentProfile() Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	return copyRecord(a.current)
}

// UpdateUser 更新当前登录用户的密码。无活跃会话返回 ErrNotAuthenticated。
// 走常规变更管道，缓存会话随之刷新。
func (a *Auth) UpdateUser(ctx context.Context, password string) (Record, error) {
	a.mu.Lock()
	cur := a.current
	a.mu.Unlock()

	if cur == nil {
		return nil, ErrNotAuthenticated
	}
	if password == "" {
		return copyRecord(cur), nil
	}

	records, err := a.client.From("profiles").
		Update(Record{"password": password}).
		Eq("id", cur["id"]).
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	return records[0], nil
}

// ResetPasswordForEmail 校验邮箱存在（否则 ErrNotFound）。
// 邮件投递委托给外部协作者，这里只做校验。
func (a *Auth) ResetPasswordForEmail(ctx context.Context, email string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	profiles := readCollection(a.client.storage, keyProfiles)
	for _, p := range profiles {
		if stringField(p, "email") == email {
			logs.Logger.WithField("email", email).Info("password reset requested")
			return nil
		}
	}
	return ErrNotFound
}

// OnAuthStateChange 注册状态订阅。当前状态会在下一个调度点
// 恰好重放一次给新订阅者；之后仅显式的登录/登出再触发通知。
// 返回取消订阅句柄。
func (a *Auth) OnAuthStateChange(cb AuthCallback) (unsubscribe func()) {
	a.mu.Lock()
	id := a.nextSub
	a.nextSub++
	a.subs[id] = cb
	ident := a.identityLocked()
	a.mu.Unlock()

	go func() {
		if ident != nil {
			cb(EventSignedIn, ident)
		} else {
			cb(EventSignedOut, nil)
		}
	}()

	return func() {
		a.mu.Lock()
		delete(a.subs, id)
		a.mu.Unlock()
	}
}

// refreshIfCurrent 变更引擎回调：被更新的 Profile 恰是当前会话时刷新副本
func (a *Auth) refreshIfCurrent(rec Record) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == nil || !valuesEqual(a.current["id"], rec["id"]) {
		return
	}
	a.current = copyRecord(rec)
	a.persistLocked()
}

func (a *Auth) notify(event AuthEvent, ident *Identity) {
	a.mu.Lock()
	cbs := make([]AuthCallback, 0, len(a.subs))
	for _, cb := range a.subs {
		cbs = append(cbs, cb)
	}
	a.mu.Unlock()

	for _, cb := range cbs {
		go cb(event, ident)
	}
}
