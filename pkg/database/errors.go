package database

import "errors"

// 错误分类：所有操作以返回值传播错误，不 panic。
var (
	// ErrNotFound 更新/删除目标不存在
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists 注册邮箱已存在
	ErrAlreadyExists = errors.New("user already exists")

	// ErrInvalidCredentials 登录邮箱或密码错误（不区分哪个字段错）
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrNotAuthenticated 无活跃会话时修改身份
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrNoRows Single() 命中零行。与 ErrNotFound 区分开，
	// 对应 PostgREST 的单行错误码。
	ErrNoRows = errors.New("no rows found")
)

// NoRowsCode is the marker code carried by zero-match single-row fetches,
// mirroring the hosted client's PGRST116.
const NoRowsCode = "PGRST116"
