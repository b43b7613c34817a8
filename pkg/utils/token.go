package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
)

// GenerateURLToken 生成 URL-safe 的随机 token，长度约为 4/3*n 字符
// n 为原始随机字节数，推荐 24 或 32
func GenerateURLToken(n int) (string, error) {
	if n <= 0 {
		n = 24
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	// 使用 RawURLEncoding，避免出现 '=' 填充与 '+' '/' 字符
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// 去掉易混淆字符（0/O、1/I/L）的邀请码字母表
const invitationAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateInvitationCode 生成 INV-XXXXXXXX 形式的邀请码
func GenerateInvitationCode() (string, error) {
	code := make([]byte, 8)
	max := big.NewInt(int64(len(invitationAlphabet)))
	for i := range code {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = invitationAlphabet[idx.Int64()]
	}
	return fmt.Sprintf("INV-%s", code), nil
}
