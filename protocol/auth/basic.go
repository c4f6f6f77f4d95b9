// Package auth 实现 Basic 与 Digest 认证的校验与质询。
package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"strconv"
)

// BasicToken 返回 base64(user:pass)，即 Basic 认证的载荷。
func BasicToken(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}

// CheckBasic 校验 Basic 载荷。passwordIsHash 为 true 时 pass 即预先计算的 BasicToken。
func CheckBasic(payload, user, pass string, passwordIsHash bool) bool {
	want := pass
	if !passwordIsHash {
		want = BasicToken(user, pass)
	}
	return payload != "" && subtle.ConstantTimeCompare([]byte(payload), []byte(want)) == 1
}

// BasicChallenge 返回 WWW-Authenticate 的取值。
func BasicChallenge(realm string) string {
	return "Basic realm=" + strconv.Quote(realm)
}
