package basic_auth

import (
	"github.com/favbox/asyncweb/app"
	"github.com/favbox/asyncweb/protocol/auth"
)

// Accounts 用于构建用户名:密码映射。
type Accounts map[string]string

// 用于构建 Basic 载荷:用户名的反向映射。
type pairs map[string]string

func (p pairs) findValue(needle string) (v string, ok bool) {
	v, ok = p[needle]
	return
}

func constructPairs(accounts Accounts) pairs {
	p := make(pairs, len(accounts))
	for user, password := range accounts {
		p[auth.BasicToken(user, password)] = user
	}
	return p
}

// BasicAuthForRealm 返回 Basic 认证中间件。
// accounts 的 key 是用户名，value 是密码；realm 为空时使用服务端的默认域。
// 认证通过后用户名以 userKey 为键保存在请求中，失败时应答 401 质询。
func BasicAuthForRealm(accounts Accounts, realm, userKey string) app.Middleware {
	p := constructPairs(accounts)
	return func(next app.RequestFunc) app.RequestFunc {
		return func(r *app.Request) {
			var user string
			found := false
			if !r.IsDigest() {
				user, found = p.findValue(r.Authorization())
			}
			if !found {
				r.RequestAuthentication(realm, false)
				return
			}
			r.Set(userKey, user)
			next(r)
		}
	}
}

// BasicAuth 构造 Basic 认证中间件，用户名保存在 "user" 键下。
func BasicAuth(accounts Accounts) app.Middleware {
	return BasicAuthForRealm(accounts, "Authorization Required", "user")
}
