package auth

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const (
	// DefaultNonceTTL 是服务端随机数的有效期。
	DefaultNonceTTL = 5 * time.Minute

	qopAuth = "auth"
)

// NonceStore 记录已发出的随机数及其最近一次的请求计数，用于校验计数单调递增。
type NonceStore struct {
	c *cache.Cache
}

type nonceEntry struct {
	opaque string
	nc     uint64
}

// NewNonceStore 创建随机数存储，ttl<=0 时使用 DefaultNonceTTL。
func NewNonceStore(ttl time.Duration) *NonceStore {
	if ttl <= 0 {
		ttl = DefaultNonceTTL
	}
	return &NonceStore{c: cache.New(ttl, 2*ttl)}
}

// Len 返回未过期的随机数数量。
func (s *NonceStore) Len() int {
	return s.c.ItemCount()
}

// Challenge 生成新的随机数与不透明值，返回 WWW-Authenticate 的取值。
func (s *NonceStore) Challenge(realm string) string {
	nonce, opaque := randomHex(), randomHex()
	s.c.SetDefault(nonce, &nonceEntry{opaque: opaque})

	var b strings.Builder
	b.WriteString("Digest realm=")
	b.WriteString(strconv.Quote(realm))
	b.WriteString(`, qop="auth", nonce="`)
	b.WriteString(nonce)
	b.WriteString(`", opaque="`)
	b.WriteString(opaque)
	b.WriteByte('"')
	return b.String()
}

// Check 校验 Digest 载荷。
//
// 期望的摘要为 MD5(HA1:nonce:nc:cnonce:qop:HA2)，其中 HA1=MD5(user:realm:pass)，
// HA2=MD5(method:uri)。passwordIsHash 为 true 时 pass 即 HA1。
// 摘要正确后再校验请求计数：同一随机数的 nc 必须严格递增；未知的随机数被接受并记录。
func (s *NonceStore) Check(payload, method, user, pass, realm string, passwordIsHash bool) bool {
	f := ParseDigest(payload)
	if f["username"] != user || f["qop"] != qopAuth {
		return false
	}
	if realm != "" && f["realm"] != realm {
		return false
	}
	nonce, nc, cnonce, uri, response := f["nonce"], f["nc"], f["cnonce"], f["uri"], f["response"]
	if nonce == "" || nc == "" || cnonce == "" || uri == "" || response == "" {
		return false
	}
	count, err := strconv.ParseUint(nc, 16, 64)
	if err != nil {
		return false
	}

	ha1 := pass
	if !passwordIsHash {
		ha1 = md5Hex(user + ":" + f["realm"] + ":" + pass)
	}
	ha2 := md5Hex(method + ":" + uri)
	want := md5Hex(ha1 + ":" + nonce + ":" + nc + ":" + cnonce + ":" + qopAuth + ":" + ha2)
	if !strings.EqualFold(want, response) {
		return false
	}

	if v, ok := s.c.Get(nonce); ok {
		e := v.(*nonceEntry)
		if e.opaque != "" && f["opaque"] != e.opaque {
			return false
		}
		if count <= e.nc {
			return false
		}
		e.nc = count
		return true
	}
	s.c.SetDefault(nonce, &nonceEntry{opaque: f["opaque"], nc: count})
	return true
}

// HA1 返回 MD5(user:realm:pass)，可作为预计算的 Digest 密码。
func HA1(user, realm, pass string) string {
	return md5Hex(user + ":" + realm + ":" + pass)
}

// ParseDigest 解析形如 k1="v1", k2=v2 的 Digest 载荷，引号内的逗号不作分隔。
func ParseDigest(payload string) map[string]string {
	fields := make(map[string]string, 10)
	for len(payload) > 0 {
		payload = strings.TrimLeft(payload, " \t,")
		eq := strings.IndexByte(payload, '=')
		if eq < 0 {
			break
		}
		key := strings.ToLower(strings.TrimSpace(payload[:eq]))
		payload = strings.TrimLeft(payload[eq+1:], " \t")

		var value string
		if strings.HasPrefix(payload, `"`) {
			end := strings.IndexByte(payload[1:], '"')
			if end < 0 {
				value, payload = payload[1:], ""
			} else {
				value, payload = payload[1:end+1], payload[end+2:]
			}
		} else {
			value, payload, _ = strings.Cut(payload, ",")
			value = strings.TrimSpace(value)
		}
		fields[key] = value
	}
	return fields
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func randomHex() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}
