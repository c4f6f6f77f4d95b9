package bytesconv

import (
	"net/http"
	"time"
	"unsafe"
)

const (
	upperHex = "0123456789ABCDEF" // 大写的十六进制字符
	lowerHex = "0123456789abcdef" // 小写的十六进制字符
)

// B2s 将字节切片转为字符串，且不分配内存。
//
// 注意：调用方不得在字符串存活期间修改 b。
func B2s(b []byte) string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// S2b 将字符串转为字节切片，且不分配内存。返回的切片不可修改。
func S2b(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

// AppendQuotedArg 向 dst 追加转义后的 src 参数。等效 url.QueryEscape。
func AppendQuotedArg(dst, src []byte) []byte {
	for _, c := range src {
		switch {
		case c == ' ':
			dst = append(dst, '+')
		case quotedArgShouldEscapeTable[c] != 0:
			dst = append(dst, '%', upperHex[c>>4], upperHex[c&0xf])
		default:
			dst = append(dst, c)
		}
	}
	return dst
}

// AppendUint 向 dst 追加正整数 n 并返回。
func AppendUint(dst []byte, n int) []byte {
	if n < 0 {
		panic("BUG：int 必须为正整数")
	}

	var b [20]byte
	buf := b[:]
	i := len(buf)
	var q int
	for n >= 10 {
		i--
		q = n / 10
		buf[i] = '0' + byte(n-q*10)
		n = q
	}
	i--
	buf[i] = '0' + byte(n)

	return append(dst, buf[i:]...)
}

// AppendHexUint 向 dst 追加小写十六进制的正整数 n，用于分块长度行。
func AppendHexUint(dst []byte, n int) []byte {
	if n < 0 {
		panic("BUG：int 必须为正整数")
	}
	var b [16]byte
	i := len(b) - 1
	for {
		b[i] = lowerHex[n&0xf]
		n >>= 4
		if n == 0 {
			break
		}
		i--
	}
	return append(dst, b[i:]...)
}

// HexUintLen 返回 n 的十六进制表示长度。
func HexUintLen(n int) int {
	l := 1
	for n >>= 4; n > 0; n >>= 4 {
		l++
	}
	return l
}

// Unhex 返回十六进制字符 c 对应的值，非法字符返回 -1。
func Unhex(c byte) int {
	switch {
	case '0' <= c && c <= '9':
		return int(c - '0')
	case 'a' <= c && c <= 'f':
		return int(c-'a') + 10
	case 'A' <= c && c <= 'F':
		return int(c-'A') + 10
	}
	return -1
}

// ParseUint 解析 b 中的十进制正整数。
func ParseUint(b []byte) (int, error) {
	n := len(b)
	if n == 0 {
		return -1, errEmptyInt
	}
	v := 0
	for i := 0; i < n; i++ {
		k := b[i] - '0'
		if k > 9 {
			if i == 0 {
				return -1, errUnexpectedFirstChar
			}
			return -1, errUnexpectedTrailingChar
		}
		vNew := 10*v + int(k)
		// 测试溢出
		if vNew < v {
			return -1, errTooLongInt
		}
		v = vNew
	}
	return v, nil
}

// AppendHTTPDate 向 dst 追加 HTTP 兼容时间并返回。
func AppendHTTPDate(dst []byte, date time.Time) []byte {
	return date.UTC().AppendFormat(dst, http.TimeFormat)
}

// ParseHTTPDate 解析 HTTP (RFC1123) 兼容时间。
func ParseHTTPDate(s string) (time.Time, error) {
	return time.Parse(http.TimeFormat, s)
}

// LowercaseBytes 原地将 b 转为小写。
func LowercaseBytes(b []byte) {
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
}

// 非零值表示需要转义，保留字符为字母、数字及 -_.~
var quotedArgShouldEscapeTable = func() (t [256]byte) {
	for i := 0; i < 256; i++ {
		c := byte(i)
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		case c == '-', c == '_', c == '.', c == '~':
		default:
			t[i] = 1
		}
	}
	return
}()
