package protocol

import (
	"strings"

	"github.com/favbox/asyncweb/internal/bytesconv"
)

// URLDecodeError 是百分号解码的结果枚举。
type URLDecodeError uint8

const (
	// URLDecodeNone 表示解码成功。
	URLDecodeNone URLDecodeError = iota
	// URLDecodeNotEnoughDigits 表示 % 之后不足两个字符。
	URLDecodeNotEnoughDigits
	// URLDecodeInvalidCharacters 表示 % 之后出现非十六进制字符。
	URLDecodeInvalidCharacters
)

func (e URLDecodeError) String() string {
	switch e {
	case URLDecodeNone:
		return "none"
	case URLDecodeNotEnoughDigits:
		return "not enough digits"
	case URLDecodeInvalidCharacters:
		return "invalid characters"
	}
	return "unknown"
}

// URLDecode 解码百分号编码的字符串，'+' 解码为空格。
// 出错时返回空串和对应的错误枚举。
func URLDecode(s string) (string, URLDecodeError) {
	if strings.IndexByte(s, '%') < 0 && strings.IndexByte(s, '+') < 0 {
		return s, URLDecodeNone
	}
	dst := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '+':
			dst = append(dst, ' ')
		case '%':
			if len(s)-i < 3 {
				return "", URLDecodeNotEnoughDigits
			}
			x1, x2 := bytesconv.Unhex(s[i+1]), bytesconv.Unhex(s[i+2])
			if x1 < 0 || x2 < 0 {
				return "", URLDecodeInvalidCharacters
			}
			dst = append(dst, byte(x1<<4|x2))
			i += 2
		default:
			dst = append(dst, c)
		}
	}
	return string(dst), URLDecodeNone
}

// URLEncode 编码字符串：字母、数字及 -_.~ 原样输出，空格编码为 '+'，其余编码为 %XX。
func URLEncode(s string) string {
	return string(bytesconv.AppendQuotedArg(make([]byte, 0, len(s)), bytesconv.S2b(s)))
}
