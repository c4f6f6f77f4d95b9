package mock

import (
	"strconv"
	"strings"
)

// SplitResponse 把原始响应拆分为头部（含结尾空行）与正文。
func SplitResponse(raw string) (head, body string) {
	i := strings.Index(raw, "\r\n\r\n")
	if i < 0 {
		return raw, ""
	}
	return raw[:i+4], raw[i+4:]
}

// StatusCode 返回状态行中的状态码，格式错误时返回 0。
func StatusCode(raw string) int {
	line, _, _ := strings.Cut(raw, "\r\n")
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return 0
	}
	code, _ := strconv.Atoi(parts[1])
	return code
}

// HeaderValue 返回头部中首个名为 name 的值，名称不区分大小写。
func HeaderValue(head, name string) string {
	for _, line := range strings.Split(head, "\r\n")[1:] {
		k, v, ok := strings.Cut(line, ":")
		if ok && strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Dechunk 解码分块正文，格式错误或缺少结束块时返回 false。
func Dechunk(body string) (string, bool) {
	var out strings.Builder
	for {
		line, rest, ok := strings.Cut(body, "\r\n")
		if !ok {
			return out.String(), false
		}
		n, err := strconv.ParseInt(line, 16, 32)
		if err != nil || n < 0 {
			return out.String(), false
		}
		if n == 0 {
			return out.String(), strings.HasPrefix(rest, "\r\n")
		}
		if int64(len(rest)) < n+2 || rest[n:n+2] != "\r\n" {
			return out.String(), false
		}
		out.WriteString(rest[:n])
		body = rest[n+2:]
	}
}
