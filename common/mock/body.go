package mock

import "github.com/favbox/asyncweb/internal/bytesconv"

// FixedBody 生成长度为 n 的数字正文 "0123456789012..."，便于定位错位的字节。
func FixedBody(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i%10) + '0'
	}
	return b
}

// ChunkedBody 以 1、2、3... 递增的块长把 body 编码为分块正文，final 为 false 时省略结束块。
func ChunkedBody(body []byte, final bool) []byte {
	var b []byte
	for size := 1; len(body) > 0; size++ {
		if size > len(body) {
			size = len(body)
		}
		b = bytesconv.AppendHexUint(b, size)
		b = append(b, "\r\n"...)
		b = append(b, body[:size]...)
		b = append(b, "\r\n"...)
		body = body[size:]
	}
	if final {
		b = append(b, "0\r\n\r\n"...)
	}
	return b
}
