package bytebufferpool

import "io"

// ByteBuffer 是池化的字节缓冲区，使用 Get 获取、Put 归还。
//
// 写入追加到 B 末尾；Fill 从读偏移处依次取出，可直接作为响应的内容源。
type ByteBuffer struct {
	B []byte

	off int // 读偏移
}

func (b *ByteBuffer) Write(p []byte) (int, error) {
	b.B = append(b.B, p...)
	return len(p), nil
}

func (b *ByteBuffer) WriteByte(c byte) error {
	b.B = append(b.B, c)
	return nil
}

func (b *ByteBuffer) WriteString(s string) (int, error) {
	b.B = append(b.B, s...)
	return len(s), nil
}

// Fill 把未读的字节复制到 dst，全部读完时返回 io.EOF。
func (b *ByteBuffer) Fill(dst []byte) (int, error) {
	n := copy(dst, b.B[b.off:])
	b.off += n
	if b.off == len(b.B) {
		return n, io.EOF
	}
	return n, nil
}

// Unread 返回尚未被 Fill 取出的字节数。
func (b *ByteBuffer) Unread() int { return len(b.B) - b.off }

// Reset 清空缓冲区与读偏移。
func (b *ByteBuffer) Reset() {
	b.B = b.B[:0]
	b.off = 0
}

// Len 返回已写入的字节数。
func (b *ByteBuffer) Len() int { return len(b.B) }

func (b *ByteBuffer) Bytes() []byte  { return b.B }
func (b *ByteBuffer) String() string { return string(b.B) }
