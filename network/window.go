package network

// DefaultSendWindow 是默认的发送窗口大小，约为 4 个 TCP 报文段。
const DefaultSendWindow = 5744

// Window 是模拟的发送窗口：写入占用窗口，确认释放窗口。
type Window struct {
	size     int
	inflight int
}

// NewWindow 创建大小为 size 的发送窗口。
func NewWindow(size int) Window {
	if size <= 0 {
		size = DefaultSendWindow
	}
	return Window{size: size}
}

// Space 返回剩余的字节数。
func (w *Window) Space() int {
	if s := w.size - w.inflight; s > 0 {
		return s
	}
	return 0
}

// Reserve 占用 n 个字节。
func (w *Window) Reserve(n int) { w.inflight += n }

// Release 释放 n 个字节。
func (w *Window) Release(n int) {
	w.inflight -= n
	if w.inflight < 0 {
		w.inflight = 0
	}
}

// Inflight 返回已写入未确认的字节数。
func (w *Window) Inflight() int { return w.inflight }

// Size 返回窗口大小。
func (w *Window) Size() int { return w.size }
