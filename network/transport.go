package network

import (
	"context"
	"net"
	"time"
)

// Transporter 表示网络传输层接口。
type Transporter interface {
	// ListenAndServe 监听并准备接收连接。
	ListenAndServe(OnConnect) error

	// Close 立即关闭传输器。
	Close() error

	// Shutdown 平滑关闭传输器。
	Shutdown(ctx context.Context) error
}

// OnConnect 在连接建立时于事件循环上调用，返回该连接的事件接收者。
type OnConnect func(c Client) Events

// Client 表示一条客户端连接。除 Post 与 Close 外，其余方法只能在事件循环上调用。
type Client interface {
	// Write 写入 b，返回被接受的字节数，不超过 Space。
	Write(b []byte) int

	// Space 返回发送窗口的剩余字节数。
	Space() int

	// CanSend 判断当前是否可写。
	CanSend() bool

	// Close 关闭连接，已接受的字节会先被发送。
	Close() error

	// Post 把 fn 投递到事件循环执行，不阻塞，可在事件循环上调用。
	// 队列已满或事件循环已停止时返回 false。
	Post(fn func()) bool

	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// Events 是连接事件的接收者，所有方法都在事件循环上调用。
type Events interface {
	// OnData 收到数据，data 仅在调用期间有效。
	OnData(data []byte)

	// OnAck 已有 n 个字节交付内核，elapsed 为写出耗时。
	OnAck(n int, elapsed time.Duration)

	// OnPoll 周期性轮询。
	OnPoll()

	// OnError 传输出错，之后会收到 OnDisconnect。
	OnError(err error)

	// OnTimeout 连接空闲超时，之后会收到 OnDisconnect。
	OnTimeout()

	// OnDisconnect 连接断开，每条连接恰好一次。
	OnDisconnect()
}
