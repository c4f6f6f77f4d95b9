package mock

import (
	"bytes"
	"net"
	"sync"
	"time"

	"github.com/favbox/asyncweb/network"
)

var _ network.Client = (*Client)(nil)

// Addr 是模拟的网络地址。
type Addr string

func (a Addr) Network() string { return "tcp" }
func (a Addr) String() string  { return string(a) }

// Client 是脚本驱动的 network.Client，用于在单个协程内测试连接事件。
//
// 写入占用模拟的发送窗口，Ack 释放窗口并回调 OnAck。Post 投递的任务由
// RunPosted 或 Drain 执行。
type Client struct {
	window   int
	inflight int
	out      bytes.Buffer
	closed   bool
	gone     bool

	mu     sync.Mutex
	posted []func()

	events network.Events
	Local  net.Addr
	Remote net.Addr
}

// NewClient 创建发送窗口为 window 的模拟连接。
func NewClient(window int) *Client {
	if window <= 0 {
		window = network.DefaultSendWindow
	}
	return &Client{
		window: window,
		Local:  Addr("127.0.0.1:80"),
		Remote: Addr("127.0.0.1:50000"),
	}
}

// Connect 调用 onConnect 绑定事件接收者。
func (c *Client) Connect(onConnect network.OnConnect) network.Events {
	c.events = onConnect(c)
	return c.events
}

// Events 返回绑定的事件接收者。
func (c *Client) Events() network.Events { return c.events }

func (c *Client) Write(b []byte) int {
	n := len(b)
	if s := c.Space(); n > s {
		n = s
	}
	if n <= 0 {
		return 0
	}
	c.out.Write(b[:n])
	c.inflight += n
	return n
}

func (c *Client) Space() int {
	if c.closed || c.inflight >= c.window {
		return 0
	}
	return c.window - c.inflight
}

func (c *Client) CanSend() bool { return c.Space() > 0 }

func (c *Client) Close() error {
	c.closed = true
	return nil
}

func (c *Client) Post(fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gone {
		return false
	}
	c.posted = append(c.posted, fn)
	return true
}

func (c *Client) LocalAddr() net.Addr  { return c.Local }
func (c *Client) RemoteAddr() net.Addr { return c.Remote }

// Feed 依次把各片数据作为 OnData 投递。
func (c *Client) Feed(chunks ...string) {
	for _, chunk := range chunks {
		if c.gone {
			return
		}
		c.events.OnData([]byte(chunk))
	}
}

// Ack 确认全部在途字节。
func (c *Client) Ack() {
	if c.inflight == 0 || c.gone {
		return
	}
	n := c.inflight
	c.inflight = 0
	c.events.OnAck(n, time.Millisecond)
}

// Poll 投递一次轮询。
func (c *Client) Poll() {
	if !c.gone {
		c.events.OnPoll()
	}
}

// Timeout 投递空闲超时及随后的断开。
func (c *Client) Timeout() {
	if c.gone {
		return
	}
	c.events.OnTimeout()
	c.Disconnect()
}

// Fail 投递传输错误及随后的断开。
func (c *Client) Fail(err error) {
	if c.gone {
		return
	}
	c.events.OnError(err)
	c.Disconnect()
}

// Disconnect 投递断开，只生效一次。
func (c *Client) Disconnect() {
	if c.gone {
		return
	}
	c.mu.Lock()
	c.gone = true
	c.mu.Unlock()
	c.closed = true
	c.events.OnDisconnect()
}

// RunPosted 执行已投递的任务。
func (c *Client) RunPosted() int {
	c.mu.Lock()
	tasks := c.posted
	c.posted = nil
	c.mu.Unlock()
	for _, fn := range tasks {
		fn()
	}
	return len(tasks)
}

// Drain 交替执行投递任务、确认与轮询，直到连接关闭且在途字节全部确认，
// 此时投递断开。最多执行 rounds 轮，返回连接是否已断开。
func (c *Client) Drain(rounds int) bool {
	for i := 0; i < rounds && !c.gone; i++ {
		c.RunPosted()
		switch {
		case c.inflight > 0:
			c.Ack()
		case c.closed:
			c.Disconnect()
		default:
			c.Poll()
		}
	}
	return c.gone
}

// Output 返回已写出的全部字节。
func (c *Client) Output() string { return c.out.String() }

// Inflight 返回在途字节数。
func (c *Client) Inflight() int { return c.inflight }

// Closed 判断连接是否已被关闭。
func (c *Client) Closed() bool { return c.closed }

// Gone 判断是否已投递断开。
func (c *Client) Gone() bool { return c.gone }
