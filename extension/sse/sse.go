package sse

import (
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/favbox/asyncweb/app"
	"github.com/favbox/asyncweb/common/hlog"
	"github.com/favbox/asyncweb/protocol"
	"github.com/favbox/asyncweb/protocol/consts"
	"github.com/favbox/asyncweb/protocol/http1/resp"
)

const (
	ContentType = "text/event-stream"
	noCache     = "no-cache"

	// DefaultMaxQueued 是每个客户端默认可排队的事件数。
	DefaultMaxQueued = 32
)

// Event 是一条服务端事件。
type Event struct {
	Event string
	ID    string
	Retry uint64
	Data  []byte
}

// Source 是挂载在单个 URL 上的 EventSource 处理器，向全部已连接的客户端广播事件。
//
// Send 与 Close 可在任意协程调用，写出在连接所属的事件循环中进行。
type Source struct {
	app.HandlerBase

	url       string
	maxQueued int
	retry     uint64
	onConnect func(c *Client)

	mu      sync.Mutex
	clients map[*Client]struct{}
}

// New 创建挂载在 url 上的事件源。
func New(url string) *Source {
	return &Source{
		url:       url,
		maxQueued: DefaultMaxQueued,
		clients:   make(map[*Client]struct{}),
	}
}

// SetMaxQueued 设置每个客户端可排队的事件数，超出的事件被丢弃。
func (s *Source) SetMaxQueued(n int) *Source {
	if n > 0 {
		s.maxQueued = n
	}
	return s
}

// SetRetry 设置连接建立时下发的重连间隔（毫秒），0 表示不下发。
func (s *Source) SetRetry(ms uint64) *Source {
	s.retry = ms
	return s
}

// OnConnect 设置客户端接入后的回调，在事件循环中调用。
func (s *Source) OnConnect(fn func(c *Client)) *Source {
	s.onConnect = fn
	return s
}

func (s *Source) CanHandle(r *app.Request) bool {
	if r.Method() != consts.MethodGet || r.URL() != s.url {
		return false
	}
	if !r.IsExpectedConnType(protocol.ConnTypeEventSource) {
		return false
	}
	r.AddInterestingHeader(consts.HeaderLastEventID)
	return true
}

func (s *Source) HandleRequest(r *app.Request) {
	c := &Client{src: s, req: r}
	if h := r.Header(consts.HeaderLastEventID); h != nil {
		c.lastID = h.Value
	}

	res := resp.NewChunked(consts.StatusOK, ContentType, c.fill)
	res.AddHeader(consts.HeaderCacheControl, noCache)
	r.SetOnDisconnect(func() { s.remove(c) })

	if s.retry > 0 {
		c.queue = append(c.queue, []byte("retry:"+strconv.FormatUint(s.retry, 10)+"\n\n"))
	}
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()

	r.Send(res)
	if s.onConnect != nil {
		s.onConnect(c)
	}
}

// Send 向全部客户端广播事件，返回接受该事件的客户端数。
func (s *Source) Send(e *Event) int {
	msg := encode(e)
	n := 0
	for _, c := range s.snapshot() {
		if c.enqueue(msg) {
			n++
		}
	}
	return n
}

// Count 返回已连接的客户端数。
func (s *Source) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// AvgQueued 返回客户端平均排队的事件数。
func (s *Source) AvgQueued() float64 {
	clients := s.snapshot()
	if len(clients) == 0 {
		return 0
	}
	total := 0
	for _, c := range clients {
		total += c.Queued()
	}
	return float64(total) / float64(len(clients))
}

// Close 结束全部客户端的事件流，引擎关闭时调用。
func (s *Source) Close() error {
	for _, c := range s.snapshot() {
		c.Close()
	}
	return nil
}

func (s *Source) snapshot() []*Client {
	s.mu.Lock()
	defer s.mu.Unlock()
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	return clients
}

func (s *Source) remove(c *Client) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.mu.Lock()
	c.closed = true
	c.queue = nil
	c.mu.Unlock()
}

// Client 是一个已连接的事件流客户端。
type Client struct {
	src    *Source
	req    *app.Request
	lastID string

	mu      sync.Mutex
	queue   [][]byte
	current []byte
	closed  bool
	dropped int
	kicking int32
}

// LastEventID 返回客户端重连时携带的 Last-Event-ID。
func (c *Client) LastEventID() string { return c.lastID }

// Request 返回建立事件流的请求。
func (c *Client) Request() *app.Request { return c.req }

// Send 向该客户端发送事件，队列已满或已关闭时返回 false。
func (c *Client) Send(e *Event) bool {
	return c.enqueue(encode(e))
}

// Queued 返回排队中的事件数。
func (c *Client) Queued() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queue)
}

// Dropped 返回因队列已满被丢弃的事件数。
func (c *Client) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Close 在排队事件发送完后结束事件流。
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()
	c.kick()
}

func (c *Client) enqueue(msg []byte) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	if len(c.queue) >= c.src.maxQueued {
		c.dropped++
		c.mu.Unlock()
		hlog.SystemLogger().Warnf("事件队列已满，丢弃事件：远端=%s", c.req.Client().RemoteAddr())
		return false
	}
	c.queue = append(c.queue, msg)
	c.mu.Unlock()
	c.kick()
	return true
}

// kick 在事件循环中推进响应，不必等到下一次轮询。同一时刻至多排队一次。
func (c *Client) kick() {
	if !atomic.CompareAndSwapInt32(&c.kicking, 0, 1) {
		return
	}
	r := c.req
	ok := r.Client().Post(func() {
		atomic.StoreInt32(&c.kicking, 0)
		r.OnPoll()
	})
	if !ok {
		// 队列已满，交给下一次轮询
		atomic.StoreInt32(&c.kicking, 0)
	}
}

// fill 是分块响应的填充回调，运行在事件循环中。
func (c *Client) fill(buf []byte, _ int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for n < len(buf) {
		if len(c.current) == 0 {
			if len(c.queue) == 0 {
				break
			}
			c.current, c.queue = c.queue[0], c.queue[1:]
		}
		k := copy(buf[n:], c.current)
		c.current = c.current[k:]
		n += k
	}
	switch {
	case n > 0:
		return n
	case c.closed:
		return 0
	default:
		return resp.TryAgain
	}
}

func encode(e *Event) []byte {
	return AppendEvent(nil, e)
}
