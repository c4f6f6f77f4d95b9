package network

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/favbox/asyncweb/common/hlog"
)

const defaultQueueSize = 1024

// LoopOptions 是事件循环的选项。
type LoopOptions struct {
	// QueueSize 是待执行任务的队列长度。
	QueueSize int
	// PollInterval 是轮询间隔，0 表示不轮询。
	PollInterval time.Duration
	// IdleTimeout 是连接空闲超时，0 表示不超时。
	IdleTimeout time.Duration
}

// Loop 是单协程事件循环，所有连接事件都在其上串行执行。
type Loop struct {
	opts     LoopOptions
	tasks    chan func()
	stop     chan struct{}
	stopOnce sync.Once
	running  int32

	// 仅在事件循环上访问
	sessions map[*Session]struct{}
}

// NewLoop 创建事件循环。
func NewLoop(opts LoopOptions) *Loop {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	return &Loop{
		opts:     opts,
		tasks:    make(chan func(), opts.QueueSize),
		stop:     make(chan struct{}),
		sessions: make(map[*Session]struct{}),
	}
}

// Post 投递任务，队列满时阻塞，事件循环停止后返回 false。
// 不得在事件循环上调用，否则队列满时会死锁。
func (l *Loop) Post(fn func()) bool {
	select {
	case <-l.stop:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	case <-l.stop:
		return false
	}
}

// TryPost 投递任务，不阻塞。队列已满或事件循环已停止时返回 false。
// 可在事件循环上调用。
func (l *Loop) TryPost(fn func()) bool {
	select {
	case <-l.stop:
		return false
	default:
	}
	select {
	case l.tasks <- fn:
		return true
	default:
		return false
	}
}

// Run 执行事件循环直到 ctx 结束或 Stop 被调用。退出时断开所有连接。
func (l *Loop) Run(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&l.running, 0, 1) {
		return nil
	}
	defer l.closeAll()

	var tick <-chan time.Time
	if l.opts.PollInterval > 0 {
		ticker := time.NewTicker(l.opts.PollInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case fn := <-l.tasks:
			l.exec(fn)
		case now := <-tick:
			l.poll(now)
		case <-ctx.Done():
			l.Stop()
			return nil
		case <-l.stop:
			return nil
		}
	}
}

// Stop 停止事件循环，可重复调用。
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Shutdown 等待所有连接断开或 ctx 结束，然后停止事件循环。
func (l *Loop) Shutdown(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		count := make(chan int, 1)
		if !l.Post(func() { count <- len(l.sessions) }) {
			return nil
		}
		select {
		case n := <-count:
			if n == 0 {
				l.Stop()
				return nil
			}
		case <-l.stop:
			return nil
		}
		select {
		case <-ctx.Done():
			l.Stop()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Done 在事件循环停止后关闭。
func (l *Loop) Done() <-chan struct{} {
	return l.stop
}

// Sessions 返回当前连接数，只能在事件循环上调用。
func (l *Loop) Sessions() int {
	return len(l.sessions)
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			hlog.SystemLogger().Errorf("事件循环任务崩溃：%v\n%s", r, debug.Stack())
		}
	}()
	fn()
}

func (l *Loop) poll(now time.Time) {
	for s := range l.sessions {
		s := s
		l.exec(func() {
			if l.opts.IdleTimeout > 0 && now.Sub(s.lastActive) > l.opts.IdleTimeout {
				s.timeout()
				return
			}
			s.events.OnPoll()
		})
	}
}

func (l *Loop) closeAll() {
	// 先执行已入队的任务，之后的投递都会失败
	for {
		select {
		case fn := <-l.tasks:
			l.exec(fn)
			continue
		default:
		}
		break
	}
	for s := range l.sessions {
		l.exec(func() { s.teardown() })
	}
}
