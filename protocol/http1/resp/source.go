package resp

import (
	"io"

	"github.com/favbox/asyncweb/common/errors"
)

// TryAgain 是填充回调的返回值，表示暂无数据，稍后在轮询时重试。
const TryAgain = -1

// ErrTryAgain 表示内容源暂无数据。
var ErrTryAgain error = errors.NewPublic("暂无数据")

// Source 是响应正文的内容源。
//
// Fill 向 dst 写入至多 len(dst) 字节。返回 io.EOF 表示已结束，此时 n 可以大于 0；
// 返回 ErrTryAgain 或 (0, nil) 表示暂无数据。
type Source interface {
	Fill(dst []byte) (n int, err error)
}

// Sizer 是可预知长度的内容源。
type Sizer interface {
	Len() int
}

// Filler 是用户的填充回调，index 为已产出的字节数。
// 返回写入的字节数；0 表示结束，TryAgain 表示暂无数据，其他负值表示失败。
type Filler func(buf []byte, index int) int

type fillerSource struct {
	fn    Filler
	index int
}

func (s *fillerSource) Fill(dst []byte) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	n := s.fn(dst, s.index)
	switch {
	case n == TryAgain:
		return 0, ErrTryAgain
	case n < 0:
		return 0, errors.Newf(errors.ErrorTypePrivate, nil, "填充回调返回 %d", n)
	case n == 0:
		return 0, io.EOF
	case n > len(dst):
		return 0, errors.Newf(errors.ErrorTypePrivate, nil, "填充回调返回 %d 超过缓冲区 %d", n, len(dst))
	}
	s.index += n
	return n, nil
}

// bufferSource 是内存中的内容源。
type bufferSource struct {
	b   []byte
	off int
}

func (s *bufferSource) Fill(dst []byte) (int, error) {
	n := copy(dst, s.b[s.off:])
	s.off += n
	if s.off == len(s.b) {
		return n, io.EOF
	}
	return n, nil
}

func (s *bufferSource) Len() int { return len(s.b) }

// readerSource 包装任意 io.Reader。
type readerSource struct {
	r io.Reader
}

func (s *readerSource) Fill(dst []byte) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	n, err := s.r.Read(dst)
	if err == io.EOF {
		return n, io.EOF
	}
	if err != nil {
		return n, errors.New(err, errors.ErrorTypePrivate, "读取内容源失败")
	}
	return n, nil
}

func (s *readerSource) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
