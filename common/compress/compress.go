// Package compress 提供响应正文的 gzip 与 brotli 压缩。
package compress

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/favbox/asyncweb/common/bytebufferpool"
)

// CompressDefaultCompression 默认压缩率
const CompressDefaultCompression = 6

// Encoding 是内容编码。
type Encoding string

const (
	EncodingGzip   Encoding = "gzip"
	EncodingBrotli Encoding = "br"
)

var (
	gzipReaderPool sync.Pool
	gzipWriterPool sync.Pool
	brWriterPool   sync.Pool
)

// Negotiate 根据 Accept-Encoding 选择编码，优先 brotli，忽略 q=0 的编码。
func Negotiate(acceptEncoding string) (Encoding, bool) {
	var gz bool
	for _, part := range strings.Split(acceptEncoding, ",") {
		name, params, _ := strings.Cut(part, ";")
		if q, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			if v, err := strconv.ParseFloat(q, 64); err == nil && v == 0 {
				continue
			}
		}
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "br":
			return EncodingBrotli, true
		case "gzip":
			gz = true
		}
	}
	if gz {
		return EncodingGzip, true
	}
	return "", false
}

// AppendBytes 以 enc 压缩 src 并附加到 dst。
func AppendBytes(dst, src []byte, enc Encoding) ([]byte, error) {
	switch enc {
	case EncodingGzip:
		return AppendGzipBytes(dst, src), nil
	case EncodingBrotli:
		return AppendBrotliBytes(dst, src), nil
	}
	return dst, fmt.Errorf("不支持的内容编码 %q", enc)
}

// AppendGzipBytes 压缩 src 并附加到 dst，然后返回。
func AppendGzipBytes(dst, src []byte) []byte {
	return AppendGzipBytesLevel(dst, src, CompressDefaultCompression)
}

// AppendGzipBytesLevel 附加压缩后的 src 到 dst 并返回（使用指定的压缩级别）。
func AppendGzipBytesLevel(dst, src []byte, level int) []byte {
	w := &byteSliceWriter{dst}
	_, _ = WriteGzipLevel(w, src, level)
	return w.b
}

// WriteGzipLevel 压缩 p 并写入 w（使用指定压缩级别），返回写入 w 的压缩量。
func WriteGzipLevel(w io.Writer, p []byte, level int) (int, error) {
	zw := acquireGzipWriter(w, level)
	n, err := zw.Write(p)
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	releaseGzipWriter(zw, level)
	return n, err
}

// AppendGunzipBytes 解压 src 到 dst 并返回。
func AppendGunzipBytes(dst, src []byte) ([]byte, error) {
	w := &byteSliceWriter{dst}
	_, err := WriteGunzip(w, src)
	return w.b, err
}

// WriteGunzip 解压 p 并写入 w，返回写入 w 的解压量。
func WriteGunzip(w io.Writer, p []byte) (int, error) {
	r := &byteSliceReader{p}
	zr, err := acquireGzipReader(r)
	if err != nil {
		return 0, err
	}
	n, err := copyZeroAlloc(w, zr)
	gzipReaderPool.Put(zr)
	nn := int(n)
	if int64(nn) != n {
		return 0, fmt.Errorf("解压数量过大：%d", n)
	}
	return nn, err
}

// AppendBrotliBytes 以 brotli 压缩 src 并附加到 dst。
func AppendBrotliBytes(dst, src []byte) []byte {
	w := &byteSliceWriter{dst}
	bw := acquireBrotliWriter(w)
	_, _ = bw.Write(src)
	_ = bw.Close()
	brWriterPool.Put(bw)
	return w.b
}

// AppendUnbrotliBytes 解压 brotli 数据 src 并附加到 dst。
func AppendUnbrotliBytes(dst, src []byte) ([]byte, error) {
	w := &byteSliceWriter{dst}
	_, err := copyZeroAlloc(w, brotli.NewReader(bytes.NewReader(src)))
	return w.b, err
}

func acquireGzipReader(r io.Reader) (*gzip.Reader, error) {
	v := gzipReaderPool.Get()
	if v == nil {
		return gzip.NewReader(r)
	}
	zr := v.(*gzip.Reader)
	if err := zr.Reset(r); err != nil {
		return nil, err
	}
	return zr, nil
}

type pooledGzipWriter struct {
	*gzip.Writer
	level int
}

func acquireGzipWriter(w io.Writer, level int) *gzip.Writer {
	if v := gzipWriterPool.Get(); v != nil {
		if pw := v.(*pooledGzipWriter); pw.level == level {
			pw.Reset(w)
			return pw.Writer
		}
	}
	zw, err := gzip.NewWriterLevel(w, level)
	if err != nil {
		zw, _ = gzip.NewWriterLevel(w, CompressDefaultCompression)
	}
	return zw
}

func releaseGzipWriter(zw *gzip.Writer, level int) {
	gzipWriterPool.Put(&pooledGzipWriter{Writer: zw, level: level})
}

func acquireBrotliWriter(w io.Writer) *brotli.Writer {
	if v := brWriterPool.Get(); v != nil {
		bw := v.(*brotli.Writer)
		bw.Reset(w)
		return bw
	}
	return brotli.NewWriterLevel(w, brotli.DefaultCompression)
}

func copyZeroAlloc(w io.Writer, r io.Reader) (int64, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if cap(buf.B) < 4096 {
		buf.B = make([]byte, 4096)
	}
	return io.CopyBuffer(w, r, buf.B[:cap(buf.B)])
}

type byteSliceWriter struct {
	b []byte
}

func (w *byteSliceWriter) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

type byteSliceReader struct {
	b []byte
}

func (r *byteSliceReader) Read(p []byte) (int, error) {
	if len(r.b) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.b)
	r.b = r.b[n:]
	return n, nil
}

func (r *byteSliceReader) ReadByte() (byte, error) {
	if len(r.b) == 0 {
		return 0, io.EOF
	}
	n := r.b[0]
	r.b = r.b[1:]
	return n, nil
}
