package sse

import (
	"io"
	"strconv"

	"github.com/favbox/asyncweb/common/bytebufferpool"
)

// AppendEvent 把事件按 text/event-stream 格式追加到 dst。
//
// id 与 event 中的换行被转义；数据中的 \n 拆为多个 data 行，\r 被转义。
func AppendEvent(dst []byte, e *Event) []byte {
	dst = appendField(dst, "id:", e.ID)
	dst = appendField(dst, "event:", e.Event)
	if e.Retry > 0 {
		dst = append(dst, "retry:"...)
		dst = strconv.AppendUint(dst, e.Retry, 10)
		dst = append(dst, '\n')
	}
	dst = append(dst, "data:"...)
	for _, c := range e.Data {
		switch c {
		case '\n':
			dst = append(dst, "\ndata:"...)
		case '\r':
			dst = append(dst, `\r`...)
		default:
			dst = append(dst, c)
		}
	}
	return append(dst, "\n\n"...)
}

func appendField(dst []byte, name, value string) []byte {
	if value == "" {
		return dst
	}
	dst = append(dst, name...)
	for i := 0; i < len(value); i++ {
		switch value[i] {
		case '\n':
			dst = append(dst, `\n`...)
		case '\r':
			dst = append(dst, `\r`...)
		default:
			dst = append(dst, value[i])
		}
	}
	return append(dst, '\n')
}

// Encode 把事件写入 w。
func Encode(w io.Writer, e *Event) error {
	b := bytebufferpool.Get()
	defer bytebufferpool.Put(b)
	b.B = AppendEvent(b.B, e)
	_, err := w.Write(b.B)
	return err
}
