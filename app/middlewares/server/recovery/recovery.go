package recovery

import (
	"bytes"
	"fmt"
	"os"
	"runtime"

	"github.com/favbox/asyncweb/app"
)

var (
	dunno     = []byte("???")
	slash     = []byte("/")
	dot       = []byte(".")
	centerDot = []byte("·")
)

// Recovery 返回一个从请求回调的 panic 中恢复的中间件。
// 回调在事件循环上运行，未恢复的 panic 会终止整个服务端。
// 默认打印错误与堆栈并应答 500，可通过 Option 自定义。
func Recovery(opts ...Option) app.Middleware {
	cfg := newOptions(opts...)

	return func(next app.RequestFunc) app.RequestFunc {
		return func(r *app.Request) {
			defer func() {
				if err := recover(); err != nil {
					cfg.recoveryHandler(r, err, stack(3))
				}
			}()
			next(r)
		}
	}
}

// 跳过给定的堆栈帧，返回格式化的堆栈。
func stack(skip int) []byte {
	buf := new(bytes.Buffer)
	var lines [][]byte
	var lastFile string
	for i := skip; ; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fmt.Fprintf(buf, "%s:%d (0x%x)\n", file, line, pc)
		if file != lastFile {
			data, err := os.ReadFile(file)
			if err != nil {
				continue
			}
			lines = bytes.Split(data, []byte{'\n'})
			lastFile = file
		}
		fmt.Fprintf(buf, "\t%s: %s\n", function(pc), source(lines, line))
	}
	return buf.Bytes()
}

// 返回第 n 行去掉空格的切片，n 从 1 开始。
func source(lines [][]byte, n int) []byte {
	n--
	if n < 0 || n >= len(lines) {
		return dunno
	}
	return bytes.TrimSpace(lines[n])
}

// 返回包含程序计数器 pc 的函数名称，去掉包路径。
func function(pc uintptr) []byte {
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return dunno
	}
	name := []byte(fn.Name())
	if lastSlash := bytes.LastIndex(name, slash); lastSlash >= 0 {
		name = name[lastSlash+1:]
	}
	if period := bytes.Index(name, dot); period >= 0 {
		name = name[period+1:]
	}
	return bytes.ReplaceAll(name, centerDot, dot)
}
