package bytebufferpool

import (
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestByteBufferWrite(t *testing.T) {
	var b ByteBuffer
	_, _ = b.WriteString("foo")
	_ = b.WriteByte('-')
	_, _ = b.Write([]byte("bar"))
	assert.Equal(t, "foo-bar", b.String())
	assert.Equal(t, 7, b.Len())
	assert.Equal(t, []byte("foo-bar"), b.Bytes())
}

func TestByteBufferFill(t *testing.T) {
	var b ByteBuffer
	_, _ = b.WriteString("abcdefg")

	dst := make([]byte, 3)
	n, err := b.Fill(dst)
	assert.Nil(t, err)
	assert.Equal(t, "abc", string(dst[:n]))
	assert.Equal(t, 4, b.Unread())

	// 读取期间仍可追加
	_, _ = b.WriteString("h")
	n, err = b.Fill(dst)
	assert.Nil(t, err)
	assert.Equal(t, "def", string(dst[:n]))

	n, err = b.Fill(dst)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "gh", string(dst[:n]))
	assert.Equal(t, 0, b.Unread())

	b.Reset()
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, 0, b.Unread())
}

func TestByteBufferGetPut(t *testing.T) {
	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				b := Get()
				assert.Equal(t, 0, b.Len())
				assert.Equal(t, 0, b.Unread())
				want := fmt.Sprintf("num %d", i)
				_, _ = b.WriteString(want)
				assert.Equal(t, want, b.String())
				_, _ = b.Fill(make([]byte, 2))
				Put(b)
			}
		}()
	}
	wg.Wait()
}
