package app

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/favbox/asyncweb/common/mock"
	"github.com/favbox/asyncweb/protocol/consts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var site = fstest.MapFS{
	"www/index.htm":    {Data: []byte("<h1>home</h1>")},
	"www/hello.txt":    {Data: []byte("hello")},
	"www/page.htm":     {Data: []byte("hi %name%, 100%% sure")},
	"www/css/app.css":  {Data: []byte("body{}")},
	"www/js/lib.js.gz": {Data: []byte("zipped")},
	"icons/fav.ico":    {Data: []byte("ico")},
}

func TestStaticDirectory(t *testing.T) {
	h := NewStaticHandler("/static/", site, "/www/", "")

	head, body := do(t, h, "GET /static/hello.txt HTTP/1.1\r\n\r\n")
	assert.Equal(t, 200, mock.StatusCode(head))
	assert.True(t, strings.HasPrefix(mock.HeaderValue(head, consts.HeaderContentType), "text/plain"))
	assert.Equal(t, `inline; filename="hello.txt"`, mock.HeaderValue(head, consts.HeaderContentDisposition))
	assert.Equal(t, "hello", body)

	_, body = do(t, h, "GET /static HTTP/1.1\r\n\r\n")
	assert.Equal(t, "<h1>home</h1>", body)
	_, body = do(t, h, "GET /static/ HTTP/1.1\r\n\r\n")
	assert.Equal(t, "<h1>home</h1>", body)
	_, body = do(t, h, "GET /static/css/app.css HTTP/1.1\r\n\r\n")
	assert.Equal(t, "body{}", body)

	head, body = do(t, h, "GET /static/js/lib.js HTTP/1.1\r\n\r\n")
	assert.Equal(t, "gzip", mock.HeaderValue(head, consts.HeaderContentEncoding))
	assert.Equal(t, "zipped", body)

	// 目录本身不作为文件发送
	head, _ = do(t, h, "GET /static/css HTTP/1.1\r\n\r\n")
	assert.Equal(t, 404, mock.StatusCode(head))

	// 不能越出根目录
	head, _ = do(t, h, "GET /static/../icons/fav.ico HTTP/1.1\r\n\r\n")
	assert.Equal(t, 404, mock.StatusCode(head))

	head, _ = do(t, h, "POST /static/hello.txt HTTP/1.1\r\n\r\n")
	assert.Equal(t, 404, mock.StatusCode(head))
}

func TestStaticSingleFile(t *testing.T) {
	h := NewStaticHandler("/favicon.ico", site, "icons/fav.ico", "")
	head, body := do(t, h, "GET /favicon.ico HTTP/1.1\r\n\r\n")
	assert.Equal(t, 200, mock.StatusCode(head))
	assert.Equal(t, "ico", body)
}

func TestStaticCaching(t *testing.T) {
	h := NewStaticHandler("/", site, "/www/", "max-age=600")

	head, _ := do(t, h, "GET /hello.txt HTTP/1.1\r\n\r\n")
	assert.Equal(t, "5", mock.HeaderValue(head, consts.HeaderETag))
	assert.Equal(t, "max-age=600", mock.HeaderValue(head, consts.HeaderCacheControl))
	assert.Equal(t, 1, h.cached())

	head, body := do(t, h, "GET /hello.txt HTTP/1.1\r\nIf-None-Match: 5\r\n\r\n")
	assert.Equal(t, 304, mock.StatusCode(head))
	assert.Equal(t, "5", mock.HeaderValue(head, consts.HeaderETag))
	assert.Equal(t, "", body)

	head, _ = do(t, h, "GET /hello.txt HTTP/1.1\r\nIf-None-Match: 6\r\n\r\n")
	assert.Equal(t, 200, mock.StatusCode(head))

	h.SetDefaultFile("")
	assert.Equal(t, 0, h.cached())
	head, _ = do(t, h, "GET / HTTP/1.1\r\n\r\n")
	assert.Equal(t, 404, mock.StatusCode(head))
}

func TestStaticLastModified(t *testing.T) {
	stamp := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	h := NewStaticHandler("/", site, "/www/", "").SetLastModified(stamp)

	head, _ := do(t, h, "GET /hello.txt HTTP/1.1\r\n\r\n")
	assert.Equal(t, "Wed, 01 May 2024 08:00:00 GMT", mock.HeaderValue(head, consts.HeaderLastModified))

	head, _ = do(t, h, "GET /hello.txt HTTP/1.1\r\nIf-Modified-Since: Wed, 01 May 2024 08:00:00 GMT\r\n\r\n")
	assert.Equal(t, 304, mock.StatusCode(head))
}

func TestStaticTemplate(t *testing.T) {
	h := NewStaticHandler("/", site, "/www/", "").SetTemplateProcessor(func(name string) string {
		if name == "name" {
			return "bob"
		}
		return ""
	})
	head, body := do(t, h, "GET /page.htm HTTP/1.1\r\n\r\n")
	assert.Equal(t, consts.ChunkedEncoding, mock.HeaderValue(head, consts.HeaderTransferEncoding))
	plain, ok := mock.Dechunk(body)
	assert.True(t, ok)
	assert.Equal(t, "hi bob, 100% sure", plain)

	// 预压缩文件不做替换
	_, body = do(t, h, "GET /js/lib.js HTTP/1.1\r\n\r\n")
	assert.Equal(t, "zipped", body)
}

func TestStaticWatch(t *testing.T) {
	dir := t.TempDir()
	require.Nil(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("a"), 0o644))

	h := NewStaticHandler("/", os.DirFS(dir), "/", "")
	require.Nil(t, h.Watch(dir))
	defer h.Close()

	_, body := do(t, h, "GET /a.txt HTTP/1.1\r\n\r\n")
	assert.Equal(t, "a", body)
	assert.Equal(t, 1, h.cached())

	require.Nil(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("b"), 0o644))
	assert.Eventually(t, func() bool { return h.cached() == 0 }, 2*time.Second, 10*time.Millisecond)

	_, body = do(t, h, "GET /b.txt HTTP/1.1\r\n\r\n")
	assert.Equal(t, "b", body)
	assert.Nil(t, h.Close())
	assert.Nil(t, h.Close())
}

func TestStaticTempFileReleased(t *testing.T) {
	h := NewStaticHandler("/", site, "/www/", "")
	c, r := connect(h)
	c.Feed("GET /hello.txt HTTP/1.1\r\n")
	assert.Nil(t, r.TempFile)
	c.Feed("\r\n")
	require.True(t, c.Drain(100))
	assert.True(t, strings.HasSuffix(c.Output(), "hello"))
	assert.Nil(t, r.TempFile)
	assert.Nil(t, r.TempObject)
}
