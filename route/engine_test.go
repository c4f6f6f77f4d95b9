package route

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/favbox/asyncweb/app"
	"github.com/favbox/asyncweb/common/config"
	"github.com/favbox/asyncweb/common/mock"
	"github.com/favbox/asyncweb/protocol/auth"
	"github.com/favbox/asyncweb/protocol/consts"
	"github.com/favbox/asyncweb/protocol/http1/resp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() *Engine {
	return NewEngine(config.NewOptions([]config.Option{{F: func(o *config.Options) {
		o.MetricsRegisterer = prometheus.NewRegistry()
	}}}))
}

// serve 在模拟连接上依次投递各片请求数据，并驱动到连接断开。
func serve(t *testing.T, engine *Engine, window int, chunks ...string) *mock.Client {
	c := mock.NewClient(window)
	c.Connect(engine.Accept)
	c.Feed(chunks...)
	require.True(t, c.Drain(10000), "连接未断开")
	return c
}

// split 把原始请求切成 size 字节的分片。
func split(raw string, size int) []string {
	var chunks []string
	for len(raw) > size {
		chunks = append(chunks, raw[:size])
		raw = raw[size:]
	}
	return append(chunks, raw)
}

func TestFragmentedGet(t *testing.T) {
	engine := newTestEngine()
	var host, x string
	engine.GET("/a", func(r *app.Request) {
		host, x = r.Host(), r.Arg("x")
		assert.Equal(t, consts.MethodGet, r.Method())
		assert.Equal(t, "/a", r.URL())
		assert.Equal(t, 1, r.Version())
		r.SendString(consts.StatusOK, "text/plain", "ok")
	})

	c := serve(t, engine, 0, "GET /a?x=1 HTTP/1.1\r\n", "Host: h\r\n\r\n")
	head, body := mock.SplitResponse(c.Output())
	assert.Equal(t, 200, mock.StatusCode(head))
	assert.Equal(t, "2", mock.HeaderValue(head, consts.HeaderContentLength))
	assert.Equal(t, "text/plain", mock.HeaderValue(head, consts.HeaderContentType))
	assert.Equal(t, consts.ConnectionClose, mock.HeaderValue(head, consts.HeaderConnection))
	assert.Equal(t, "ok", body)
	assert.Equal(t, "h", host)
	assert.Equal(t, "1", x)
}

func TestURLEncodedPost(t *testing.T) {
	raw := "POST /f HTTP/1.1\r\nContent-Type: application/x-www-form-urlencoded\r\nContent-Length: 12\r\n\r\na=1&b=two%20"
	for _, size := range []int{1, 3, 7, len(raw)} {
		engine := newTestEngine()
		var a, b string
		engine.POST("/f", func(r *app.Request) {
			pa, pb := r.GetParam("a", true, false), r.GetParam("b", true, false)
			require.NotNil(t, pa)
			require.NotNil(t, pb)
			a, b = pa.Value, pb.Value
			r.SendStatus(consts.StatusOK)
		})
		c := serve(t, engine, 0, split(raw, size)...)
		assert.Equal(t, 200, mock.StatusCode(c.Output()), "分片 %d", size)
		assert.Equal(t, "1", a, "分片 %d", size)
		assert.Equal(t, "two ", b, "分片 %d", size)
	}
}

func TestMultipartUpload(t *testing.T) {
	file := strings.Repeat("abcdefghij", 500)
	body := "--X\r\n" +
		"Content-Disposition: form-data; name=\"note\"\r\n\r\n" +
		"hi\r\n" +
		"--X\r\n" +
		"Content-Disposition: form-data; name=\"f\"; filename=\"a.bin\"\r\n" +
		"Content-Type: application/octet-stream\r\n\r\n" +
		file + "\r\n--X--\r\n"
	raw := "POST /up HTTP/1.1\r\nContent-Type: multipart/form-data; boundary=X\r\n" +
		"Content-Length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body

	engine := newTestEngine()
	var (
		got    strings.Builder
		finals int
		note   string
		size   int
	)
	engine.POST("/up", func(r *app.Request) {
		if p := r.GetParam("note", true, false); p != nil {
			note = p.Value
		}
		if p := r.GetParam("f", true, true); p != nil {
			size = p.Size
		}
		r.SendStatus(consts.StatusOK)
	}).SetUpload(func(r *app.Request, filename string, index int, data []byte, final bool) {
		assert.Equal(t, "a.bin", filename)
		assert.Equal(t, got.Len(), index, "偏移必须连续")
		assert.Zero(t, finals, "final 之后不应再有数据")
		got.Write(data)
		if final {
			finals++
		}
	})

	c := serve(t, engine, 0, split(raw, 137)...)
	assert.Equal(t, 200, mock.StatusCode(c.Output()))
	assert.Equal(t, file, got.String())
	assert.Equal(t, 1, finals)
	assert.Equal(t, "hi", note)
	assert.Equal(t, len(file), size)
}

func TestChunkedTryAgain(t *testing.T) {
	engine := newTestEngine()
	calls := 0
	engine.GET("/events", func(r *app.Request) {
		r.SendChunked(consts.StatusOK, "text/plain", func(buf []byte, index int) int {
			calls++
			switch {
			case calls <= 3:
				return resp.TryAgain
			case calls == 4:
				return copy(buf, "ping")
			}
			return 0
		})
	})

	c := serve(t, engine, 0, "GET /events HTTP/1.1\r\n\r\n")
	head, body := mock.SplitResponse(c.Output())
	assert.Equal(t, 200, mock.StatusCode(head))
	assert.Equal(t, consts.ChunkedEncoding, mock.HeaderValue(head, consts.HeaderTransferEncoding))
	plain, ok := mock.Dechunk(body)
	assert.True(t, ok)
	assert.Equal(t, "ping", plain)
	assert.Equal(t, 5, calls)
}

func TestHTTP10UnframedBody(t *testing.T) {
	engine := newTestEngine()
	engine.GET("/s", func(r *app.Request) {
		r.SendChunked(consts.StatusOK, "text/plain", func(buf []byte, index int) int {
			if index > 0 {
				return 0
			}
			return copy(buf, "raw")
		})
	})
	c := serve(t, engine, 0, "GET /s HTTP/1.0\r\n\r\n")
	head, body := mock.SplitResponse(c.Output())
	assert.True(t, strings.HasPrefix(head, "HTTP/1.0 200"))
	assert.Equal(t, "", mock.HeaderValue(head, consts.HeaderTransferEncoding))
	assert.Equal(t, "raw", body)
}

func TestExpectContinue(t *testing.T) {
	engine := newTestEngine()
	var received strings.Builder
	engine.PUT("/p", func(r *app.Request) {
		r.SendString(consts.StatusOK, "text/plain", received.String())
	}).SetBody(func(r *app.Request, data []byte, index, total int) {
		assert.Equal(t, received.Len(), index)
		assert.Equal(t, 5, total)
		received.Write(data)
	})

	c := mock.NewClient(0)
	c.Connect(engine.Accept)
	c.Feed("PUT /p HTTP/1.1\r\nExpect: 100-continue\r\nContent-Type: application/octet-stream\r\nContent-Length: 5\r\n\r\n")
	assert.Equal(t, consts.ContinueResponse, c.Output())
	c.Ack()
	c.Feed("hel", "lo")
	require.True(t, c.Drain(100))

	out := strings.TrimPrefix(c.Output(), consts.ContinueResponse)
	head, body := mock.SplitResponse(out)
	assert.Equal(t, 200, mock.StatusCode(head))
	assert.Equal(t, "hello", body)
}

func TestContinueWithSmallWindow(t *testing.T) {
	engine := newTestEngine()
	engine.PUT("/p", func(r *app.Request) {
		r.SendString(consts.StatusOK, "text/plain", "done")
	})

	c := mock.NewClient(10)
	c.Connect(engine.Accept)
	c.Feed("PUT /p HTTP/1.1\r\nExpect: 100-continue\r\nContent-Length: 2\r\n\r\nab")
	require.True(t, c.Drain(1000))

	out := c.Output()
	require.True(t, strings.HasPrefix(out, consts.ContinueResponse))
	_, body := mock.SplitResponse(strings.TrimPrefix(out, consts.ContinueResponse))
	assert.Equal(t, "done", body)
}

func digestResponse(method, uri, user, pass, challenge, nc, cnonce string) string {
	f := auth.ParseDigest(strings.TrimPrefix(challenge, "Digest "))
	md5Hex := func(s string) string {
		sum := md5.Sum([]byte(s))
		return hex.EncodeToString(sum[:])
	}
	ha1 := auth.HA1(user, f["realm"], pass)
	ha2 := md5Hex(method + ":" + uri)
	response := md5Hex(ha1 + ":" + f["nonce"] + ":" + nc + ":" + cnonce + ":auth:" + ha2)
	return fmt.Sprintf(`Digest username="%s", realm="%s", nonce="%s", uri="%s", qop=auth, nc=%s, cnonce="%s", response="%s", opaque="%s"`,
		user, f["realm"], f["nonce"], uri, nc, cnonce, response, f["opaque"])
}

func TestDigestAuthentication(t *testing.T) {
	engine := newTestEngine()
	served := 0
	engine.GET("/secret", func(r *app.Request) {
		served++
		r.SendString(consts.StatusOK, "text/plain", "s3cr3t")
	}).SetAuthentication("u", "p")

	c := serve(t, engine, 0, "GET /secret HTTP/1.1\r\n\r\n")
	head, _ := mock.SplitResponse(c.Output())
	require.Equal(t, 401, mock.StatusCode(head))
	challenge := mock.HeaderValue(head, consts.HeaderWWWAuthenticate)
	require.True(t, strings.HasPrefix(challenge, `Digest realm="asyncweb"`), challenge)
	assert.Zero(t, served)

	authz := digestResponse("GET", "/secret", "u", "p", challenge, "00000001", "c1")
	c = serve(t, engine, 0, "GET /secret HTTP/1.1\r\nAuthorization: "+authz+"\r\n\r\n")
	head, body := mock.SplitResponse(c.Output())
	assert.Equal(t, 200, mock.StatusCode(head))
	assert.Equal(t, "s3cr3t", body)
	assert.Equal(t, 1, served)

	// 重放同一计数被拒绝
	c = serve(t, engine, 0, "GET /secret HTTP/1.1\r\nAuthorization: "+authz+"\r\n\r\n")
	assert.Equal(t, 401, mock.StatusCode(c.Output()))

	wrong := digestResponse("GET", "/secret", "u", "x", challenge, "00000002", "c1")
	c = serve(t, engine, 0, "GET /secret HTTP/1.1\r\nAuthorization: "+wrong+"\r\n\r\n")
	assert.Equal(t, 401, mock.StatusCode(c.Output()))
	assert.Equal(t, 1, served)
}

func TestBasicAuthentication(t *testing.T) {
	engine := newTestEngine()
	engine.POST("/admin", func(r *app.Request) {
		r.SendStatus(consts.StatusNoContent)
	}).SetBasicAuthentication("u", "p")

	// 认证失败时丢弃正文
	c := serve(t, engine, 0, "POST /admin HTTP/1.1\r\nContent-Length: 3\r\n\r\n", "abc")
	head, _ := mock.SplitResponse(c.Output())
	assert.Equal(t, 401, mock.StatusCode(head))
	assert.Equal(t, `Basic realm="asyncweb"`, mock.HeaderValue(head, consts.HeaderWWWAuthenticate))

	c = serve(t, engine, 0, "POST /admin HTTP/1.1\r\nAuthorization: Basic "+auth.BasicToken("u", "p")+"\r\nContent-Length: 0\r\n\r\n")
	assert.Equal(t, 204, mock.StatusCode(c.Output()))
}

func TestHandlerOrderAndFilter(t *testing.T) {
	engine := newTestEngine()
	hits := []string{}
	engine.GET("/a", func(r *app.Request) {
		hits = append(hits, "first")
		r.SendStatus(consts.StatusOK)
	}).SetFilter(func(r *app.Request) bool { return r.Host() == "one" })
	engine.GET("/a", func(r *app.Request) {
		hits = append(hits, "second")
		r.SendStatus(consts.StatusOK)
	})
	engine.GET("/a", func(r *app.Request) {
		hits = append(hits, "third")
		r.SendStatus(consts.StatusOK)
	})

	serve(t, engine, 0, "GET /a HTTP/1.1\r\nHost: one\r\n\r\n")
	serve(t, engine, 0, "GET /a/b HTTP/1.1\r\nHost: two\r\n\r\n")
	assert.Equal(t, []string{"first", "second"}, hits)
}

func TestRegexRoute(t *testing.T) {
	if !app.RegexEnabled {
		t.Skip("未启用正则路由")
	}
	engine := newTestEngine()
	var id, name string
	engine.GET("^/users/([0-9]+)/(\\w+)$", func(r *app.Request) {
		id, name = r.PathArg(0), r.PathArg(1)
		r.SendStatus(consts.StatusOK)
	})
	c := serve(t, engine, 0, "GET /users/42/bob HTTP/1.1\r\n\r\n")
	assert.Equal(t, 200, mock.StatusCode(c.Output()))
	assert.Equal(t, "42", id)
	assert.Equal(t, "bob", name)

	c = serve(t, engine, 0, "GET /users/x/bob HTTP/1.1\r\n\r\n")
	assert.Equal(t, 404, mock.StatusCode(c.Output()))
}

func TestRewrite(t *testing.T) {
	engine := newTestEngine()
	var url, lang string
	engine.GET("/index.htm", func(r *app.Request) {
		url, lang = r.URL(), r.Arg("lang")
		r.SendStatus(consts.StatusOK)
	})
	rw := engine.Rewrite("/", "/index.htm?lang=zh")
	assert.Equal(t, 1, engine.Rewrites())

	c := serve(t, engine, 0, "GET / HTTP/1.1\r\n\r\n")
	assert.Equal(t, 200, mock.StatusCode(c.Output()))
	assert.Equal(t, "/index.htm", url)
	assert.Equal(t, "zh", lang)

	assert.True(t, engine.RemoveRewrite(rw))
	assert.False(t, engine.RemoveRewrite(rw))
	c = serve(t, engine, 0, "GET / HTTP/1.1\r\n\r\n")
	assert.Equal(t, 404, mock.StatusCode(c.Output()))
}

func TestNotFoundAndCatchAll(t *testing.T) {
	engine := newTestEngine()
	c := serve(t, engine, 0, "GET /nope HTTP/1.1\r\n\r\n")
	assert.Equal(t, 404, mock.StatusCode(c.Output()))

	var body strings.Builder
	engine.OnRequestBody(func(r *app.Request, data []byte, index, total int) {
		body.Write(data)
	})
	engine.OnNotFound(func(r *app.Request) {
		r.SendString(consts.StatusOK, "text/plain", r.HeaderList().Value("X-Custom")+":"+body.String())
	})
	c = serve(t, engine, 0, "PUT /any HTTP/1.1\r\nX-Custom: v\r\nContent-Type: application/json\r\nContent-Length: 2\r\n\r\n{}")
	_, got := mock.SplitResponse(c.Output())
	assert.Equal(t, "v:{}", got)

	engine.Reset()
	c = serve(t, engine, 0, "GET /nope HTTP/1.1\r\n\r\n")
	assert.Equal(t, 404, mock.StatusCode(c.Output()))
}

func TestHandlerWithoutResponseFallsBack(t *testing.T) {
	engine := newTestEngine()
	engine.GET("/silent", func(r *app.Request) {})
	c := serve(t, engine, 0, "GET /silent HTTP/1.1\r\n\r\n")
	assert.Equal(t, 404, mock.StatusCode(c.Output()))

	engine.OnNotFound(func(r *app.Request) { r.SendStatus(consts.StatusGone) })
	c = serve(t, engine, 0, "GET /silent HTTP/1.1\r\n\r\n")
	assert.Equal(t, 410, mock.StatusCode(c.Output()))
}

func TestSecondSendIgnored(t *testing.T) {
	engine := newTestEngine()
	engine.GET("/twice", func(r *app.Request) {
		r.SendString(consts.StatusOK, "text/plain", "one")
		r.SendString(consts.StatusAccepted, "text/plain", "two")
	})
	c := serve(t, engine, 0, "GET /twice HTTP/1.1\r\n\r\n")
	head, body := mock.SplitResponse(c.Output())
	assert.Equal(t, 200, mock.StatusCode(head))
	assert.Equal(t, "one", body)
}

func TestInvalidResponseBecomes500(t *testing.T) {
	engine := newTestEngine()
	engine.GET("/missing", func(r *app.Request) {
		r.SendFile(fstest.MapFS{}, "nope.txt", "", false)
	})
	c := serve(t, engine, 0, "GET /missing HTTP/1.1\r\n\r\n")
	assert.Equal(t, 500, mock.StatusCode(c.Output()))
}

func TestParseErrors(t *testing.T) {
	engine := newTestEngine()
	engine.Any("", func(r *app.Request) { r.SendStatus(consts.StatusOK) })

	c := serve(t, engine, 0, "BREW /pot HTTP/1.1\r\n\r\n")
	assert.Equal(t, 400, mock.StatusCode(c.Output()))

	c = serve(t, engine, 0, "GET /a%zz HTTP/1.1\r\n\r\n")
	assert.Equal(t, 400, mock.StatusCode(c.Output()))

	c = serve(t, engine, 0, "GET /"+strings.Repeat("a", 2000)+" HTTP/1.1\r\n\r\n")
	assert.Equal(t, 413, mock.StatusCode(c.Output()))

	c = serve(t, engine, 0, "POST / HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n")
	assert.Equal(t, 400, mock.StatusCode(c.Output()))
}

func TestTransportErrorAndTimeout(t *testing.T) {
	engine := newTestEngine()
	engine.GET("/big", func(r *app.Request) {
		r.SendString(consts.StatusOK, "text/plain", strings.Repeat("x", 10000))
	})

	c := mock.NewClient(100)
	c.Connect(engine.Accept)
	c.Feed("GET /big HTTP/1.1\r\n\r\n")
	c.Fail(assert.AnError)
	assert.True(t, c.Gone())
	head, body := mock.SplitResponse(c.Output())
	assert.Equal(t, 200, mock.StatusCode(head))
	assert.Empty(t, body, "头部未确认前不应写出正文")

	c = mock.NewClient(0)
	c.Connect(engine.Accept)
	c.Feed("GET /big HTTP/1.1\r\n")
	c.Timeout()
	assert.True(t, c.Gone())
	assert.Equal(t, "", c.Output())
}

func TestHeadRequest(t *testing.T) {
	engine := newTestEngine()
	engine.Handle(consts.MethodGet|consts.MethodHead, "/h", func(r *app.Request) {
		r.SendString(consts.StatusOK, "text/plain", "hello")
	})
	c := serve(t, engine, 0, "HEAD /h HTTP/1.1\r\n\r\n")
	head, body := mock.SplitResponse(c.Output())
	assert.Equal(t, 200, mock.StatusCode(head))
	assert.Equal(t, "5", mock.HeaderValue(head, consts.HeaderContentLength))
	assert.Equal(t, "", body)
}

func TestStaticFS(t *testing.T) {
	engine := newTestEngine()
	fsys := fstest.MapFS{
		"index.htm":      {Data: []byte("<h1>home</h1>")},
		"js/app.js.gz":   {Data: []byte("gzipped")},
		"docs/guide.txt": {Data: []byte("guide")},
	}
	engine.StaticFS("/www", fsys)

	c := serve(t, engine, 0, "GET /www/ HTTP/1.1\r\n\r\n")
	head, body := mock.SplitResponse(c.Output())
	assert.Equal(t, 200, mock.StatusCode(head))
	assert.Equal(t, "text/html", mock.HeaderValue(head, consts.HeaderContentType))
	assert.Equal(t, "<h1>home</h1>", body)

	c = serve(t, engine, 0, "GET /www/js/app.js HTTP/1.1\r\n\r\n")
	head, body = mock.SplitResponse(c.Output())
	assert.Equal(t, "gzip", mock.HeaderValue(head, consts.HeaderContentEncoding))
	assert.Equal(t, "application/javascript", mock.HeaderValue(head, consts.HeaderContentType))
	assert.Equal(t, "gzipped", body)

	c = serve(t, engine, 0, "HEAD /www/docs/guide.txt HTTP/1.1\r\n\r\n")
	head, body = mock.SplitResponse(c.Output())
	assert.Equal(t, "5", mock.HeaderValue(head, consts.HeaderContentLength))
	assert.Equal(t, "", body)

	c = serve(t, engine, 0, "GET /www/missing.txt HTTP/1.1\r\n\r\n")
	assert.Equal(t, 404, mock.StatusCode(c.Output()))
}

func TestGroup(t *testing.T) {
	engine := newTestEngine()
	api := engine.Group("/api")
	api.Use(func(r *app.Request) bool { return r.Host() == "api" })
	v1 := api.Group("/v1")
	var path string
	v1.GET("/users", func(r *app.Request) {
		path = r.URL()
		r.SendStatus(consts.StatusOK)
	})
	assert.Equal(t, "/api/v1", v1.BasePath())

	c := serve(t, engine, 0, "GET /api/v1/users HTTP/1.1\r\nHost: api\r\n\r\n")
	assert.Equal(t, 200, mock.StatusCode(c.Output()))
	assert.Equal(t, "/api/v1/users", path)

	c = serve(t, engine, 0, "GET /api/v1/users HTTP/1.1\r\nHost: www\r\n\r\n")
	assert.Equal(t, 404, mock.StatusCode(c.Output()))

	assert.Panics(t, func() { api.Handle(0, "/x", func(*app.Request) {}) })
}

func TestCalculateAbsolutePath(t *testing.T) {
	root := &RouterGroup{basePath: "/"}
	assert.Equal(t, "", root.calculateAbsolutePath(""))
	assert.Equal(t, "/*.js", root.calculateAbsolutePath("/*.js"))

	g := &RouterGroup{basePath: "/api"}
	assert.Equal(t, "/api/users", g.calculateAbsolutePath("users"))
	assert.Equal(t, "/api/users/", g.calculateAbsolutePath("/users/"))
	assert.Equal(t, "/api", g.calculateAbsolutePath(""))
	assert.Equal(t, `^/api/([0-9]+)$`, g.calculateAbsolutePath(`^/([0-9]+)$`))
}

func TestHandlerRegistry(t *testing.T) {
	engine := newTestEngine()
	h := engine.On("/x", consts.MethodAny, func(r *app.Request) { r.SendStatus(consts.StatusOK) })
	assert.Equal(t, 1, engine.Handlers())
	assert.True(t, engine.RemoveHandler(h))
	assert.False(t, engine.RemoveHandler(h))
	assert.Equal(t, 0, engine.Handlers())
}

func TestServeMetrics(t *testing.T) {
	engine := newTestEngine()
	engine.GET("/a", func(r *app.Request) { r.SendStatus(consts.StatusOK) })
	engine.ServeMetrics("/metrics")

	serve(t, engine, 0, "GET /a HTTP/1.1\r\n\r\n")
	serve(t, engine, 0, "GET /a%zz HTTP/1.1\r\n\r\n")
	c := serve(t, engine, 0, "GET /metrics HTTP/1.1\r\n\r\n")
	head, body := mock.SplitResponse(c.Output())
	assert.Equal(t, 200, mock.StatusCode(head))
	assert.Contains(t, body, `asyncweb_requests_total{code="200",method="GET",state="END"} 1`)
	assert.Contains(t, body, `asyncweb_parse_errors_total{code="400"} 1`)
	assert.Contains(t, body, "asyncweb_connections 1")
	assert.Equal(t, strconv.Itoa(len(body)), mock.HeaderValue(head, consts.HeaderContentLength))
}

func TestEngineLifecycle(t *testing.T) {
	engine := newTestEngine()
	assert.Equal(t, "standard", engine.GetTransporterName())
	assert.NotNil(t, engine.Transporter())
	assert.Equal(t, ":80", engine.GetOptions().Addr)
	assert.False(t, engine.IsRunning())

	assert.Equal(t, errStatusNotRunning, engine.Shutdown(context.Background()))
	assert.Nil(t, engine.Begin())
	assert.Equal(t, errInitFailed, engine.Begin())
	assert.Nil(t, engine.MarkAsRunning())
	assert.True(t, engine.IsRunning())
	assert.Equal(t, errAlreadyRunning, engine.MarkAsRunning())
}

func TestGetTransporterName(t *testing.T) {
	assert.Equal(t, unknownTransporterName, getTransporterName(nil))
}
