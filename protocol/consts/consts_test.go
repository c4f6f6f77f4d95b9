package consts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseMethod(t *testing.T) {
	m, ok := ParseMethod("PATCH")
	assert.True(t, ok)
	assert.Equal(t, MethodPatch, m)
	assert.Equal(t, "PATCH", m.String())

	_, ok = ParseMethod("get")
	assert.False(t, ok)
	_, ok = ParseMethod("TRACE")
	assert.False(t, ok)

	assert.Equal(t, "ANY", MethodAny.String())
	assert.Equal(t, "UNKNOWN", (MethodGet | MethodPost).String())
	assert.True(t, (MethodGet | MethodHead).Has(MethodHead))
	assert.False(t, MethodGet.Has(MethodPost))

	// 每个方法恰好一位
	for _, v := range methodNames {
		assert.Equal(t, v.m, v.m&-v.m)
		assert.True(t, MethodAny.Has(v.m))
	}
}

func TestStatusLine(t *testing.T) {
	assert.Equal(t, "HTTP/1.1 200 OK\r\n", string(StatusLine(1, StatusOK)))
	assert.Equal(t, "HTTP/1.0 404 Not Found\r\n", string(StatusLine(0, StatusNotFound)))
	// 命中缓存
	assert.Equal(t, "HTTP/1.1 200 OK\r\n", string(StatusLine(1, StatusOK)))
	assert.Equal(t, "Unknown", StatusMessage(999))
	assert.Equal(t, "Unknown", StatusMessage(299))
}

func TestContentTypeByPath(t *testing.T) {
	assert.Equal(t, "text/html", ContentTypeByPath("/www/index.htm"))
	assert.Equal(t, "application/javascript", ContentTypeByPath("/app.JS"))
	assert.Equal(t, "application/x-gzip", ContentTypeByPath("/app.js.gz"))
	assert.Equal(t, "text/plain", ContentTypeByPath("/README"))
}
