//go:build !noregex

package app

import (
	"testing"

	"github.com/favbox/asyncweb/protocol/consts"
	"github.com/stretchr/testify/assert"
)

func TestRegexCaptures(t *testing.T) {
	h := NewCallbackHandler(`^/sensor/([0-9]+)/(\w+)$`, consts.MethodGet, func(*Request) {})
	r := newReq(consts.MethodGet, "/sensor/7/temp")
	assert.True(t, h.CanHandle(r))
	assert.Equal(t, 2, r.PathArgs())
	assert.Equal(t, "7", r.PathArg(0))
	assert.Equal(t, "temp", r.PathArg(1))
	assert.Equal(t, "", r.PathArg(2))

	assert.False(t, h.CanHandle(newReq(consts.MethodGet, "/sensor/x/temp")))
	assert.False(t, h.CanHandle(newReq(consts.MethodGet, "/sensor/7/temp/more")))
}

func TestRegexInvalidNeverMatches(t *testing.T) {
	h := NewCallbackHandler(`^/(+$`, consts.MethodAny, func(*Request) {})
	assert.False(t, h.CanHandle(newReq(consts.MethodGet, "/(")))
}

func TestNonAnchoredIsPlain(t *testing.T) {
	assert.Nil(t, compilePattern("/a/([0-9]+)"))
	assert.Nil(t, compilePattern("^/a"))
	assert.NotNil(t, compilePattern("^/a$"))
}
