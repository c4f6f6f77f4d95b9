package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestURLDecode(t *testing.T) {
	for _, v := range []struct {
		in   string
		out  string
		derr URLDecodeError
	}{
		{"/a", "/a", URLDecodeNone},
		{"two%20", "two ", URLDecodeNone},
		{"a+b", "a b", URLDecodeNone},
		{"%E4%BD%A0%e5%a5%bd", "你好", URLDecodeNone},
		{"%41%4a", "AJ", URLDecodeNone},
		{"abc%", "", URLDecodeNotEnoughDigits},
		{"abc%4", "", URLDecodeNotEnoughDigits},
		{"%zz", "", URLDecodeInvalidCharacters},
		{"%4g", "", URLDecodeInvalidCharacters},
	} {
		out, derr := URLDecode(v.in)
		assert.Equal(t, v.out, out, v.in)
		assert.Equal(t, v.derr, derr, v.in)
	}
	assert.Equal(t, "not enough digits", URLDecodeNotEnoughDigits.String())
}

func TestURLEncodeDecodeRoundTrip(t *testing.T) {
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	for _, s := range []string{"", "a=1&b=two ", "路径/名称?x", "~-._", "100%", string(all)} {
		enc := URLEncode(s)
		dec, derr := URLDecode(enc)
		assert.Equal(t, URLDecodeNone, derr)
		assert.Equal(t, s, dec)
	}
	assert.Equal(t, "two+%26+three", URLEncode("two & three"))
}

func TestParseQuery(t *testing.T) {
	var params []Param
	add := func(p Param) { params = append(params, p) }

	derr := ParseQuery("x=1&&y=a%20b&flag&z=", false, add)
	assert.Equal(t, URLDecodeNone, derr)
	assert.Equal(t, []Param{
		{Name: "x", Value: "1"},
		{Name: "y", Value: "a b"},
		{Name: "flag"},
		{Name: "z"},
	}, params)

	params = nil
	derr = ParseQuery("ok=1&bad=%g1", true, add)
	assert.Equal(t, URLDecodeInvalidCharacters, derr)
	assert.Equal(t, []Param{{Name: "ok", Value: "1", IsForm: true}}, params)
}
