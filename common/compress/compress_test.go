package compress

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGzipRoundTrip(t *testing.T) {
	src := []byte(strings.Repeat("asyncweb ", 200))
	zipped := AppendGzipBytes(nil, src)
	assert.Less(t, len(zipped), len(src))

	out, err := AppendGunzipBytes([]byte("x"), zipped)
	assert.Nil(t, err)
	assert.Equal(t, "x"+string(src), string(out))
}

func TestBrotliRoundTrip(t *testing.T) {
	src := []byte(strings.Repeat("hello brotli ", 100))
	for i := 0; i < 3; i++ {
		zipped := AppendBrotliBytes(nil, src)
		assert.Less(t, len(zipped), len(src))
		out, err := AppendUnbrotliBytes(nil, zipped)
		assert.Nil(t, err)
		assert.Equal(t, src, out)
	}
}

func TestAppendBytesUnknownEncoding(t *testing.T) {
	_, err := AppendBytes(nil, []byte("a"), Encoding("zstd"))
	assert.NotNil(t, err)
}

func TestNegotiate(t *testing.T) {
	cases := []struct {
		in   string
		enc  Encoding
		want bool
	}{
		{"gzip, deflate, br", EncodingBrotli, true},
		{"gzip", EncodingGzip, true},
		{"br;q=0, gzip;q=0.8", EncodingGzip, true},
		{"deflate", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		enc, ok := Negotiate(c.in)
		assert.Equal(t, c.want, ok, c.in)
		assert.Equal(t, c.enc, enc, c.in)
	}
}
