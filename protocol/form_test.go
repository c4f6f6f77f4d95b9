package protocol

import (
	"testing"

	"github.com/favbox/asyncweb/common/errors"
	"github.com/stretchr/testify/assert"
)

func tokenize(t *testing.T, maxSize int, chunks ...string) ([]Param, error) {
	t.Helper()
	var params []Param
	tk := NewFormTokenizer(maxSize, func(p Param) { params = append(params, p) })
	for _, c := range chunks {
		if err := tk.Feed([]byte(c)); err != nil {
			return params, err
		}
	}
	return params, tk.Close()
}

func TestFormTokenizerFragmented(t *testing.T) {
	want := []Param{
		{Name: "a", Value: "1", IsForm: true},
		{Name: "b", Value: "two ", IsForm: true},
	}
	body := "a=1&b=two%20"
	for split := 0; split <= len(body); split++ {
		params, err := tokenize(t, 0, body[:split], body[split:])
		assert.Nil(t, err)
		assert.Equal(t, want, params, "split=%d", split)
	}
}

func TestFormTokenizerRawBody(t *testing.T) {
	params, err := tokenize(t, 0, `{"a":1,`, `"b":"x&y"}`)
	assert.Nil(t, err)
	assert.Equal(t, []Param{{Name: BodyParamName, Value: `{"a":1,"b":"x&y"}`, IsForm: true}}, params)

	params, err = tokenize(t, 0, "hello world")
	assert.Nil(t, err)
	assert.Equal(t, []Param{{Name: BodyParamName, Value: "hello world", IsForm: true}}, params)
}

func TestFormTokenizerErrors(t *testing.T) {
	_, err := tokenize(t, 0, "a=%zz")
	assert.Equal(t, 400, errors.StatusCode(err))

	_, err = tokenize(t, 4, "a=12345")
	assert.Equal(t, 413, errors.StatusCode(err))
}
