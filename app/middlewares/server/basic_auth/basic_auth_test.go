package basic_auth

import (
	"testing"

	"github.com/favbox/asyncweb/app"
	"github.com/favbox/asyncweb/common/config"
	"github.com/favbox/asyncweb/common/mock"
	"github.com/favbox/asyncweb/protocol/auth"
	"github.com/favbox/asyncweb/protocol/consts"
	"github.com/favbox/asyncweb/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairs(t *testing.T) {
	p1 := constructPairs(Accounts{"test1": "value1"})
	p2 := constructPairs(Accounts{"test2": "value2"})

	u1, ok1 := p1.findValue("dGVzdDE6dmFsdWUx")
	u2, ok2 := p2.findValue("dGVzdDI6dmFsdWUy")
	_, ok3 := p1.findValue("bad header")
	_, ok4 := p2.findValue("bad header")
	assert.True(t, ok1)
	assert.Equal(t, "test1", u1)
	assert.True(t, ok2)
	assert.Equal(t, "test2", u2)
	assert.False(t, ok3)
	assert.False(t, ok4)
}

func TestBasicAuth(t *testing.T) {
	engine := route.NewEngine(config.NewOptions([]config.Option{{F: func(o *config.Options) {
		o.DisableMetrics = true
	}}}))
	engine.Wrap(BasicAuth(Accounts{"user1": "value1"}))
	var user any
	engine.GET("/me", func(r *app.Request) {
		user, _ = r.Get("user")
		r.SendStatus(consts.StatusOK)
	})

	get := func(authz string) string {
		c := mock.NewClient(0)
		c.Connect(engine.Accept)
		c.Feed("GET /me HTTP/1.1\r\n" + authz + "\r\n")
		require.True(t, c.Drain(100))
		return c.Output()
	}

	out := get("Authorization: Basic " + auth.BasicToken("user1", "value1") + "\r\n")
	assert.Equal(t, 200, mock.StatusCode(out))
	assert.Equal(t, "user1", user)

	user = nil
	out = get("Authorization: Basic " + auth.BasicToken("user2", "value2") + "\r\n")
	head, _ := mock.SplitResponse(out)
	assert.Equal(t, 401, mock.StatusCode(head))
	assert.Equal(t, `Basic realm="Authorization Required"`, mock.HeaderValue(head, consts.HeaderWWWAuthenticate))
	assert.Nil(t, user)

	assert.Equal(t, 401, mock.StatusCode(get("")))
}
