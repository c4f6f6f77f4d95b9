package sse

import (
	"bytes"
	"testing"

	"github.com/favbox/asyncweb/common/json"
	"github.com/stretchr/testify/assert"
)

type reading struct {
	Sensor int
	Value  string `json:"value"`
}

func mustMarshal(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name  string
		event *Event
		want  string
	}{
		{
			name:  "只有数据",
			event: &Event{Data: []byte("junk\n\njk\nid:fake")},
			want:  "data:junk\ndata:\ndata:jk\ndata:id:fake\n\n",
		},
		{
			name:  "事件名转义",
			event: &Event{Event: "t\n:<>\r\test", Data: []byte("x")},
			want:  "event:t\\n:<>\\r\test\ndata:x\n\n",
		},
		{
			name:  "ID 转义且数据含回车",
			event: &Event{ID: "a\nb", Data: []byte("fa\rke")},
			want:  "id:a\\nb\ndata:fa\\rke\n\n",
		},
		{
			name:  "重试与结尾换行",
			event: &Event{Retry: 11, Data: []byte("jk\n")},
			want:  "retry:11\ndata:jk\ndata:\n\n",
		},
		{
			name:  "全部字段",
			event: &Event{Event: "abc", ID: "12345", Retry: 10, Data: []byte("some data")},
			want:  "id:12345\nevent:abc\nretry:10\ndata:some data\n\n",
		},
		{
			name:  "结构体数据",
			event: &Event{Event: "reading", Data: mustMarshal(&reading{1, "22.5"})},
			want:  "event:reading\ndata:{\"Sensor\":1,\"value\":\"22.5\"}\n\n",
		},
		{
			name:  "空数据",
			event: &Event{},
			want:  "data:\n\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b bytes.Buffer
			assert.Nil(t, Encode(&b, tt.event))
			assert.Equal(t, tt.want, b.String())
			assert.Equal(t, tt.want, string(AppendEvent(nil, tt.event)))
		})
	}
}

func TestEncodeStream(t *testing.T) {
	w := new(bytes.Buffer)
	assert.Nil(t, Encode(w, &Event{Event: "float", Data: []byte("1.5")}))
	assert.Nil(t, Encode(w, &Event{ID: "124", Event: "chat", Data: []byte("hi! dude")}))
	assert.Equal(t, "event:float\ndata:1.5\n\nid:124\nevent:chat\ndata:hi! dude\n\n", w.String())
}

func BenchmarkAppendEvent(b *testing.B) {
	e := &Event{
		Event: "new_message",
		ID:    "13435",
		Retry: 10,
		Data:  []byte("hi! how are you? I am fine. this is a long stupid message!!!"),
	}
	buf := make([]byte, 0, 256)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		buf = AppendEvent(buf[:0], e)
	}
}
