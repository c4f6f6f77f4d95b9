package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/gopkg/lang/fastrand"
	"github.com/favbox/asyncweb/app"
	"github.com/favbox/asyncweb/app/server"
	"github.com/favbox/asyncweb/extension/sse"
	"github.com/favbox/asyncweb/protocol/consts"
)

func main() {
	w := server.Default(server.WithHostPorts(":8080"))

	prices := sse.New("/price").SetRetry(3000).OnConnect(func(c *sse.Client) {
		if id := c.LastEventID(); id != "" {
			c.Send(&sse.Event{Event: "resume", Data: []byte(id)})
		}
	})
	w.AddHandler(prices)

	w.On("/", consts.MethodGet, func(r *app.Request) {
		r.SendString(consts.StatusOK, "text/plain", "GET /price with Accept: text/event-stream")
	})

	// 每秒向全部客户端广播一次报价
	go func() {
		for range time.Tick(time.Second) {
			now := time.Now()
			for _, stock := range []string{"AAPL", "AMZN"} {
				prices.Send(&sse.Event{
					Event: stock,
					ID:    strconv.FormatInt(now.UnixMilli(), 10),
					Data:  []byte(fmt.Sprintf("%f", fastrand.Float64()*100)),
				})
			}
		}
	}()

	w.Spin()
}
