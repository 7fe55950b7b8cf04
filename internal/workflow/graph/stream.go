package graph

import (
	"context"

	wfmodel "agentic-rag-api/internal/workflow/model"
)

// Event 流式运行的事件：Update 为节点增量；Final 或 Err 为终止事件
type Event struct {
	Update *wfmodel.Update
	Final  *wfmodel.State
	Err    error
}

// Terminal 是否为终止事件
func (e Event) Terminal() bool {
	return e.Final != nil || e.Err != nil
}

// Stream 异步运行，按执行顺序逐个发送节点增量，最后发送一个终止事件后关闭通道。
// ctx 取消后生产者退出，不保证终止事件被送达。
func (c *Controller) Stream(ctx context.Context, in Input) <-chan Event {
	ch := make(chan Event)
	go func() {
		defer close(ch)

		send := func(ev Event) bool {
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		final, err := c.Execute(ctx, in, func(ctx context.Context, u wfmodel.Update) error {
			u.Documents = append([]wfmodel.Passage(nil), u.Documents...)
			if !send(Event{Update: &u}) {
				return ctx.Err()
			}
			return nil
		})
		if err != nil {
			send(Event{Err: err})
			return
		}
		send(Event{Final: final})
	}()
	return ch
}
