package notify

import (
	"context"

	"SpyCanvas/internal/interfaces"
)

// Fanout 依次投递给多个 Publisher
type Fanout []interfaces.Publisher

func (f Fanout) Publish(ctx context.Context, topic string, n interfaces.Notification) {
	for _, p := range f {
		p.Publish(ctx, topic, n)
	}
}

// Nop 丢弃所有通知
type Nop struct{}

func (Nop) Publish(context.Context, string, interfaces.Notification) {}
