package actor

import (
	"context"
	"log/slog"
)

// Processor handles mailbox messages one at a time.
type Processor[Request, Response any] interface {
	Process(msg Message[Request, Response])
}

type processor[Request, Response any] struct {
	process func(Message[Request, Response])
}

func (p *processor[Request, Response]) Process(msg Message[Request, Response]) {
	p.process(msg)
}

func NewProcessor[Request, Response any](processorFunc func(Message[Request, Response])) Processor[Request, Response] {
	return &processor[Request, Response]{
		process: processorFunc,
	}
}

// SimpleProcessor adapts a request/response function. Messages whose context
// was cancelled while they sat in the mailbox are answered with the context
// error and f is never called for them.
func SimpleProcessor[Request, Response any](
	f func(ctx context.Context, req Request) (Response, error),
) Processor[Request, Response] {
	return NewProcessor(func(msg Message[Request, Response]) {
		ctx := msg.Context
		if ctx == nil {
			ctx = context.Background()
		}

		if err := ctx.Err(); err != nil {
			var zero Response

			msg.Reply(zero, err)

			return
		}

		resp, err := f(ctx, msg.Request)
		if err != nil && msg.ResponseChan == nil {
			slog.ErrorContext(ctx, "error processing message", "error", err)
		}

		msg.Reply(resp, err)
	})
}
