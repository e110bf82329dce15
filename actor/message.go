package actor

import (
	"context"
	"time"

	"github.com/keyapp-labs/flowkit/try"
	"go.uber.org/atomic"
)

const (
	claimPending int32 = iota
	claimStarted
	claimAbandoned
)

// Message is one mailbox entry. Context is the caller's context at submit
// time; processors must honour its cancellation. A nil ResponseChan marks a
// message nobody waits for.
type Message[Request, Response any] struct {
	Context      context.Context //nolint:containedctx
	Request      Request
	ResponseChan chan try.Try[Response]
	Enqueued     time.Time

	claim *atomic.Int32
}

// Reply delivers the response, if anyone asked for one. The channel always has
// room for exactly one value, so Reply never blocks on a caller that gave up.
func (m Message[Request, Response]) Reply(value Response, err error) {
	if m.ResponseChan == nil {
		return
	}

	select {
	case m.ResponseChan <- try.Of(value, err):
	default:
	}
}

// start claims the message for the processor. It fails once the caller has
// abandoned it; after it succeeds the caller always waits for the reply.
func (m Message[Request, Response]) start() bool {
	return m.claim == nil || m.claim.CompareAndSwap(claimPending, claimStarted)
}

// abandon claims the message for a caller whose context ended. It fails when
// the processor already started it.
func (m Message[Request, Response]) abandon() bool {
	return m.claim != nil && m.claim.CompareAndSwap(claimPending, claimAbandoned)
}
