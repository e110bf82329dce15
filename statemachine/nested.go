package statemachine

import "context"

// Child drives a child flow embedded in a parent state.
//
// CS, CE and CP are the child's state, event and provider types, R is the
// child's result type and PS the parent's state type. Result detects the
// child's final state; Lift turns that result into a parent state; Wrap embeds
// every other child state back into the parent. A finished child is never
// wrapped, so the parent always moves on once the child is done.
type Child[CS, CE, CP, R, PS any] struct {
	Accept Transition[CS, CE, CP]
	Result func(CS) (R, bool)
	Lift   func(ctx context.Context, result R) (PS, error)
	Wrap   func(CS) PS
}

// Step feeds event to the child in state and maps the outcome to a parent state.
func (c Child[CS, CE, CP, R, PS]) Step( //nolint:ireturn
	ctx context.Context, state CS, event CE, provider CP,
) (PS, error) {
	next, err := c.Accept(ctx, state, event, provider)
	if err != nil {
		var zero PS

		return zero, err
	}

	return c.Settle(ctx, next)
}

// Settle maps an already computed child state to a parent state. Parents use
// it when they build the child state themselves instead of asking the child.
func (c Child[CS, CE, CP, R, PS]) Settle(ctx context.Context, next CS) (PS, error) { //nolint:ireturn
	if result, done := c.Result(next); done {
		return c.Lift(ctx, result)
	}

	return c.Wrap(next), nil
}
