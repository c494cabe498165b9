package authz

import "context"

// Guard wraps fn so it runs only when a allows op. The body's error is
// returned unmodified.
func Guard(a Authorizer, op string, fn func(context.Context) error) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := a.Authorize(ctx, op); err != nil {
			return err
		}
		return fn(ctx)
	}
}

// Guard1 wraps a function returning one value
func Guard1[T any](a Authorizer, op string, fn func(context.Context) (T, error)) func(context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		if err := a.Authorize(ctx, op); err != nil {
			var zero T
			return zero, err
		}
		return fn(ctx)
	}
}

// GuardCall wraps a request/response function
func GuardCall[Req, Resp any](a Authorizer, op string, fn func(context.Context, Req) (Resp, error)) func(context.Context, Req) (Resp, error) {
	return func(ctx context.Context, req Req) (Resp, error) {
		if err := a.Authorize(ctx, op); err != nil {
			var zero Resp
			return zero, err
		}
		return fn(ctx, req)
	}
}
