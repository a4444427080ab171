package api

import "context"

type holderKey struct{}

type sessionHolder struct {
	username string
}

func withSessionHolder(ctx context.Context, h *sessionHolder) context.Context {
	return context.WithValue(ctx, holderKey{}, h)
}

func sessionHolderFrom(ctx context.Context) *sessionHolder {
	h, _ := ctx.Value(holderKey{}).(*sessionHolder)
	return h
}
