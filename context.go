package goSession

import "context"

type clientMetaKey struct{}

// WithClientIP returns ctx carrying ip as the client address. Audit events and
// new session records fall back to it when no explicit [ClientMeta] is given.
func WithClientIP(ctx context.Context, ip string) context.Context {
	meta := ClientMetaFromContext(ctx)
	meta.IP = ip
	return context.WithValue(ctx, clientMetaKey{}, meta)
}

// WithUserAgent returns ctx carrying the client's User-Agent string.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	meta := ClientMetaFromContext(ctx)
	meta.UserAgent = userAgent
	return context.WithValue(ctx, clientMetaKey{}, meta)
}

// ClientMetaFromContext returns the metadata attached by [WithClientIP] and
// [WithUserAgent]. A nil ctx yields the zero value.
func ClientMetaFromContext(ctx context.Context) ClientMeta {
	if ctx == nil {
		return ClientMeta{}
	}
	meta, _ := ctx.Value(clientMetaKey{}).(ClientMeta)
	return meta
}

// withClientMeta fills fields missing from ctx with those of meta. Values
// already in ctx are kept.
func withClientMeta(ctx context.Context, meta ClientMeta) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	current := ClientMetaFromContext(ctx)
	merged := current
	if merged.IP == "" {
		merged.IP = meta.IP
	}
	if merged.UserAgent == "" {
		merged.UserAgent = meta.UserAgent
	}
	if merged == current {
		return ctx
	}
	return context.WithValue(ctx, clientMetaKey{}, merged)
}
