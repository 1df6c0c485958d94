package authcore

import "context"

// clientKey selects one piece of caller metadata stored on a context.
type clientKey uint8

const (
	clientIPKey clientKey = iota
	userAgentKey
)

// WithClientIP records the caller's IP address on ctx. Login throttling keys
// on it and audit events carry it.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// WithUserAgent records the HTTP User-Agent on ctx for audit events.
func WithUserAgent(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, userAgentKey, userAgent)
}

func clientIPFromContext(ctx context.Context) string { return clientValue(ctx, clientIPKey) }
func userAgentFromContext(ctx context.Context) string { return clientValue(ctx, userAgentKey) }

func clientValue(ctx context.Context, key clientKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
