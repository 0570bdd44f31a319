package core

import "context"

type contextKey string

const (
	ctxKeyIPAddress contextKey = "run_ip"
	ctxKeyUserAgent contextKey = "run_ua"
	ctxKeyOrigin    contextKey = "run_origin"
)

// Origins recorded in run history.
const (
	OriginAPI = "api"
	OriginCLI = "cli"
)

// ContextWithIPAddress adds the client IP to ctx for run history.
func ContextWithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ctxKeyIPAddress, ip)
}

// ContextWithUserAgent adds the client User-Agent to ctx for run history.
func ContextWithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, ctxKeyUserAgent, ua)
}

// ContextWithOrigin records which front end started the run.
func ContextWithOrigin(ctx context.Context, origin string) context.Context {
	return context.WithValue(ctx, ctxKeyOrigin, origin)
}

func stringFromContext(ctx context.Context, key contextKey) string {
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}

// GetIPAddressFromContext extracts the client IP from ctx.
func GetIPAddressFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxKeyIPAddress)
}

// GetUserAgentFromContext extracts the User-Agent from ctx.
func GetUserAgentFromContext(ctx context.Context) string {
	return stringFromContext(ctx, ctxKeyUserAgent)
}

// GetOriginFromContext returns the run origin, OriginAPI when unset.
func GetOriginFromContext(ctx context.Context) string {
	if o := stringFromContext(ctx, ctxKeyOrigin); o != "" {
		return o
	}
	return OriginAPI
}
