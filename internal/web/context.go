package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/csvmerge/internal/core"
)

// WithRequestMetadata adds the client IP and User-Agent to ctx for run
// history. RemoteAddr has already been rewritten by TrustedRealIP.
func WithRequestMetadata(ctx context.Context, r *http.Request) context.Context {
	ctx = core.ContextWithIPAddress(ctx, r.RemoteAddr)
	ctx = core.ContextWithUserAgent(ctx, r.UserAgent())
	return core.ContextWithOrigin(ctx, core.OriginAPI)
}
