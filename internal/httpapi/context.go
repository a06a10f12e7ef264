package httpapi

import (
	"context"
)

// serverBaseCtx is cancelled at process shutdown so in-flight sessions end
// with the server, not only with their clients.
var serverBaseCtx = context.Background()

// SetBaseContext sets the process-level base context used by handlers.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		serverBaseCtx = context.Background()
		return
	}
	serverBaseCtx = ctx
}

// joinContexts returns a context that is cancelled when either a or b is
// done. Call the returned cancel when the handler ends.
func joinContexts(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// sessionContext joins the request with the server and applies the session
// timeout when one is configured.
func sessionContext(reqCtx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := joinContexts(serverBaseCtx, reqCtx)
	if sessionTimeout <= 0 {
		return ctx, cancel
	}
	tctx, tcancel := context.WithTimeout(ctx, sessionTimeout)
	return tctx, func() {
		tcancel()
		cancel()
	}
}
