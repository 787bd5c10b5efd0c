package httpapi

import (
	"context"
	"net/http"
	"time"
)

func shutdownWithTimeout(srv *http.Server, deadline time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), deadline)
	defer cancel()
	return srv.Shutdown(ctx)
}
