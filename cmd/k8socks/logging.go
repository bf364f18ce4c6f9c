package main

import (
	"context"
	"time"

	"github.com/kompox/k8socks/internal/logging"
)

// withCmdRunLogger emits a span around a command run.
//
//	ctx, cleanup := withCmdRunLogger(ctx, "deploy", namespace)
//	defer func() { cleanup(err) }()
//
// Start:   CMD:<operation>/S
// Success: CMD:<operation>/EOK
// Failure: CMD:<operation>/EFAIL (err truncated to 32 chars)
//
// Span lines are debug level; the runId comes from the root logger.
func withCmdRunLogger(ctx context.Context, operation, resourceID string) (context.Context, func(err error)) {
	startAt := time.Now()

	logger := logging.FromContext(ctx).With("resourceId", resourceID)
	ctx = logging.WithLogger(ctx, logger)
	logger.Debug(ctx, "CMD:"+operation+"/S")

	cleanup := func(err error) {
		elapsed := time.Since(startAt).Seconds()
		if err == nil {
			logger.Debug(ctx, "CMD:"+operation+"/EOK", "err", "", "elapsed", elapsed)
			return
		}
		errStr := err.Error()
		if len(errStr) > 32 {
			errStr = errStr[:32] + "..."
		}
		logger.Debug(ctx, "CMD:"+operation+"/EFAIL", "err", errStr, "elapsed", elapsed)
	}
	return ctx, cleanup
}
