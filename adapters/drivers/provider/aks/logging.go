package aks

import (
	"context"
	"time"

	"github.com/kompox/k8socks/internal/logging"
)

// withMethodLogger emits AKS:<method>:START and returns a context carrying
// driver=AKS.<method>, plus a cleanup that emits END:OK or END:FAILED with
// the elapsed seconds.
//
//	ctx, cleanup := d.withMethodLogger(ctx, "Kubeconfig")
//	defer func() { cleanup(err) }()
func (d *driver) withMethodLogger(ctx context.Context, method string) (context.Context, func(err error)) {
	startAt := time.Now()
	logger := logging.FromContext(ctx).With("driver", "AKS."+method, "cluster", d.ClusterName)
	ctx = logging.WithLogger(ctx, logger)
	logger.Debug(ctx, "AKS:"+method+":START")

	return ctx, func(err error) {
		elapsed := time.Since(startAt).Seconds()
		if err == nil {
			logger.Debug(ctx, "AKS:"+method+":END:OK", "elapsed", elapsed)
			return
		}
		errStr := err.Error()
		if len(errStr) > 64 {
			errStr = errStr[:64] + "..."
		}
		logger.Warn(ctx, "AKS:"+method+":END:FAILED", "err", errStr, "elapsed", elapsed)
	}
}
