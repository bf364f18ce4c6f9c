package workload

import (
	"context"
	"errors"

	"github.com/kompox/k8socks/domain/model"
	"github.com/kompox/k8socks/internal/logging"
)

type PruneInput struct {
	Namespace string `json:"namespace"`
	// All deletes every managed workload, expired or not.
	All bool `json:"all"`
	// DryRun reports what would be deleted without deleting.
	DryRun bool `json:"dry_run"`
}

type PruneOutput struct {
	Deleted []model.WorkloadRef `json:"deleted"`
	Kept    []model.WorkloadRef `json:"kept"`
}

// Prune deletes managed workloads whose TTL elapsed, or all of them with
// All. Workloads without a TTL annotation are pruned only with All.
// Workloads that vanish concurrently count as deleted.
func (u *UseCase) Prune(ctx context.Context, in *PruneInput) (*PruneOutput, error) {
	if in == nil {
		in = &PruneInput{}
	}
	logger := logging.FromContext(ctx)
	list, err := u.List(ctx, &ListInput{Namespace: in.Namespace})
	if err != nil {
		return nil, err
	}

	now := u.now()
	out := &PruneOutput{Deleted: []model.WorkloadRef{}, Kept: []model.WorkloadRef{}}
	for _, w := range list.Workloads {
		if !in.All && !w.Expired(now) {
			out.Kept = append(out.Kept, w.Ref)
			continue
		}
		if in.DryRun {
			out.Deleted = append(out.Deleted, w.Ref)
			continue
		}
		ref := w.Ref
		if err := u.Delete(ctx, &ref); err != nil && !errors.Is(err, model.ErrWorkloadNotFound) {
			return out, err
		}
		logger.Info(ctx, "workload pruned", "workload", ref.Name, "namespace", ref.Namespace, "phase", w.Phase)
		out.Deleted = append(out.Deleted, ref)
	}
	return out, nil
}
