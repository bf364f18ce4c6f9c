package main

import (
	"context"
	"time"

	"github.com/kompox/k8socks/domain"
	"github.com/kompox/k8socks/domain/model"
	"github.com/kompox/k8socks/usecase/workload"
)

// markPruned marks live ledger records in namespace deleted when their
// workload was pruned or is no longer among the kept workloads. It returns
// the number of records updated.
func markPruned(ctx context.Context, ledger domain.SessionRepository, namespace string, out *workload.PruneOutput, now time.Time) (int, error) {
	kept := make(map[string]bool, len(out.Kept))
	for _, ref := range out.Kept {
		kept[ref.Name] = true
	}
	list, err := ledger.List(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, s := range list {
		if !s.Live() || s.Namespace != namespace || kept[s.WorkloadName] {
			continue
		}
		at := now
		s.DeletedAt = &at
		s.UpdatedAt = now
		if s.Status != model.SessionFailed {
			s.Status = model.SessionDeleted
		}
		s.Message = "pruned"
		if err := ledger.Update(ctx, s); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
