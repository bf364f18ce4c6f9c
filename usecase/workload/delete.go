package workload

import (
	"context"
	"fmt"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"

	"github.com/kompox/k8socks/domain/model"
	"github.com/kompox/k8socks/internal/logging"
)

// Delete removes the pod immediately with background propagation. A pod
// that is already gone yields model.ErrWorkloadNotFound.
func (u *UseCase) Delete(ctx context.Context, ref *model.WorkloadRef) error {
	logger := logging.FromContext(ctx)
	err := u.Client.CoreV1().Pods(ref.Namespace).Delete(ctx, ref.Name, metav1.DeleteOptions{
		GracePeriodSeconds: ptr.To(int64(0)),
		PropagationPolicy:  ptr.To(metav1.DeletePropagationBackground),
	})
	if apierrors.IsNotFound(err) {
		return fmt.Errorf("%w: %s", model.ErrWorkloadNotFound, ref)
	}
	if err != nil {
		return fmt.Errorf("%w: delete pod %s: %w", model.ErrAPI, ref, err)
	}
	logger.Debug(ctx, "workload delete requested", "workload", ref.Name, "namespace", ref.Namespace)
	return nil
}
