package workload

import (
	"context"
	"errors"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/kompox/k8socks/domain/model"
	"github.com/kompox/k8socks/internal/logging"
)

// WaitReady polls the pod until it reaches phase Running.
//
// Errors:
//   - model.ErrTimeout when ReadyTimeout elapses first
//   - model.ErrWorkloadTerminated (also model.ErrAPI) when the pod is Failed or Succeeded
//   - model.ErrAPI when a Get fails
//   - ctx.Err() when ctx is cancelled
func (u *UseCase) WaitReady(ctx context.Context, ref *model.WorkloadRef) (*model.WorkloadDetails, error) {
	logger := logging.FromContext(ctx).With("workload", ref.Name, "namespace", ref.Namespace)
	pods := u.Client.CoreV1().Pods(ref.Namespace)

	var details *model.WorkloadDetails
	var lastPhase corev1.PodPhase
	err := wait.PollUntilContextTimeout(ctx, u.pollInterval(), u.readyTimeout(), true, func(ctx context.Context) (bool, error) {
		pod, err := pods.Get(ctx, ref.Name, metav1.GetOptions{})
		if err != nil {
			if ctx.Err() != nil {
				// Deadline hit mid-request; report it as the poll timeout.
				return false, ctx.Err()
			}
			return false, fmt.Errorf("%w: get pod %s: %w", model.ErrAPI, ref, err)
		}
		if pod.Status.Phase != lastPhase {
			logger.Debug(ctx, "workload phase", "phase", pod.Status.Phase)
			lastPhase = pod.Status.Phase
		}
		switch pod.Status.Phase {
		case corev1.PodRunning:
			details = detailsOf(ref, pod)
			return true, nil
		case corev1.PodFailed, corev1.PodSucceeded:
			return false, fmt.Errorf("%w: %w: pod %s is %s%s", model.ErrAPI, model.ErrWorkloadTerminated, ref, pod.Status.Phase, reasonOf(pod))
		}
		return false, nil
	})
	switch {
	case err == nil:
		logger.Info(ctx, "workload ready", "pod_ip", details.PodIP, "node", details.Node)
		return details, nil
	case errors.Is(err, model.ErrAPI):
		return nil, err
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case wait.Interrupted(err):
		return nil, fmt.Errorf("%w: %s not running after %s (last phase %q)", model.ErrTimeout, ref, u.readyTimeout(), lastPhase)
	default:
		return nil, err
	}
}

func detailsOf(ref *model.WorkloadRef, pod *corev1.Pod) *model.WorkloadDetails {
	d := &model.WorkloadDetails{
		Ref:   *ref,
		Phase: string(pod.Status.Phase),
		PodIP: pod.Status.PodIP,
		Node:  pod.Spec.NodeName,
	}
	if pod.Status.StartTime != nil {
		d.StartedAt = pod.Status.StartTime.Time
	}
	return d
}

func reasonOf(pod *corev1.Pod) string {
	for _, cs := range pod.Status.ContainerStatuses {
		if t := cs.State.Terminated; t != nil {
			return fmt.Sprintf(" (container %s exited %d: %s)", cs.Name, t.ExitCode, t.Reason)
		}
	}
	if pod.Status.Reason != "" {
		return " (" + pod.Status.Reason + ")"
	}
	return ""
}
