package workload

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kompox/k8socks/domain/model"
)

type ListInput struct {
	// Namespace to search. Empty means the UseCase namespace.
	Namespace string `json:"namespace"`
}

type ListOutput struct {
	Workloads []*model.WorkloadInfo `json:"workloads"`
}

// List returns the managed workloads in a namespace, oldest first.
func (u *UseCase) List(ctx context.Context, in *ListInput) (*ListOutput, error) {
	ns := u.Namespace
	if in != nil && in.Namespace != "" {
		ns = in.Namespace
	}
	pods, err := u.Client.CoreV1().Pods(ns).List(ctx, metav1.ListOptions{LabelSelector: LabelSelector})
	if err != nil {
		return nil, fmt.Errorf("%w: list pods in %s: %w", model.ErrAPI, ns, err)
	}
	out := &ListOutput{Workloads: make([]*model.WorkloadInfo, 0, len(pods.Items))}
	for i := range pods.Items {
		out.Workloads = append(out.Workloads, infoOf(&pods.Items[i]))
	}
	sort.SliceStable(out.Workloads, func(i, j int) bool {
		return out.Workloads[i].CreatedAt.Before(out.Workloads[j].CreatedAt)
	})
	return out, nil
}

func infoOf(pod *corev1.Pod) *model.WorkloadInfo {
	info := &model.WorkloadInfo{
		Ref:       model.WorkloadRef{Name: pod.Name, Namespace: pod.Namespace},
		Phase:     string(pod.Status.Phase),
		CreatedAt: pod.CreationTimestamp.Time,
	}
	for _, c := range pod.Spec.Containers {
		if c.Name == ContainerName {
			info.Image = c.Image
		}
	}
	if ttl, err := strconv.ParseUint(pod.Annotations[AnnotationTTL], 10, 64); err == nil && ttl > 0 {
		info.TTLSeconds = ttl
		if !info.CreatedAt.IsZero() {
			info.ExpiresAt = info.CreatedAt.Add(time.Duration(ttl) * time.Second)
		}
	}
	return info
}
