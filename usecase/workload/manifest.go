package workload

import (
	"fmt"
	"strconv"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/utils/ptr"

	"github.com/kompox/k8socks/domain/model"
)

// StartupScript installs the injected key, starts sshd in the background and
// kills it after ttl seconds so an orphaned pod terminates on its own.
func StartupScript(ttl uint64) string {
	return fmt.Sprintf(`echo "$%s" | base64 -d > /tmp/authorized_keys && `+
		`/usr/sbin/sshd -D -o 'AuthorizedKeysFile /tmp/authorized_keys' & PID=$! && `+
		`sleep %d && kill $PID`, EnvSSHPublicKey, ttl)
}

// BuildManifest returns the pod for spec. It performs no I/O and its output
// depends only on its arguments. User labels and annotations are applied
// after the tool's own keys and win on conflict. Resource quantities that do
// not parse are omitted; configuration validation rejects them earlier.
func BuildManifest(spec model.WorkloadSpec, name, namespace, keyBase64 string) *corev1.Pod {
	labels := map[string]string{
		LabelName:      LabelValue,
		LabelManagedBy: LabelValue,
	}
	for k, v := range spec.Labels {
		labels[k] = v
	}
	annotations := map[string]string{
		AnnotationTTL: strconv.FormatUint(spec.TTLSeconds, 10),
	}
	for k, v := range spec.Annotations {
		annotations[k] = v
	}

	container := corev1.Container{
		Name:            ContainerName,
		Image:           spec.Image,
		ImagePullPolicy: corev1.PullIfNotPresent,
		Command:         []string{"/bin/sh", "-c", StartupScript(spec.TTLSeconds)},
		Ports: []corev1.ContainerPort{{
			Name:          ContainerPortName,
			ContainerPort: ContainerPort,
			Protocol:      corev1.ProtocolTCP,
		}},
		Env: []corev1.EnvVar{{Name: EnvSSHPublicKey, Value: keyBase64}},
	}
	if requests := resourceRequests(spec.Resources); len(requests) > 0 {
		container.Resources.Requests = requests
	}

	return &corev1.Pod{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Pod"},
		ObjectMeta: metav1.ObjectMeta{
			Name:        name,
			Namespace:   namespace,
			Labels:      labels,
			Annotations: annotations,
		},
		Spec: corev1.PodSpec{
			Containers:                    []corev1.Container{container},
			RestartPolicy:                 corev1.RestartPolicyNever,
			AutomountServiceAccountToken:  ptr.To(false),
			TerminationGracePeriodSeconds: ptr.To(int64(TerminationGrace)),
		},
	}
}

func resourceRequests(r *model.ResourceRequests) corev1.ResourceList {
	if r == nil {
		return nil
	}
	list := corev1.ResourceList{}
	if q, err := resource.ParseQuantity(r.CPU); r.CPU != "" && err == nil {
		list[corev1.ResourceCPU] = q
	}
	if q, err := resource.ParseQuantity(r.Memory); r.Memory != "" && err == nil {
		list[corev1.ResourceMemory] = q
	}
	return list
}
