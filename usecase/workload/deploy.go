package workload

import (
	"context"
	"encoding/base64"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	"github.com/kompox/k8socks/domain/model"
	"github.com/kompox/k8socks/internal/logging"
	"github.com/kompox/k8socks/internal/naming"
	"github.com/kompox/k8socks/internal/sshkey"
)

// Deploy creates the workload pod once, without retries, and returns its
// reference. Key problems wrap model.ErrCredentialRead and API failures
// wrap model.ErrAPI.
func (u *UseCase) Deploy(ctx context.Context) (*model.WorkloadRef, error) {
	logger := logging.FromContext(ctx)

	nameFunc := u.NameFunc
	if nameFunc == nil {
		nameFunc = naming.WorkloadName
	}
	name, err := nameFunc()
	if err != nil {
		return nil, err
	}

	pod, err := u.Manifest(name)
	if err != nil {
		return nil, err
	}
	logger.Debug(ctx, "creating workload pod",
		"name", name,
		"namespace", u.Namespace,
		"image", u.Spec.Image,
		"ttl_seconds", u.Spec.TTLSeconds)

	created, err := u.Client.CoreV1().Pods(u.Namespace).Create(ctx, pod, metav1.CreateOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: create pod %s/%s: %w", model.ErrAPI, u.Namespace, name, err)
	}

	ref := &model.WorkloadRef{Name: created.Name, Namespace: created.Namespace}
	if ref.Namespace == "" {
		ref.Namespace = u.Namespace
	}
	logger.Info(ctx, "workload deployed", "workload", ref.Name, "namespace", ref.Namespace)
	return ref, nil
}

// Manifest reads and validates the public key and returns the pod Deploy
// would create under name.
func (u *UseCase) Manifest(name string) (*corev1.Pod, error) {
	key, err := u.publicKey()
	if err != nil {
		return nil, err
	}
	return BuildManifest(u.Spec, name, u.Namespace, base64.StdEncoding.EncodeToString(key)), nil
}

func (u *UseCase) publicKey() ([]byte, error) {
	if len(u.Spec.InjectedPublicKey) > 0 {
		return sshkey.ParsePublicKey(u.Spec.InjectedPublicKey)
	}
	if u.PublicKeyPath == "" {
		return nil, fmt.Errorf("%w: no public key configured", model.ErrCredentialRead)
	}
	return sshkey.ReadPublicKey(u.PublicKeyPath)
}
