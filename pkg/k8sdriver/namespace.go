package k8sdriver

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// NamespaceExists reports whether a namespace exists.
func (d *Driver) NamespaceExists(ctx context.Context, namespace string) (bool, error) {
	_, err := d.clientset.CoreV1().Namespaces().Get(ctx, namespace, metav1.GetOptions{})
	if err != nil {
		if apierrors.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("reading namespace %s: %w", namespace, err)
	}
	return true, nil
}

// EnsureNamespace creates the namespace if it does not already exist.
func (d *Driver) EnsureNamespace(ctx context.Context, namespace string) error {
	exists, err := d.NamespaceExists(ctx, namespace)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{Name: namespace},
	}
	if _, err := d.clientset.CoreV1().Namespaces().Create(ctx, ns, metav1.CreateOptions{}); err != nil {
		if apierrors.IsAlreadyExists(err) {
			return nil
		}
		return fmt.Errorf("creating namespace %s: %w", namespace, err)
	}
	return nil
}

// DeleteNamespace deletes a namespace, tolerating it already being absent.
func (d *Driver) DeleteNamespace(ctx context.Context, namespace string) error {
	err := d.clientset.CoreV1().Namespaces().Delete(ctx, namespace, metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("deleting namespace %s: %w", namespace, err)
	}
	return nil
}

// WaitForNamespaceDeletion polls until the namespace is gone or timeout
// elapses.
func (d *Driver) WaitForNamespaceDeletion(ctx context.Context, namespace string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		exists, err := d.NamespaceExists(ctx, namespace)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}
		if err := sleepOrDone(ctx, 5*time.Second); err != nil {
			return err
		}
	}
	return fmt.Errorf("namespace %s deletion timed out after %s", namespace, timeout)
}

// PodReadiness describes whether a pod's containers are all ready.
type PodReadiness struct {
	Name  string
	Ready bool
}

// PodStatus lists pods matching a label selector and whether each is
// fully ready.
func (d *Driver) PodStatus(ctx context.Context, namespace, labelSelector string) ([]PodReadiness, error) {
	pods, err := d.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: labelSelector})
	if err != nil {
		return nil, fmt.Errorf("listing pods in %s: %w", namespace, err)
	}

	results := make([]PodReadiness, 0, len(pods.Items))
	for _, pod := range pods.Items {
		results = append(results, PodReadiness{Name: pod.Name, Ready: allContainersReady(&pod)})
	}
	return results, nil
}

func allContainersReady(pod *corev1.Pod) bool {
	if len(pod.Status.ContainerStatuses) == 0 {
		return false
	}
	for _, cs := range pod.Status.ContainerStatuses {
		if !cs.Ready {
			return false
		}
	}
	return true
}

func sleepOrDone(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
