// Package k8sdriver drives the Kubernetes API to provision and tear down
// per-store namespaces and to track provisioning job completion (C6).
package k8sdriver

import (
	"fmt"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
)

// Driver wraps a Kubernetes clientset with the operations the provisioning
// worker needs.
type Driver struct {
	clientset kubernetes.Interface
}

// NewFromKubeconfig builds a Driver from a kubeconfig file path, or from
// the in-cluster service account config when path is empty.
func NewFromKubeconfig(path string) (*Driver, error) {
	loadingRules := clientcmd.NewDefaultClientConfigLoadingRules()
	if path != "" {
		loadingRules.ExplicitPath = path
	}
	clientConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(
		loadingRules, &clientcmd.ConfigOverrides{})

	cfg, err := clientConfig.ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("building kubernetes client config: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating kubernetes clientset: %w", err)
	}

	return &Driver{clientset: clientset}, nil
}

// New wraps an existing clientset, primarily for tests against a fake
// clientset.
func New(clientset kubernetes.Interface) *Driver {
	return &Driver{clientset: clientset}
}
