package provisioner

import (
	"os"
	"testing"

	"github.com/sujalmh/storectl/pkg/k8sdriver"
)

func TestAllReadyRequiresNonEmptyAndAllReady(t *testing.T) {
	tests := []struct {
		name string
		pods []k8sdriver.PodReadiness
		want bool
	}{
		{name: "empty", pods: nil, want: false},
		{name: "one ready", pods: []k8sdriver.PodReadiness{{Name: "a", Ready: true}}, want: true},
		{name: "one not ready", pods: []k8sdriver.PodReadiness{{Name: "a", Ready: false}}, want: false},
		{name: "mixed", pods: []k8sdriver.PodReadiness{{Name: "a", Ready: true}, {Name: "b", Ready: false}}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := allReady(tt.pods); got != tt.want {
				t.Errorf("allReady(%+v) = %v, want %v", tt.pods, got, tt.want)
			}
		})
	}
}

func TestWriteTempValuesProducesReadableFile(t *testing.T) {
	path, err := writeTempValues(map[string]any{"foo": "bar"})
	if err != nil {
		t.Fatalf("writeTempValues() error: %v", err)
	}
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading temp values file: %v", err)
	}
	if len(data) == 0 {
		t.Error("writeTempValues() produced an empty file")
	}
}
