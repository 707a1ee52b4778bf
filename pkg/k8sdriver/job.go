package k8sdriver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// jobAbsentGracePeriod is how long a job may be absent-and-never-seen
// before PodStatus is consulted as an alternative completion signal. This
// covers the case where the job ran to completion and was garbage
// collected before the first poll observed it.
const jobAbsentGracePeriod = 180 * time.Second

// WaitForJobCompletion polls the given Job until it succeeds, fails
// failureThreshold times, or timeout elapses. If the job is never observed
// and remains absent past jobAbsentGracePeriod, readinessLabelSelector is
// used to check whether the workload it was meant to bootstrap is already
// running, treating that as an alternative success signal.
func (d *Driver) WaitForJobCompletion(ctx context.Context, namespace, jobName string, timeout time.Duration, failureThreshold int32, readinessLabelSelector string, logger *slog.Logger) error {
	deadline := time.Now().Add(timeout)
	waited := time.Duration(0)
	seenJob := false

	for time.Now().Before(deadline) {
		job, err := d.clientset.BatchV1().Jobs(namespace).Get(ctx, jobName, metav1.GetOptions{})
		if err != nil {
			if apierrors.IsNotFound(err) {
				if seenJob {
					logger.Info("provisioning job no longer present after completion", "job", jobName)
					return nil
				}
				if waited > jobAbsentGracePeriod {
					ready, rerr := d.anyPodReady(ctx, namespace, readinessLabelSelector)
					if rerr == nil && ready {
						logger.Info("provisioning job not found but workload is ready, treating as complete", "job", jobName, "waited", waited)
						return nil
					}
				}
			} else {
				return fmt.Errorf("reading job %s: %w", jobName, err)
			}
		} else {
			seenJob = true
			status := job.Status
			if status.Succeeded >= 1 {
				logger.Info("provisioning job succeeded", "job", jobName, "waited", waited)
				return nil
			}
			if status.Failed >= failureThreshold {
				return fmt.Errorf("job %s failed %d times", jobName, status.Failed)
			}
		}

		if err := sleepOrDone(ctx, 10*time.Second); err != nil {
			return err
		}
		waited += 10 * time.Second
	}

	return fmt.Errorf("job %s timed out after %s", jobName, timeout)
}

// anyPodReady reports whether any pod matching the label selector is
// fully ready, used as the fallback completion signal when a job's record
// has already been garbage collected.
func (d *Driver) anyPodReady(ctx context.Context, namespace, labelSelector string) (bool, error) {
	pods, err := d.PodStatus(ctx, namespace, labelSelector)
	if err != nil {
		return false, err
	}
	for _, p := range pods {
		if p.Ready {
			return true, nil
		}
	}
	return false, nil
}
