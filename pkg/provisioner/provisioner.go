// Package provisioner implements the provisioning worker state machine
// (C8): it drives a pending store through namespace creation, Helm
// install, job/pod readiness, and into the ready state, or records a
// failure; and it tears a store down again on delete.
package provisioner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sujalmh/storectl/pkg/helmdriver"
	"github.com/sujalmh/storectl/pkg/k8sdriver"
	"github.com/sujalmh/storectl/pkg/registry"
	"github.com/sujalmh/storectl/pkg/values"
)

const provisionJobName = "woocommerce-install"

// podReadyTimeout bounds how long Provision waits for the WordPress and
// MySQL pods to report ready after the install job completes.
const podReadyTimeout = 10 * time.Minute

// namespaceDeleteTimeout bounds how long Deprovision waits for namespace
// garbage collection after an uninstall.
const namespaceDeleteTimeout = 10 * time.Minute

// jobWaitTimeout bounds how long Provision waits for the chart's install
// job to finish.
const jobWaitTimeout = 15 * time.Minute

// jobFailureThreshold is how many times the install job's pod may fail
// before it is considered permanently failed.
const jobFailureThreshold = 5

// Provisioner drives stores through the provisioning and deprovisioning
// lifecycle.
type Provisioner struct {
	pool      *pgxpool.Pool
	helm      *helmdriver.Driver
	k8s       *k8sdriver.Driver
	valuesCfg values.BuildConfig
	logger    *slog.Logger
}

// New creates a Provisioner.
func New(pool *pgxpool.Pool, helm *helmdriver.Driver, k8s *k8sdriver.Driver, valuesCfg values.BuildConfig, logger *slog.Logger) *Provisioner {
	return &Provisioner{pool: pool, helm: helm, k8s: k8s, valuesCfg: valuesCfg, logger: logger}
}

// Provision drives a store from pending to ready, or logs an error and
// returns it for the caller's retry policy to act on. It does not write
// the ERROR status; MarkFailed does that.
func (p *Provisioner) Provision(ctx context.Context, storeID uuid.UUID) error {
	log := p.logger.With("store_id", storeID)
	log.Info("provision_store.start")

	reg := registry.NewStore(p.pool)
	store, err := reg.GetStore(ctx, storeID)
	if err != nil {
		if err == pgx.ErrNoRows {
			log.Info("provision_store.missing")
			return nil
		}
		return fmt.Errorf("loading store: %w", err)
	}

	if store.Status == registry.StoreReady {
		log.Info("provision_store.already_ready")
		return nil
	}

	if err := p.markProvisioning(ctx, storeID); err != nil {
		return fmt.Errorf("marking store provisioning: %w", err)
	}

	secrets, err := values.GenerateSecrets()
	if err != nil {
		return p.fail(log, fmt.Errorf("generating secrets: %w", err))
	}

	vals, err := values.Build(p.valuesCfg, values.StoreParams{
		Name:      store.Name,
		Domain:    store.Domain,
		Namespace: store.Namespace,
	}, secrets)
	if err != nil {
		return p.fail(log, fmt.Errorf("building values: %w", err))
	}

	valuesPath, err := writeTempValues(vals)
	if err != nil {
		return p.fail(log, fmt.Errorf("writing values file: %w", err))
	}
	defer os.Remove(valuesPath)

	log.Info("provision_store.ensure_namespace", "namespace", store.Namespace)
	if err := p.k8s.EnsureNamespace(ctx, store.Namespace); err != nil {
		return p.fail(log, fmt.Errorf("ensuring namespace: %w", err))
	}

	log.Info("provision_store.helm_install_start", "release", store.HelmReleaseName)
	if err := p.helm.Install(ctx, store.HelmReleaseName, p.valuesCfg.ChartPath, store.Namespace, valuesPath); err != nil {
		log.Error("provision_store.helm_install_failed", "error", err)
		return p.fail(log, fmt.Errorf("helm install: %w", err))
	}
	log.Info("provision_store.helm_install_complete", "release", store.HelmReleaseName)

	log.Info("provision_store.wait_job_start", "job", provisionJobName)
	if err := p.k8s.WaitForJobCompletion(ctx, store.Namespace, provisionJobName, jobWaitTimeout, jobFailureThreshold, "app=wordpress", p.logger); err != nil {
		log.Error("provision_store.wait_job_failed", "job", provisionJobName, "error", err)
		return p.fail(log, fmt.Errorf("waiting for install job: %w", err))
	}
	log.Info("provision_store.wait_job_complete", "job", provisionJobName)

	if err := p.waitPodsReady(ctx, store.Namespace); err != nil {
		return p.fail(log, err)
	}

	if err := reg.MarkStoreReady(ctx, storeID, "admin", secrets.AdminPassword); err != nil {
		return fmt.Errorf("marking store ready: %w", err)
	}
	log.Info("provision_store.ready")
	return nil
}

// Deprovision tears a store's infrastructure down and removes its
// registry row.
func (p *Provisioner) Deprovision(ctx context.Context, storeID uuid.UUID) error {
	log := p.logger.With("store_id", storeID)
	log.Info("delete_store.start")

	reg := registry.NewStore(p.pool)
	store, err := reg.GetStore(ctx, storeID)
	if err != nil {
		if err == pgx.ErrNoRows {
			log.Info("delete_store.missing")
			return nil
		}
		return fmt.Errorf("loading store: %w", err)
	}

	log.Info("delete_store.helm_uninstall", "release", store.HelmReleaseName)
	if err := p.helm.Uninstall(ctx, store.HelmReleaseName, store.Namespace); err != nil {
		return p.fail(log, fmt.Errorf("helm uninstall: %w", err))
	}

	log.Info("delete_store.delete_namespace", "namespace", store.Namespace)
	if err := p.k8s.DeleteNamespace(ctx, store.Namespace); err != nil {
		return p.fail(log, fmt.Errorf("deleting namespace: %w", err))
	}

	log.Info("delete_store.wait_namespace", "namespace", store.Namespace)
	if err := p.k8s.WaitForNamespaceDeletion(ctx, store.Namespace, namespaceDeleteTimeout); err != nil {
		return p.fail(log, fmt.Errorf("waiting for namespace deletion: %w", err))
	}

	if err := reg.DeleteStore(ctx, storeID); err != nil {
		return fmt.Errorf("deleting store record: %w", err)
	}
	log.Info("delete_store.done")
	return nil
}

// markProvisioning transitions a store into the provisioning state inside
// its own transaction, so a failure here never reaches the error-write
// path with a half-applied change.
func (p *Provisioner) markProvisioning(ctx context.Context, storeID uuid.UUID) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := registry.NewStore(tx).UpdateStoreStatus(ctx, storeID, registry.StoreProvisioning); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// fail logs a single attempt's failure. It does not persist anything: the
// ERROR status is only durable once the caller's retry policy has given up,
// at which point MarkFailed records it. Logging every attempt here, and
// writing the row only once, is what keeps PENDING -> ERROR terminal absent
// a new submission, instead of a transient failure within a redelivery
// chain flashing the row to ERROR and back.
func (p *Provisioner) fail(log *slog.Logger, cause error) error {
	log.Error("provision_store.error", "error", cause)
	return cause
}

// MarkFailed records a store's terminal failure. The caller is responsible
// for invoking this only once retries are exhausted. Per the
// two-transaction error-write rule, this always runs against a fresh
// transaction bound to the shared pool rather than whatever transaction the
// failing step may have been using, since that transaction may already be
// poisoned by the error being handled.
func (p *Provisioner) MarkFailed(ctx context.Context, storeID uuid.UUID, cause error) error {
	log := p.logger.With("store_id", storeID)

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		log.Error("failed to open error-write transaction", "error", err)
		return err
	}
	defer tx.Rollback(ctx)

	if err := registry.NewStore(tx).MarkStoreError(ctx, storeID, cause.Error()); err != nil {
		log.Error("failed to record store error", "error", err)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		log.Error("failed to commit error-write transaction", "error", err)
		return err
	}
	log.Info("provision_store.marked_error", "cause", cause.Error())
	return nil
}

// waitPodsReady polls the WordPress and MySQL pods until both report
// ready or podReadyTimeout elapses.
func (p *Provisioner) waitPodsReady(ctx context.Context, namespace string) error {
	deadline := time.Now().Add(podReadyTimeout)
	for {
		wordpress, err := p.k8s.PodStatus(ctx, namespace, "app=wordpress")
		if err != nil {
			return fmt.Errorf("checking wordpress pod status: %w", err)
		}
		mysql, err := p.k8s.PodStatus(ctx, namespace, "app=mysql")
		if err != nil {
			return fmt.Errorf("checking mysql pod status: %w", err)
		}

		if allReady(wordpress) && allReady(mysql) {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("pods not ready after %s", podReadyTimeout)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Second):
		}
	}
}

func allReady(pods []k8sdriver.PodReadiness) bool {
	if len(pods) == 0 {
		return false
	}
	for _, p := range pods {
		if !p.Ready {
			return false
		}
	}
	return true
}

func writeTempValues(vals map[string]any) (string, error) {
	f, err := os.CreateTemp("", "storectl-values-*.yaml")
	if err != nil {
		return "", err
	}
	path := f.Name()
	f.Close()

	if err := values.WriteFile(path, vals); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}
