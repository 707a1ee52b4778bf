// Package values assembles the Helm values used to provision a storefront,
// merging chart defaults with store-specific secrets and settings (C7).
package values

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// alphabet matches the character set used to generate storefront secrets.
const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomString returns a cryptographically random string of the given
// length drawn from alphabet.
func randomString(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating random string: %w", err)
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out), nil
}

// Secrets holds the generated credentials and WordPress salts for one
// provisioning run. AdminPassword is also recorded on the store row when
// the store becomes ready; the rest exist only inside the generated values
// file.
type Secrets struct {
	MySQLRootPassword string
	MySQLPassword     string
	AdminPassword     string
	Salts             map[string]string
}

var saltKeys = []string{
	"authKey", "secureAuthKey", "loggedInKey", "nonceKey",
	"authSalt", "secureAuthSalt", "loggedInSalt", "nonceSalt",
}

// GenerateSecrets produces a fresh set of random credentials and salts.
func GenerateSecrets() (Secrets, error) {
	s := Secrets{Salts: make(map[string]string, len(saltKeys))}

	var err error
	if s.MySQLRootPassword, err = randomString(32); err != nil {
		return Secrets{}, err
	}
	if s.MySQLPassword, err = randomString(32); err != nil {
		return Secrets{}, err
	}
	if s.AdminPassword, err = randomString(32); err != nil {
		return Secrets{}, err
	}
	for _, key := range saltKeys {
		salt, err := randomString(64)
		if err != nil {
			return Secrets{}, err
		}
		s.Salts[key] = salt
	}
	return s, nil
}

// StoreParams describes the store-specific fields needed to assemble Helm
// values, independent of the registry's row type.
type StoreParams struct {
	Name      string
	Domain    string
	Namespace string
}

// BuildConfig carries the settings needed to assemble and locate values,
// distinct from per-store secrets.
type BuildConfig struct {
	ChartPath        string
	ValuesProfile    string
	IngressClassName string
	TLSEnabled       bool
}

// localDomainSuffixes lists domain suffixes that never get TLS, regardless
// of the global TLSEnabled setting, because they resolve to loopback or
// wildcard DNS services used for local development.
var localDomainSuffixes = []string{".localtest.me", ".localhost", ".nip.io", ".sslip.io"}

// Build assembles the full values tree for a store: chart defaults
// deep-merged with store-specific dynamic values.
func Build(cfg BuildConfig, store StoreParams, secrets Secrets) (map[string]any, error) {
	base, err := loadBaseValues(cfg.ChartPath, cfg.ValuesProfile)
	if err != nil {
		return nil, err
	}

	tlsEnabled := cfg.TLSEnabled
	for _, suffix := range localDomainSuffixes {
		if strings.HasSuffix(store.Domain, suffix) {
			tlsEnabled = false
			break
		}
	}
	scheme := "http"
	if tlsEnabled {
		scheme = "https"
	}

	dynamic := map[string]any{
		"storeName": store.Name,
		"domain":    store.Domain,
		"namespace": map[string]any{"name": store.Namespace},
		"mysql": map[string]any{
			"rootPassword": secrets.MySQLRootPassword,
			"database":     "woocommerce",
			"user":         "woocommerce",
			"password":     secrets.MySQLPassword,
		},
		"wordpress": map[string]any{
			"adminUser":     "admin",
			"adminPassword": secrets.AdminPassword,
			"adminEmail":    "admin@example.com",
			"siteTitle":     store.Name,
			"siteUrl":       scheme + "://" + store.Domain,
			"salts":         secrets.Salts,
		},
		"ingress": map[string]any{
			"className": cfg.IngressClassName,
			"tls":       map[string]any{"enabled": tlsEnabled},
		},
	}

	return DeepMerge(base, dynamic), nil
}

// loadBaseValues reads the chart's profile-specific values file if present,
// falling back to the chart's default values.yaml.
func loadBaseValues(chartPath, profile string) (map[string]any, error) {
	candidate := filepath.Join(chartPath, fmt.Sprintf("values-%s.yaml", profile))
	path := candidate
	if _, err := os.Stat(candidate); err != nil {
		path = filepath.Join(chartPath, "values.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading base values file %s: %w", path, err)
	}

	var out map[string]any
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing base values file %s: %w", path, err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// DeepMerge overlays override onto base, merging nested maps recursively
// and replacing any non-map value wholesale. base is not mutated.
func DeepMerge(base, override map[string]any) map[string]any {
	merged := make(map[string]any, len(base))
	for k, v := range base {
		merged[k] = v
	}

	for key, value := range override {
		if overrideMap, ok := value.(map[string]any); ok {
			if baseMap, ok := merged[key].(map[string]any); ok {
				merged[key] = DeepMerge(baseMap, overrideMap)
				continue
			}
		}
		merged[key] = value
	}
	return merged
}

// WriteFile marshals values to YAML and writes them to path.
func WriteFile(path string, values map[string]any) error {
	data, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshaling values: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing values file %s: %w", path, err)
	}
	return nil
}
