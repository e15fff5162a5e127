/*
Copyright (c) 2025 Mike Lane

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in all
copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
SOFTWARE.
*/

package planner

import (
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/mikelane/ns-migrator/internal/resource"
)

const (
	// RootCACertConfigMap is published into every namespace by the
	// kube-controller-manager.
	RootCACertConfigMap = "kube-root-ca.crt"

	// ServiceCACertConfigMap is published into every namespace on OpenShift.
	ServiceCACertConfigMap = "openshift-service-ca.crt"

	// DefaultLocalStorageMarker marks storage classes backed by node-local disks.
	DefaultLocalStorageMarker = "local"
)

// Rule names the rule behind a Decision.
type Rule string

const (
	RuleNone         Rule = ""
	RuleReservedName Rule = "ReservedName"
	RuleLocalStorage Rule = "LocalStorage"
	RuleBoundVolume  Rule = "BoundVolume"
)

// Decision is the planner verdict for one resource.
type Decision struct {
	Migrate bool
	Rule    Rule
	Reason  string
}

// Config tunes the skip rules.
type Config struct {
	// ReservedConfigMaps are ConfigMap names that are never copied.
	ReservedConfigMaps []string
	// LocalStorageMarker is matched case-insensitively against storage class names.
	LocalStorageMarker string
}

// DefaultConfig returns the default planner configuration
func DefaultConfig() Config {
	return Config{
		ReservedConfigMaps: []string{RootCACertConfigMap, ServiceCACertConfigMap},
		LocalStorageMarker: DefaultLocalStorageMarker,
	}
}

// Planner applies the skip rules and sanitizes copies
type Planner struct {
	reserved map[string]struct{}
	marker   string
}

// New creates a Planner. Empty fields of cfg fall back to DefaultConfig.
func New(cfg Config) *Planner {
	defaults := DefaultConfig()
	if len(cfg.ReservedConfigMaps) == 0 {
		cfg.ReservedConfigMaps = defaults.ReservedConfigMaps
	}
	if cfg.LocalStorageMarker == "" {
		cfg.LocalStorageMarker = defaults.LocalStorageMarker
	}

	reserved := make(map[string]struct{}, len(cfg.ReservedConfigMaps))
	for _, name := range cfg.ReservedConfigMaps {
		reserved[name] = struct{}{}
	}

	return &Planner{
		reserved: reserved,
		marker:   strings.ToLower(cfg.LocalStorageMarker),
	}
}

// ShouldMigrate reports whether d is copied to the target namespace.
func (p *Planner) ShouldMigrate(d resource.Descriptor) bool {
	return p.Evaluate(d).Migrate
}

// Evaluate applies the reserved-name rule and then the storage-locality rule.
func (p *Planner) Evaluate(d resource.Descriptor) Decision {
	if reason, ok := p.reservedReason(d); ok {
		return Decision{Rule: RuleReservedName, Reason: reason}
	}

	if d.Kind == resource.KindPersistentVolumeClaim {
		if pvc, ok := d.Object.(*corev1.PersistentVolumeClaim); ok {
			class := ""
			if pvc.Spec.StorageClassName != nil {
				class = *pvc.Spec.StorageClassName
			}
			if class == "" {
				return Decision{Rule: RuleLocalStorage, Reason: "claim has no storage class"}
			}
			if strings.Contains(strings.ToLower(class), p.marker) {
				return Decision{
					Rule:   RuleLocalStorage,
					Reason: fmt.Sprintf("storage class %q is node-local", class),
				}
			}
		}
	}

	return Decision{Migrate: true}
}

// EvaluateMove is Evaluate for a request that deletes each original after
// copying it. A claim bound to a volume is skipped then: the volume's claimRef
// still names the original, and deleting the original releases the volume
// to its reclaim policy.
func (p *Planner) EvaluateMove(d resource.Descriptor, removesOriginal bool) Decision {
	decision := p.Evaluate(d)
	if !decision.Migrate || !removesOriginal || d.Kind != resource.KindPersistentVolumeClaim {
		return decision
	}
	if pvc, ok := d.Object.(*corev1.PersistentVolumeClaim); ok && pvc.Spec.VolumeName != "" {
		return Decision{
			Rule:   RuleBoundVolume,
			Reason: fmt.Sprintf("claim is bound to volume %q, deleting the original would release it", pvc.Spec.VolumeName),
		}
	}
	return decision
}

// IsPlatformManaged reports whether d is provisioned by the platform in
// every namespace, and so neither copied nor counted as residual.
func (p *Planner) IsPlatformManaged(d resource.Descriptor) bool {
	_, ok := p.reservedReason(d)
	return ok
}

func (p *Planner) reservedReason(d resource.Descriptor) (string, bool) {
	switch d.Kind {
	case resource.KindConfigMap:
		if _, ok := p.reserved[d.Name()]; ok {
			return fmt.Sprintf("configmap %q is provisioned by the platform", d.Name()), true
		}
	case resource.KindSecret:
		if secret, ok := d.Object.(*corev1.Secret); ok && secret.Type == corev1.SecretTypeServiceAccountToken {
			return fmt.Sprintf("secret %q is a service account token", d.Name()), true
		}
	}
	return "", false
}

// SanitizeForTarget returns a deep copy of d addressed to targetNamespace,
// with the resource version and other server-assigned metadata cleared.
// Owner references are dropped as owner UIDs never resolve in another
// namespace. The input is not modified.
func SanitizeForTarget(d resource.Descriptor, targetNamespace string) resource.Descriptor {
	obj := d.Object.DeepCopyObject().(client.Object)

	obj.SetNamespace(targetNamespace)
	obj.SetResourceVersion("")
	obj.SetUID("")
	obj.SetGeneration(0)
	obj.SetCreationTimestamp(metav1.Time{})
	obj.SetManagedFields(nil)
	obj.SetOwnerReferences(nil)
	obj.SetDeletionTimestamp(nil)
	obj.SetDeletionGracePeriodSeconds(nil)

	return resource.Descriptor{Kind: d.Kind, Object: obj}
}
