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

package namespace

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/mikelane/ns-migrator/internal/resource"
)

const (
	// ManagedByLabel marks namespaces created by the migrator.
	ManagedByLabel = "app.kubernetes.io/managed-by"
	managedByValue = "ns-migrator"

	// SourceAnnotation records which namespace a created namespace was migrated from.
	SourceAnnotation = "migrations.internal/source-namespace"
)

// protectedNamespaces are never deleted, even when empty.
var protectedNamespaces = map[string]struct{}{
	metav1.NamespaceDefault:   {},
	metav1.NamespaceSystem:    {},
	metav1.NamespacePublic:    {},
	corev1.NamespaceNodeLease: {},
}

// IsProtected reports whether name is a system namespace that must not be deleted
func IsProtected(name string) bool {
	_, ok := protectedNamespaces[name]
	return ok
}

// Manager handles namespace lifecycle for migrations
type Manager struct {
	client client.Client
}

// NewManager creates a new namespace manager
func NewManager(c client.Client) *Manager {
	return &Manager{client: c}
}

// EnsureNamespace creates the namespace name if it does not exist.
// source is recorded as an annotation on namespaces created here; pass ""
// when there is none. An existing namespace is success unless it is
// terminating.
func (m *Manager) EnsureNamespace(ctx context.Context, name, source string) error {
	ns := &corev1.Namespace{
		ObjectMeta: metav1.ObjectMeta{
			Name: name,
			Labels: map[string]string{
				ManagedByLabel: managedByValue,
			},
		},
	}
	if source != "" {
		ns.Annotations = map[string]string{SourceAnnotation: source}
	}

	err := m.client.Create(ctx, ns)
	if err == nil {
		return nil
	}
	if !errors.IsAlreadyExists(err) {
		return resource.Classify(resource.OpCreate, resource.KindNamespace, "", name, err)
	}

	// Namespace exists; make sure it can still receive objects
	existing := &corev1.Namespace{}
	if err := m.client.Get(ctx, types.NamespacedName{Name: name}, existing); err != nil {
		return resource.Classify(resource.OpGet, resource.KindNamespace, "", name, err)
	}
	if existing.DeletionTimestamp != nil || existing.Status.Phase == corev1.NamespaceTerminating {
		return &resource.OpError{
			Op:    resource.OpCreate,
			Kind:  resource.KindNamespace,
			Name:  name,
			Class: resource.ErrBackend,
			Err:   fmt.Errorf("namespace %s is terminating", name),
		}
	}

	return nil
}

// DeleteNamespace deletes the namespace name. A namespace that does not
// exist is already deleted and returns nil.
func (m *Manager) DeleteNamespace(ctx context.Context, name string) error {
	ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: name}}

	// Kubernetes cascades deletion to whatever is left in the namespace
	if err := m.client.Delete(ctx, ns); err != nil {
		if errors.IsNotFound(err) {
			return nil
		}
		return resource.Classify(resource.OpDelete, resource.KindNamespace, "", name, err)
	}

	return nil
}

// Exists reports whether the namespace name exists.
func (m *Manager) Exists(ctx context.Context, name string) (bool, error) {
	ns := &corev1.Namespace{}
	if err := m.client.Get(ctx, types.NamespacedName{Name: name}, ns); err != nil {
		if errors.IsNotFound(err) {
			return false, nil
		}
		return false, resource.Classify(resource.OpGet, resource.KindNamespace, "", name, err)
	}
	return true, nil
}
