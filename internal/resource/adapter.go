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

package resource

import (
	"context"
	"fmt"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
)

// Kind identifies a resource kind handled by an Adapter.
type Kind string

const (
	KindDeployment            Kind = "Deployment"
	KindStatefulSet           Kind = "StatefulSet"
	KindPod                   Kind = "Pod"
	KindPersistentVolumeClaim Kind = "PersistentVolumeClaim"
	KindConfigMap             Kind = "ConfigMap"
	KindSecret                Kind = "Secret"
	KindService               Kind = "Service"

	// KindNamespace is used for namespace-level errors and ledger entries.
	// It has no Adapter.
	KindNamespace Kind = "Namespace"
)

// migrationOrder is the order kinds are copied in. Kinds are independent;
// the order only keeps logs and ledgers readable.
var migrationOrder = []Kind{
	KindDeployment,
	KindStatefulSet,
	KindPersistentVolumeClaim,
	KindConfigMap,
	KindSecret,
	KindService,
}

// trackedKinds are the kinds counted when deciding whether a namespace is empty.
var trackedKinds = []Kind{
	KindDeployment,
	KindStatefulSet,
	KindPod,
	KindPersistentVolumeClaim,
	KindConfigMap,
	KindSecret,
	KindService,
}

// Descriptor wraps a single object read from a namespace.
type Descriptor struct {
	Kind Kind
	// Object is the typed API object, e.g. *appsv1.Deployment.
	Object client.Object
}

// Name returns the object name.
func (d Descriptor) Name() string {
	return d.Object.GetName()
}

// Namespace returns the object namespace.
func (d Descriptor) Namespace() string {
	return d.Object.GetNamespace()
}

// ResourceVersion returns the optimistic concurrency token of the object.
func (d Descriptor) ResourceVersion() string {
	return d.Object.GetResourceVersion()
}

// Adapter gives namespace-scoped access to one resource kind.
type Adapter interface {
	// Kind returns the kind served by the adapter.
	Kind() Kind

	// List returns every object of the kind in namespace.
	List(ctx context.Context, namespace string) ([]Descriptor, error)

	// Create creates the descriptor's object in namespace. It takes ownership
	// of d.Object, which is sanitized and mutated in place. Returns an error
	// classified as ErrConflict when the name is taken, ErrBackend otherwise.
	Create(ctx context.Context, namespace string, d Descriptor) error

	// Delete removes the named object from namespace. Returns an error
	// classified as ErrNotFound when it does not exist, ErrBackend otherwise.
	Delete(ctx context.Context, namespace, name string) error
}

type adapter struct {
	kind      Kind
	client    client.Client
	newObject func() client.Object
	newList   func() client.ObjectList
	sanitize  func(client.Object)
}

// New returns the Adapter for kind.
func New(kind Kind, c client.Client) (Adapter, error) {
	a := &adapter{kind: kind, client: c}

	switch kind {
	case KindDeployment:
		a.newObject = func() client.Object { return &appsv1.Deployment{} }
		a.newList = func() client.ObjectList { return &appsv1.DeploymentList{} }
	case KindStatefulSet:
		a.newObject = func() client.Object { return &appsv1.StatefulSet{} }
		a.newList = func() client.ObjectList { return &appsv1.StatefulSetList{} }
	case KindPod:
		a.newObject = func() client.Object { return &corev1.Pod{} }
		a.newList = func() client.ObjectList { return &corev1.PodList{} }
	case KindPersistentVolumeClaim:
		// The storage class is left untouched; the planner decides on it.
		a.newObject = func() client.Object { return &corev1.PersistentVolumeClaim{} }
		a.newList = func() client.ObjectList { return &corev1.PersistentVolumeClaimList{} }
	case KindConfigMap:
		a.newObject = func() client.Object { return &corev1.ConfigMap{} }
		a.newList = func() client.ObjectList { return &corev1.ConfigMapList{} }
	case KindSecret:
		a.newObject = func() client.Object { return &corev1.Secret{} }
		a.newList = func() client.ObjectList { return &corev1.SecretList{} }
	case KindService:
		a.newObject = func() client.Object { return &corev1.Service{} }
		a.newList = func() client.ObjectList { return &corev1.ServiceList{} }
		a.sanitize = sanitizeService
	default:
		return nil, fmt.Errorf("unsupported resource kind %q", kind)
	}

	return a, nil
}

// MigrationOrder returns adapters for the kinds that are copied, in copy order.
func MigrationOrder(c client.Client) []Adapter {
	return mustAdapters(migrationOrder, c)
}

// Tracked returns adapters for every kind counted during cleanup.
func Tracked(c client.Client) []Adapter {
	return mustAdapters(trackedKinds, c)
}

// KindOrder returns the position of kind in the copy order, or len(order)
// for kinds that are never copied.
func KindOrder(kind Kind) int {
	for i, k := range migrationOrder {
		if k == kind {
			return i
		}
	}
	return len(migrationOrder)
}

func mustAdapters(kinds []Kind, c client.Client) []Adapter {
	adapters := make([]Adapter, 0, len(kinds))
	for _, kind := range kinds {
		a, err := New(kind, c)
		if err != nil {
			panic(err)
		}
		adapters = append(adapters, a)
	}
	return adapters
}

func (a *adapter) Kind() Kind {
	return a.kind
}

func (a *adapter) List(ctx context.Context, namespace string) ([]Descriptor, error) {
	list := a.newList()
	if err := a.client.List(ctx, list, client.InNamespace(namespace)); err != nil {
		return nil, Classify(OpList, a.kind, namespace, "", err)
	}

	items, err := meta.ExtractList(list)
	if err != nil {
		return nil, Classify(OpList, a.kind, namespace, "", err)
	}

	descriptors := make([]Descriptor, 0, len(items))
	for _, item := range items {
		obj, ok := item.(client.Object)
		if !ok {
			return nil, Classify(OpList, a.kind, namespace, "", fmt.Errorf("unexpected list item %T", item))
		}
		descriptors = append(descriptors, Descriptor{Kind: a.kind, Object: obj})
	}

	return descriptors, nil
}

func (a *adapter) Create(ctx context.Context, namespace string, d Descriptor) error {
	obj := d.Object
	obj.SetNamespace(namespace)
	if a.sanitize != nil {
		a.sanitize(obj)
	}

	if err := a.client.Create(ctx, obj); err != nil {
		return Classify(OpCreate, a.kind, namespace, obj.GetName(), err)
	}

	return nil
}

func (a *adapter) Delete(ctx context.Context, namespace, name string) error {
	obj := a.newObject()
	obj.SetName(name)
	obj.SetNamespace(namespace)

	err := a.client.Delete(ctx, obj, client.PropagationPolicy(metav1.DeletePropagationBackground))
	if err != nil {
		return Classify(OpDelete, a.kind, namespace, name, err)
	}

	return nil
}

// sanitizeService clears cluster-allocated addresses and node ports so the
// copy gets fresh allocations. Headless services keep ClusterIP "None".
func sanitizeService(obj client.Object) {
	svc, ok := obj.(*corev1.Service)
	if !ok {
		return
	}

	if svc.Spec.ClusterIP != corev1.ClusterIPNone {
		svc.Spec.ClusterIP = ""
		svc.Spec.ClusterIPs = nil
	}
	svc.Spec.HealthCheckNodePort = 0
	for i := range svc.Spec.Ports {
		svc.Spec.Ports[i].NodePort = 0
	}
}
