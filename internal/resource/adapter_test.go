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
	"errors"
	"testing"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	clientgoscheme "k8s.io/client-go/kubernetes/scheme"
	"k8s.io/utils/ptr"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"
	"sigs.k8s.io/controller-runtime/pkg/client/interceptor"
)

func newScheme() *runtime.Scheme {
	scheme := runtime.NewScheme()
	_ = clientgoscheme.AddToScheme(scheme)
	return scheme
}

func deployment(namespace, name string) *appsv1.Deployment {
	return &appsv1.Deployment{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
	}
}

func TestAdapter_List(t *testing.T) {
	c := fake.NewClientBuilder().
		WithScheme(newScheme()).
		WithObjects(
			deployment("ns-a", "web"),
			deployment("ns-a", "api"),
			deployment("ns-b", "other"),
		).
		Build()

	a, err := New(KindDeployment, c)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got, err := a.List(context.Background(), "ns-a")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 descriptors, got %d", len(got))
	}
	for _, d := range got {
		if d.Kind != KindDeployment {
			t.Errorf("expected kind %s, got %s", KindDeployment, d.Kind)
		}
		if d.Namespace() != "ns-a" {
			t.Errorf("expected namespace ns-a, got %s", d.Namespace())
		}
		if d.ResourceVersion() == "" {
			t.Errorf("expected %s to carry a resource version", d.Name())
		}
	}
}

func TestAdapter_Create(t *testing.T) {
	tests := []struct {
		name      string
		existing  []client.Object
		funcs     *interceptor.Funcs
		wantClass error
	}{
		{
			name: "creates object in namespace",
		},
		{
			name:      "conflict when name already exists",
			existing:  []client.Object{deployment("ns-b", "web")},
			wantClass: ErrConflict,
		},
		{
			name: "backend error for any other failure",
			funcs: &interceptor.Funcs{
				Create: func(ctx context.Context, c client.WithWatch, obj client.Object, opts ...client.CreateOption) error {
					return apierrors.NewForbidden(schema.GroupResource{Group: "apps", Resource: "deployments"}, obj.GetName(), errors.New("denied"))
				},
			},
			wantClass: ErrBackend,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			builder := fake.NewClientBuilder().WithScheme(newScheme()).WithObjects(tt.existing...)
			if tt.funcs != nil {
				builder = builder.WithInterceptorFuncs(*tt.funcs)
			}
			c := builder.Build()

			a, _ := New(KindDeployment, c)
			err := a.Create(context.Background(), "ns-b", Descriptor{Kind: KindDeployment, Object: deployment("ns-a", "web")})

			if tt.wantClass == nil {
				if err != nil {
					t.Fatalf("Create() error = %v", err)
				}
				got := &appsv1.Deployment{}
				if err := c.Get(context.Background(), types.NamespacedName{Namespace: "ns-b", Name: "web"}, got); err != nil {
					t.Errorf("expected deployment in ns-b: %v", err)
				}
				return
			}

			if !errors.Is(err, tt.wantClass) {
				t.Errorf("Create() error = %v, want class %v", err, tt.wantClass)
			}
			var opErr *OpError
			if !errors.As(err, &opErr) || opErr.Op != OpCreate || opErr.Name != "web" {
				t.Errorf("expected *OpError for create web, got %#v", err)
			}
		})
	}
}

func TestAdapter_Create_conflict_keeps_api_error_reachable(t *testing.T) {
	c := fake.NewClientBuilder().WithScheme(newScheme()).WithObjects(deployment("ns-b", "web")).Build()
	a, _ := New(KindDeployment, c)

	err := a.Create(context.Background(), "ns-b", Descriptor{Kind: KindDeployment, Object: deployment("ns-a", "web")})

	if !IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if !apierrors.IsAlreadyExists(err) {
		t.Errorf("expected apierrors.IsAlreadyExists to hold for %v", err)
	}
}

func TestAdapter_Delete(t *testing.T) {
	c := fake.NewClientBuilder().WithScheme(newScheme()).WithObjects(deployment("ns-a", "web")).Build()
	a, _ := New(KindDeployment, c)
	ctx := context.Background()

	if err := a.Delete(ctx, "ns-a", "web"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	err := a.Delete(ctx, "ns-a", "web")
	if !IsNotFound(err) {
		t.Errorf("second Delete() error = %v, want not found", err)
	}
	if IsBackend(err) {
		t.Errorf("not found must not be classified as backend")
	}
}

func TestAdapter_Create_sanitizes_service(t *testing.T) {
	tests := []struct {
		name          string
		svc           *corev1.Service
		wantClusterIP string
		wantIPs       []string
	}{
		{
			name: "clears cluster assigned addresses and node ports",
			svc: &corev1.Service{
				ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "ns-a"},
				Spec: corev1.ServiceSpec{
					Type:       corev1.ServiceTypeNodePort,
					ClusterIP:  "10.96.0.12",
					ClusterIPs: []string{"10.96.0.12"},
					Ports:      []corev1.ServicePort{{Port: 80, NodePort: 30080}},
				},
			},
		},
		{
			name: "keeps headless services headless",
			svc: &corev1.Service{
				ObjectMeta: metav1.ObjectMeta{Name: "db", Namespace: "ns-a"},
				Spec: corev1.ServiceSpec{
					ClusterIP:  corev1.ClusterIPNone,
					ClusterIPs: []string{corev1.ClusterIPNone},
					Ports:      []corev1.ServicePort{{Port: 5432}},
				},
			},
			wantClusterIP: corev1.ClusterIPNone,
			wantIPs:       []string{corev1.ClusterIPNone},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := fake.NewClientBuilder().WithScheme(newScheme()).Build()
			a, _ := New(KindService, c)

			if err := a.Create(context.Background(), "ns-b", Descriptor{Kind: KindService, Object: tt.svc}); err != nil {
				t.Fatalf("Create() error = %v", err)
			}

			got := &corev1.Service{}
			if err := c.Get(context.Background(), types.NamespacedName{Namespace: "ns-b", Name: tt.svc.Name}, got); err != nil {
				t.Fatalf("failed to get service: %v", err)
			}
			if got.Spec.ClusterIP != tt.wantClusterIP {
				t.Errorf("expected clusterIP %q, got %q", tt.wantClusterIP, got.Spec.ClusterIP)
			}
			if len(got.Spec.ClusterIPs) != len(tt.wantIPs) {
				t.Errorf("expected clusterIPs %v, got %v", tt.wantIPs, got.Spec.ClusterIPs)
			}
			for _, p := range got.Spec.Ports {
				if p.NodePort != 0 {
					t.Errorf("expected node port to be cleared, got %d", p.NodePort)
				}
			}
		})
	}
}

func TestAdapter_Create_preserves_storage_class(t *testing.T) {
	c := fake.NewClientBuilder().WithScheme(newScheme()).Build()
	a, _ := New(KindPersistentVolumeClaim, c)

	pvc := &corev1.PersistentVolumeClaim{
		ObjectMeta: metav1.ObjectMeta{Name: "data", Namespace: "ns-a"},
		Spec:       corev1.PersistentVolumeClaimSpec{StorageClassName: ptr.To("gp3")},
	}
	if err := a.Create(context.Background(), "ns-b", Descriptor{Kind: KindPersistentVolumeClaim, Object: pvc}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got := &corev1.PersistentVolumeClaim{}
	if err := c.Get(context.Background(), types.NamespacedName{Namespace: "ns-b", Name: "data"}, got); err != nil {
		t.Fatalf("failed to get pvc: %v", err)
	}
	if ptr.Deref(got.Spec.StorageClassName, "") != "gp3" {
		t.Errorf("expected storage class gp3, got %v", got.Spec.StorageClassName)
	}
}

func TestNew_rejects_unknown_kind(t *testing.T) {
	if _, err := New(KindNamespace, nil); err == nil {
		t.Error("expected an error for a kind without adapter")
	}
}

func TestMigrationOrder(t *testing.T) {
	want := []Kind{
		KindDeployment,
		KindStatefulSet,
		KindPersistentVolumeClaim,
		KindConfigMap,
		KindSecret,
		KindService,
	}

	got := MigrationOrder(nil)
	if len(got) != len(want) {
		t.Fatalf("expected %d adapters, got %d", len(want), len(got))
	}
	for i, a := range got {
		if a.Kind() != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], a.Kind())
		}
		if KindOrder(a.Kind()) != i {
			t.Errorf("KindOrder(%s) = %d, want %d", a.Kind(), KindOrder(a.Kind()), i)
		}
	}

	if len(Tracked(nil)) != len(want)+1 {
		t.Errorf("expected pods to be tracked in addition to migrated kinds")
	}
	if KindOrder(KindPod) != len(want) {
		t.Errorf("expected pods to sort after migrated kinds")
	}
}

func TestOpError_Error(t *testing.T) {
	err := Classify(OpDelete, KindSecret, "ns-a", "token", apierrors.NewNotFound(schema.GroupResource{Resource: "secrets"}, "token"))
	want := `delete Secret ns-a/token: secrets "token" not found`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	if Classify(OpList, KindSecret, "ns-a", "", nil) != nil {
		t.Error("Classify(nil) must return nil")
	}
}
