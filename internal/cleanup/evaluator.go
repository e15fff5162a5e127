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

package cleanup

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mikelane/ns-migrator/internal/metrics"
	"github.com/mikelane/ns-migrator/internal/namespace"
	"github.com/mikelane/ns-migrator/internal/planner"
	"github.com/mikelane/ns-migrator/internal/resource"
)

// Residual counts tracked resources left in a namespace, by kind.
type Residual map[resource.Kind]int

// Total returns the sum across all kinds.
func (r Residual) Total() int {
	total := 0
	for _, n := range r {
		total += n
	}
	return total
}

// String renders the non-zero counts in a stable order, e.g. "ConfigMap=1 Pod=2".
func (r Residual) String() string {
	kinds := slices.Sorted(maps.Keys(r))
	parts := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		if r[kind] > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", kind, r[kind]))
		}
	}
	return strings.Join(parts, " ")
}

// Evaluator counts what is left in a namespace and deletes it once empty.
type Evaluator struct {
	adapters   []resource.Adapter
	planner    *planner.Planner
	namespaces *namespace.Manager
}

// NewEvaluator creates an Evaluator over every tracked kind.
func NewEvaluator(c client.Client, p *planner.Planner) *Evaluator {
	return &Evaluator{
		adapters:   resource.Tracked(c),
		planner:    p,
		namespaces: namespace.NewManager(c),
	}
}

// Evaluate re-lists every tracked kind in ns and returns the residual count.
// Any list failure is returned as an error; callers must then leave the
// namespace alone.
func (e *Evaluator) Evaluate(ctx context.Context, ns string) (Residual, error) {
	residual := make(Residual, len(e.adapters))

	for _, a := range e.adapters {
		items, err := a.List(ctx, ns)
		if err != nil {
			return nil, fmt.Errorf("failed to count residual resources: %w", err)
		}

		residual[a.Kind()] = 0
		for _, d := range items {
			if e.counts(d) {
				residual[a.Kind()]++
			}
		}
	}

	return residual, nil
}

func (e *Evaluator) counts(d resource.Descriptor) bool {
	if d.Object.GetDeletionTimestamp() != nil {
		return false
	}
	if e.planner.IsPlatformManaged(d) {
		return false
	}
	if d.Kind == resource.KindPod && metav1.GetControllerOf(d.Object) != nil {
		return false
	}
	return true
}

// MaybeDeleteNamespace deletes ns when residual sums to zero and ns is not
// a protected system namespace. It reports whether the namespace is gone;
// a namespace that no longer exists counts as deleted.
func (e *Evaluator) MaybeDeleteNamespace(ctx context.Context, ns string, residual Residual) (bool, error) {
	logger := log.FromContext(ctx).WithValues("namespace", ns)

	if total := residual.Total(); total > 0 {
		logger.Info("namespace not empty, leaving it in place", "residual", residual.String())
		return false, nil
	}
	if namespace.IsProtected(ns) {
		logger.Info("namespace is protected, leaving it in place")
		return false, nil
	}

	if err := e.namespaces.DeleteNamespace(ctx, ns); err != nil {
		return false, fmt.Errorf("failed to delete namespace: %w", err)
	}

	logger.Info("deleted empty namespace")
	metrics.ObserveNamespaceDeletion()
	return true, nil
}
