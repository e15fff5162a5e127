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
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	migrationsv1 "github.com/mikelane/ns-migrator/api/v1"
)

// Scheduler garbage-collects finished NamespaceMigration requests.
// It runs periodically and deletes requests whose retention has elapsed.
type Scheduler struct {
	client    client.Client
	namespace string
	interval  time.Duration
	retention time.Duration
}

// NewScheduler creates a new retention scheduler.
//
// Parameters:
//   - k8sClient: Kubernetes client for listing and deleting NamespaceMigrations
//   - namespace: Namespace to scan, or "" for all namespaces
//   - interval: Duration between cleanup runs (e.g., 10*time.Minute)
//   - retention: How long a finished request is kept; 0 disables cleanup
func NewScheduler(k8sClient client.Client, namespace string, interval, retention time.Duration) *Scheduler {
	return &Scheduler{
		client:    k8sClient,
		namespace: namespace,
		interval:  interval,
		retention: retention,
	}
}

// Start runs the scheduler until the context is canceled. It implements
// manager.Runnable. With a zero retention it only waits for cancellation.
func (s *Scheduler) Start(ctx context.Context) error {
	logger := log.FromContext(ctx).WithName("retention")

	if s.retention <= 0 {
		logger.Info("request retention disabled")
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.cleanup(ctx); err != nil {
				logger.Error(err, "cleanup pass failed")
				// Continue to next tick - don't stop scheduler on transient errors
			}
		}
	}
}

// cleanup performs a single pass. The following rules apply:
//   - Requests that have not finished (no CompletedAt) are skipped
//   - Requests labelled "migrations.internal/retain=true" are skipped
//   - Only requests where CompletedAt + retention is before now are deleted
func (s *Scheduler) cleanup(ctx context.Context) error {
	var list migrationsv1.NamespaceMigrationList

	opts := []client.ListOption{}
	if s.namespace != "" {
		opts = append(opts, client.InNamespace(s.namespace))
	}
	if err := s.client.List(ctx, &list, opts...); err != nil {
		return fmt.Errorf("failed to list migration requests: %w", err)
	}

	logger := log.FromContext(ctx)
	cutoff := metav1.NewTime(time.Now().Add(-s.retention))

	for i := range list.Items {
		req := &list.Items[i]

		if req.Status.CompletedAt == nil || !req.Status.Phase.IsTerminal() {
			continue
		}
		if req.Labels[migrationsv1.RetainLabel] == "true" {
			continue
		}
		if !req.Status.CompletedAt.Before(&cutoff) {
			continue
		}

		if err := s.client.Delete(ctx, req); client.IgnoreNotFound(err) != nil {
			return fmt.Errorf("failed to delete migration request %s/%s: %w", req.Namespace, req.Name, err)
		}
		logger.Info("deleted finished migration request", "request", client.ObjectKeyFromObject(req))
	}

	return nil
}
