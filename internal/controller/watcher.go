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

package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/tools/record"
	"k8s.io/client-go/util/retry"
	"sigs.k8s.io/controller-runtime/pkg/client"
	logf "sigs.k8s.io/controller-runtime/pkg/log"

	migrationsv1 "github.com/mikelane/ns-migrator/api/v1"
	"github.com/mikelane/ns-migrator/internal/metrics"
	"github.com/mikelane/ns-migrator/internal/migration"
)

// State is the lifecycle state of a RequestWatcher.
type State string

const (
	StateIdle         State = "Idle"
	StateWatching     State = "Watching"
	StateDispatching  State = "Dispatching"
	StateReconnecting State = "Reconnecting"
	StateStopped      State = "Stopped"
)

// Runner executes one migration request.
type Runner interface {
	Run(ctx context.Context, req migration.Request) *migration.Ledger
}

// DefaultBackoff is the reconnect delay policy used when none is configured.
var DefaultBackoff = wait.Backoff{
	Duration: time.Second,
	Factor:   2,
	Jitter:   0.1,
	Steps:    1 << 30,
	Cap:      time.Minute,
}

// WatcherOptions configure a RequestWatcher.
type WatcherOptions struct {
	// Namespace restricts the watch to one namespace. Empty watches all.
	Namespace string
	// Selector filters requests by label. Nil matches everything.
	Selector labels.Selector
	// Backoff drives the delay between reconnect attempts.
	Backoff wait.Backoff
}

// RequestWatcher consumes NamespaceMigration events and runs each request
// in turn. Runs are strictly sequential.
type RequestWatcher struct {
	client   client.WithWatch
	runner   Runner
	recorder record.EventRecorder
	opts     WatcherOptions

	mu    sync.RWMutex
	state State

	// resourceVersion is only touched by the Start goroutine.
	resourceVersion string
}

// NewRequestWatcher creates a RequestWatcher. A zero Backoff is replaced by
// DefaultBackoff.
func NewRequestWatcher(c client.WithWatch, runner Runner, recorder record.EventRecorder, opts WatcherOptions) *RequestWatcher {
	if opts.Backoff.Duration <= 0 {
		opts.Backoff = DefaultBackoff
	}
	return &RequestWatcher{
		client:   c,
		runner:   runner,
		recorder: recorder,
		opts:     opts,
		state:    StateIdle,
	}
}

// +kubebuilder:rbac:groups=migrations.internal,resources=namespacemigrations,verbs=get;list;watch;delete
// +kubebuilder:rbac:groups=migrations.internal,resources=namespacemigrations/status,verbs=get;update;patch
// +kubebuilder:rbac:groups="",resources=namespaces,verbs=get;create;delete
// +kubebuilder:rbac:groups="",resources=pods,verbs=list
// +kubebuilder:rbac:groups="",resources=configmaps;secrets;services;persistentvolumeclaims,verbs=list;create;delete
// +kubebuilder:rbac:groups=apps,resources=deployments;statefulsets,verbs=list;create;delete
// +kubebuilder:rbac:groups="",resources=events,verbs=create;patch

// State returns the current state.
func (w *RequestWatcher) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

func (w *RequestWatcher) setState(s State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = s
}

// NeedLeaderElection makes only the elected leader process requests.
func (w *RequestWatcher) NeedLeaderElection() bool {
	return true
}

// Start watches for requests until ctx is canceled. It implements
// manager.Runnable and only returns nil.
func (w *RequestWatcher) Start(ctx context.Context) error {
	logger := logf.FromContext(ctx).WithName("request-watcher")
	ctx = logf.IntoContext(ctx, logger)
	defer w.setState(StateStopped)

	backoff := w.opts.Backoff
	for {
		if ctx.Err() != nil {
			return nil
		}

		established, err := w.watchOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if established {
			backoff = w.opts.Backoff
		}

		w.setState(StateReconnecting)
		delay := backoff.Step()
		if err != nil {
			logger.Error(err, "request watch interrupted", "retryIn", delay)
		} else {
			logger.Info("request watch closed", "retryIn", delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		metrics.ObserveWatchReconnect()
	}
}

// watchOnce opens one watch stream and consumes it until it ends. It reports
// whether the stream was established.
func (w *RequestWatcher) watchOnce(ctx context.Context) (bool, error) {
	opts := &client.ListOptions{
		Namespace:     w.opts.Namespace,
		LabelSelector: w.opts.Selector,
		Raw: &metav1.ListOptions{
			ResourceVersion:     w.resourceVersion,
			AllowWatchBookmarks: true,
		},
	}

	stream, err := w.client.Watch(ctx, &migrationsv1.NamespaceMigrationList{}, opts)
	if err != nil {
		w.resetOnExpired(err)
		return false, fmt.Errorf("failed to watch migration requests: %w", err)
	}
	defer stream.Stop()

	w.setState(StateWatching)
	logf.FromContext(ctx).V(1).Info("watching migration requests", "resourceVersion", w.resourceVersion)

	for {
		select {
		case <-ctx.Done():
			return true, nil
		case event, ok := <-stream.ResultChan():
			if !ok {
				return true, nil
			}
			if err := w.handle(ctx, event); err != nil {
				return true, err
			}
		}
	}
}

func (w *RequestWatcher) handle(ctx context.Context, event watch.Event) error {
	if event.Type == watch.Error {
		err := apierrors.FromObject(event.Object)
		w.resetOnExpired(err)
		return err
	}

	if accessor, err := meta.Accessor(event.Object); err == nil && accessor.GetResourceVersion() != "" {
		w.resourceVersion = accessor.GetResourceVersion()
	}

	switch event.Type {
	case watch.Added, watch.Modified:
		req, ok := event.Object.(*migrationsv1.NamespaceMigration)
		if !ok {
			return nil
		}
		w.setState(StateDispatching)
		w.dispatch(ctx, client.ObjectKeyFromObject(req))
		w.setState(StateWatching)
	}

	// Deleted and Bookmark events only advance the resource version
	return nil
}

func (w *RequestWatcher) resetOnExpired(err error) {
	if apierrors.IsResourceExpired(err) || apierrors.IsGone(err) {
		w.resourceVersion = ""
	}
}

// dispatch runs the request stored under key unless its current generation
// already has a final status. The run is detached from ctx cancellation so
// an in-flight migration finishes during shutdown.
func (w *RequestWatcher) dispatch(ctx context.Context, key types.NamespacedName) {
	logger := logf.FromContext(ctx).WithValues("request", key)
	ctx = logf.IntoContext(context.WithoutCancel(ctx), logger)

	var req migrationsv1.NamespaceMigration
	if err := w.client.Get(ctx, key, &req); err != nil {
		if !apierrors.IsNotFound(err) {
			logger.Error(err, "failed to read migration request")
		}
		return
	}
	if req.IsProcessed() {
		logger.V(1).Info("migration request already processed", "phase", req.Status.Phase)
		return
	}

	started := metav1.Now()
	if err := w.writeStatus(ctx, key, func(status *migrationsv1.NamespaceMigrationStatus) {
		markRunning(status, req.Generation, started)
	}); err != nil {
		logger.Error(err, "failed to mark migration request running")
	}

	logger.Info("starting migration",
		"source", req.Spec.SourceNamespace,
		"target", req.Spec.TargetNamespace,
		"keepSource", req.Spec.KeepSource)

	ledger := w.runner.Run(ctx, migration.Request{
		SourceNamespace: req.Spec.SourceNamespace,
		TargetNamespace: req.Spec.TargetNamespace,
		KeepSource:      req.Spec.KeepSource,
	})

	completed := metav1.Now()
	final := buildStatus(ledger, req.Generation, started, completed)
	if err := w.writeStatus(ctx, key, func(status *migrationsv1.NamespaceMigrationStatus) {
		*status = final
	}); err != nil {
		logger.Error(err, "failed to write migration result")
	}

	eventType := corev1.EventTypeNormal
	if final.Phase != migrationsv1.PhaseCompleted {
		eventType = corev1.EventTypeWarning
	}
	w.recorder.Event(&req, eventType, eventReason(final.Phase), final.Message)

	metrics.ObserveRun(string(final.Phase), completed.Sub(started.Time))
	logger.Info("migration finished", "phase", final.Phase, "message", final.Message)
}

// writeStatus applies mutate to a fresh copy of the request and updates its
// status, retrying on write conflicts.
func (w *RequestWatcher) writeStatus(ctx context.Context, key types.NamespacedName, mutate func(*migrationsv1.NamespaceMigrationStatus)) error {
	return retry.RetryOnConflict(retry.DefaultRetry, func() error {
		var latest migrationsv1.NamespaceMigration
		if err := w.client.Get(ctx, key, &latest); err != nil {
			return err
		}
		mutate(&latest.Status)
		return w.client.Status().Update(ctx, &latest)
	})
}
