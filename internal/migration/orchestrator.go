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

package migration

import (
	"context"
	"time"

	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/mikelane/ns-migrator/internal/cleanup"
	"github.com/mikelane/ns-migrator/internal/metrics"
	"github.com/mikelane/ns-migrator/internal/namespace"
	"github.com/mikelane/ns-migrator/internal/planner"
	"github.com/mikelane/ns-migrator/internal/resource"
)

// Options tune an Orchestrator.
type Options struct {
	// OperationTimeout bounds each API call made during a run. Zero means
	// calls are bounded only by the run context.
	OperationTimeout time.Duration

	// ConcurrentKinds migrates the kinds in parallel instead of one after another.
	ConcurrentKinds bool
}

// Orchestrator drives migration runs
type Orchestrator struct {
	adapters   []resource.Adapter
	planner    *planner.Planner
	namespaces *namespace.Manager
	evaluator  *cleanup.Evaluator
	opts       Options
}

// NewOrchestrator creates an Orchestrator that reads and writes through c
func NewOrchestrator(c client.Client, p *planner.Planner, opts Options) *Orchestrator {
	return &Orchestrator{
		adapters:   resource.MigrationOrder(c),
		planner:    p,
		namespaces: namespace.NewManager(c),
		evaluator:  cleanup.NewEvaluator(c, p),
		opts:       opts,
	}
}

// Run processes req and returns its ledger. Run never fails: every problem
// is recorded as a ledger entry or in the cleanup report.
func (o *Orchestrator) Run(ctx context.Context, req Request) *Ledger {
	logger := log.FromContext(ctx).WithValues("source", req.SourceNamespace, "target", req.TargetNamespace)
	ctx = log.IntoContext(ctx, logger)

	ledger := NewLedger(req)

	if err := req.Validate(); err != nil {
		logger.Error(err, "invalid migration request")
		o.record(ledger, Entry{
			Kind:    resource.KindNamespace,
			Name:    req.TargetNamespace,
			Step:    StepNamespace,
			Outcome: OutcomeFailed,
			Reason:  err.Error(),
		})
		return ledger
	}

	var found bool
	err := o.call(ctx, func(ctx context.Context) error {
		var err error
		found, err = o.namespaces.Exists(ctx, req.SourceNamespace)
		return err
	})
	if err != nil || !found {
		reason := "source namespace not found"
		if err != nil {
			reason = err.Error()
		}
		logger.Error(err, "cannot read source namespace", "reason", reason)
		o.record(ledger, Entry{
			Kind:    resource.KindNamespace,
			Name:    req.SourceNamespace,
			Step:    StepNamespace,
			Outcome: OutcomeFailed,
			Reason:  reason,
		})
		return ledger
	}

	err = o.call(ctx, func(ctx context.Context) error {
		return o.namespaces.EnsureNamespace(ctx, req.TargetNamespace, req.SourceNamespace)
	})
	if err != nil {
		logger.Error(err, "failed to ensure target namespace")
		o.record(ledger, Entry{
			Kind:    resource.KindNamespace,
			Name:    req.TargetNamespace,
			Step:    StepNamespace,
			Outcome: OutcomeFailed,
			Reason:  err.Error(),
		})
		return ledger
	}

	if o.opts.ConcurrentKinds {
		var g errgroup.Group
		for _, a := range o.adapters {
			g.Go(func() error {
				o.migrateKind(ctx, a, req, ledger)
				return nil
			})
		}
		_ = g.Wait()
		ledger.sortByKind()
	} else {
		for _, a := range o.adapters {
			o.migrateKind(ctx, a, req, ledger)
		}
	}

	if !req.KeepSource {
		ledger.Cleanup = o.cleanupSource(ctx, req.SourceNamespace)
	}

	counts := ledger.Counts()
	logger.Info("migration run finished",
		"migrated", counts.Migrated,
		"skippedAlreadyPresent", counts.SkippedAlreadyPresent,
		"skippedByPolicy", counts.SkippedByPolicy,
		"failed", counts.Failed)

	return ledger
}

// migrateKind copies every instance of one kind. Failures are recorded and
// the loop moves on to the next instance.
func (o *Orchestrator) migrateKind(ctx context.Context, a resource.Adapter, req Request, ledger *Ledger) {
	kind := a.Kind()
	logger := log.FromContext(ctx).WithValues("kind", kind)

	var items []resource.Descriptor
	err := o.call(ctx, func(ctx context.Context) error {
		var err error
		items, err = a.List(ctx, req.SourceNamespace)
		return err
	})
	if err != nil {
		logger.Error(err, "failed to list source resources")
		o.record(ledger, Entry{Kind: kind, Step: StepList, Outcome: OutcomeFailed, Reason: err.Error()})
		return
	}

	for _, d := range items {
		o.migrateOne(ctx, logger.WithValues("name", d.Name()), a, d, req, ledger)
	}
}

func (o *Orchestrator) migrateOne(ctx context.Context, logger logr.Logger, a resource.Adapter, d resource.Descriptor, req Request, ledger *Ledger) {
	kind := a.Kind()

	if decision := o.planner.EvaluateMove(d, !req.KeepSource); !decision.Migrate {
		logger.V(1).Info("skipped by policy", "rule", decision.Rule, "reason", decision.Reason)
		o.record(ledger, Entry{
			Kind:    kind,
			Name:    d.Name(),
			Step:    StepCopy,
			Outcome: OutcomeSkippedByPolicy,
			Reason:  decision.Reason,
		})
		return
	}

	copied := planner.SanitizeForTarget(d, req.TargetNamespace)
	err := o.call(ctx, func(ctx context.Context) error {
		return a.Create(ctx, req.TargetNamespace, copied)
	})

	switch {
	case err == nil:
		logger.Info("migrated", "outcome", OutcomeMigrated)
		o.record(ledger, Entry{Kind: kind, Name: d.Name(), Step: StepCopy, Outcome: OutcomeMigrated})
		if !req.KeepSource {
			o.deleteOriginal(log.IntoContext(ctx, logger), a, req.SourceNamespace, d.Name(), ledger)
		}
	case resource.IsConflict(err):
		logger.Info("already present in target, original left in place", "outcome", OutcomeSkippedAlreadyPresent)
		o.record(ledger, Entry{
			Kind:    kind,
			Name:    d.Name(),
			Step:    StepCopy,
			Outcome: OutcomeSkippedAlreadyPresent,
			Reason:  "an object with this name already exists in the target namespace",
		})
	default:
		logger.Error(err, "failed to copy resource", "outcome", OutcomeFailed)
		o.record(ledger, Entry{
			Kind:    kind,
			Name:    d.Name(),
			Step:    StepCopy,
			Outcome: OutcomeFailed,
			Reason:  err.Error(),
		})
	}
}

// deleteOriginal removes a successfully copied original. The copy is kept
// whatever happens here.
func (o *Orchestrator) deleteOriginal(ctx context.Context, a resource.Adapter, ns, name string, ledger *Ledger) {
	err := o.call(ctx, func(ctx context.Context) error {
		return a.Delete(ctx, ns, name)
	})
	if err == nil || resource.IsNotFound(err) {
		return
	}

	log.FromContext(ctx).Error(err, "failed to delete original", "outcome", OutcomeFailed)
	o.record(ledger, Entry{
		Kind:    a.Kind(),
		Name:    name,
		Step:    StepDeleteOriginal,
		Outcome: OutcomeFailed,
		Reason:  err.Error(),
	})
}

func (o *Orchestrator) cleanupSource(ctx context.Context, ns string) *CleanupReport {
	logger := log.FromContext(ctx)
	report := &CleanupReport{}

	err := o.call(ctx, func(ctx context.Context) error {
		var err error
		report.Residual, err = o.evaluator.Evaluate(ctx, ns)
		return err
	})
	if err != nil {
		logger.Error(err, "failed to evaluate source namespace, leaving it in place")
		report.Err = err
		return report
	}

	err = o.call(ctx, func(ctx context.Context) error {
		var err error
		report.NamespaceDeleted, err = o.evaluator.MaybeDeleteNamespace(ctx, ns, report.Residual)
		return err
	})
	if err != nil {
		logger.Error(err, "failed to delete source namespace")
		report.Err = err
	}

	return report
}

func (o *Orchestrator) record(ledger *Ledger, e Entry) {
	ledger.Record(e)
	metrics.ObserveResource(string(e.Kind), string(e.Outcome))
}

// call runs fn under the per-operation timeout.
func (o *Orchestrator) call(ctx context.Context, fn func(context.Context) error) error {
	if o.opts.OperationTimeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, o.opts.OperationTimeout)
	defer cancel()
	return fn(ctx)
}
