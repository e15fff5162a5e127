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
	"fmt"
	"slices"
	"sync"

	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/mikelane/ns-migrator/internal/cleanup"
	"github.com/mikelane/ns-migrator/internal/resource"
)

// Outcome is the result recorded for one resource instance.
type Outcome string

const (
	OutcomeMigrated              Outcome = "Migrated"
	OutcomeSkippedAlreadyPresent Outcome = "SkippedAlreadyPresent"
	OutcomeSkippedByPolicy       Outcome = "SkippedByPolicy"
	OutcomeFailed                Outcome = "Failed"
)

// Step names the part of a run that produced an entry.
type Step string

const (
	StepNamespace      Step = "namespace"
	StepList           Step = "list"
	StepCopy           Step = "copy"
	StepDeleteOriginal Step = "delete-original"
)

// Request asks for the resources of SourceNamespace to be moved to
// TargetNamespace.
type Request struct {
	SourceNamespace string
	TargetNamespace string
	// KeepSource leaves originals and the source namespace in place.
	KeepSource bool
}

// Validate checks that both namespaces are distinct, valid namespace names.
func (r Request) Validate() error {
	for _, ns := range []struct{ field, value string }{
		{"sourceNamespace", r.SourceNamespace},
		{"targetNamespace", r.TargetNamespace},
	} {
		if ns.value == "" {
			return fmt.Errorf("%s must not be empty", ns.field)
		}
		if errs := validation.IsDNS1123Label(ns.value); len(errs) > 0 {
			return fmt.Errorf("%s %q is not a valid namespace name: %s", ns.field, ns.value, errs[0])
		}
	}
	if r.SourceNamespace == r.TargetNamespace {
		return fmt.Errorf("source and target namespace are both %q", r.SourceNamespace)
	}
	return nil
}

// Entry is one ledger line.
type Entry struct {
	Kind    resource.Kind
	Name    string
	Step    Step
	Outcome Outcome
	// Reason is set for skipped and failed entries.
	Reason string
}

// CleanupReport describes what happened to the source namespace after the copy.
type CleanupReport struct {
	Residual         cleanup.Residual
	NamespaceDeleted bool
	// Err is set when the residual count or the deletion failed.
	Err error
}

// Counts tallies entries per outcome.
type Counts struct {
	Migrated              int
	SkippedAlreadyPresent int
	SkippedByPolicy       int
	Failed                int
}

// Ledger collects the outcomes of a single run. It is safe for concurrent
// use while the run is in progress.
type Ledger struct {
	Request Request
	// Cleanup is nil when the source was kept or the run ended early.
	Cleanup *CleanupReport

	mu      sync.Mutex
	entries []Entry
}

// NewLedger returns an empty ledger for req.
func NewLedger(req Request) *Ledger {
	return &Ledger{Request: req}
}

// Record appends an entry.
func (l *Ledger) Record(e Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

// Entries returns a copy of the recorded entries.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.entries)
}

// Find returns the entries recorded for kind/name.
func (l *Ledger) Find(kind resource.Kind, name string) []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var found []Entry
	for _, e := range l.entries {
		if e.Kind == kind && e.Name == name {
			found = append(found, e)
		}
	}
	return found
}

// Counts tallies the entries per outcome.
func (l *Ledger) Counts() Counts {
	l.mu.Lock()
	defer l.mu.Unlock()

	var c Counts
	for _, e := range l.entries {
		switch e.Outcome {
		case OutcomeMigrated:
			c.Migrated++
		case OutcomeSkippedAlreadyPresent:
			c.SkippedAlreadyPresent++
		case OutcomeSkippedByPolicy:
			c.SkippedByPolicy++
		case OutcomeFailed:
			c.Failed++
		}
	}
	return c
}

// HasFailures reports whether any entry failed.
func (l *Ledger) HasFailures() bool {
	return l.Counts().Failed > 0
}

// sortByKind orders entries by copy order, keeping the relative order of
// entries within a kind.
func (l *Ledger) sortByKind() {
	l.mu.Lock()
	defer l.mu.Unlock()
	slices.SortStableFunc(l.entries, func(a, b Entry) int {
		return resource.KindOrder(a.Kind) - resource.KindOrder(b.Kind)
	})
}
