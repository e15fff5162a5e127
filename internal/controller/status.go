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
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	migrationsv1 "github.com/mikelane/ns-migrator/api/v1"
	"github.com/mikelane/ns-migrator/internal/migration"
)

// Event reasons
const (
	ReasonMigrationCompleted           = "MigrationCompleted"
	ReasonMigrationCompletedWithErrors = "MigrationCompletedWithErrors"
	ReasonMigrationFailed              = "MigrationFailed"
	ReasonMigrationRunning             = "MigrationRunning"
)

func eventReason(phase migrationsv1.Phase) string {
	switch phase {
	case migrationsv1.PhaseCompleted:
		return ReasonMigrationCompleted
	case migrationsv1.PhaseCompletedWithErrors:
		return ReasonMigrationCompletedWithErrors
	default:
		return ReasonMigrationFailed
	}
}

func markRunning(status *migrationsv1.NamespaceMigrationStatus, generation int64, started metav1.Time) {
	status.Phase = migrationsv1.PhaseRunning
	status.ObservedGeneration = generation
	status.StartedAt = &started
	status.CompletedAt = nil
	status.Message = "migration in progress"
	meta.SetStatusCondition(&status.Conditions, metav1.Condition{
		Type:               migrationsv1.ConditionReady,
		Status:             metav1.ConditionFalse,
		Reason:             ReasonMigrationRunning,
		Message:            "migration in progress",
		ObservedGeneration: generation,
	})
}

// phaseFor maps a ledger to the request phase. A run that never got past
// the namespace step failed; any other failure leaves the run completed
// with errors.
func phaseFor(ledger *migration.Ledger) migrationsv1.Phase {
	for _, e := range ledger.Entries() {
		if e.Step == migration.StepNamespace && e.Outcome == migration.OutcomeFailed {
			return migrationsv1.PhaseFailed
		}
	}
	if ledger.HasFailures() || (ledger.Cleanup != nil && ledger.Cleanup.Err != nil) {
		return migrationsv1.PhaseCompletedWithErrors
	}
	return migrationsv1.PhaseCompleted
}

// buildStatus renders a finished run into the request status.
func buildStatus(ledger *migration.Ledger, generation int64, started, completed metav1.Time) migrationsv1.NamespaceMigrationStatus {
	counts := ledger.Counts()
	phase := phaseFor(ledger)

	status := migrationsv1.NamespaceMigrationStatus{
		Phase:              phase,
		ObservedGeneration: generation,
		StartedAt:          &started,
		CompletedAt:        &completed,
		Summary: migrationsv1.MigrationSummary{
			Migrated:              counts.Migrated,
			SkippedAlreadyPresent: counts.SkippedAlreadyPresent,
			SkippedByPolicy:       counts.SkippedByPolicy,
			Failed:                counts.Failed,
		},
	}

	entries := ledger.Entries()
	if len(entries) > migrationsv1.MaxResults {
		entries = entries[:migrationsv1.MaxResults]
		status.ResultsTruncated = true
	}
	status.Results = make([]migrationsv1.ResourceResult, 0, len(entries))
	for _, e := range entries {
		status.Results = append(status.Results, migrationsv1.ResourceResult{
			Kind:    string(e.Kind),
			Name:    e.Name,
			Step:    string(e.Step),
			Outcome: string(e.Outcome),
			Reason:  e.Reason,
		})
	}

	if report := ledger.Cleanup; report != nil {
		status.SourceNamespaceDeleted = report.NamespaceDeleted
		for kind, n := range report.Residual {
			if n == 0 {
				continue
			}
			if status.ResidualResources == nil {
				status.ResidualResources = map[string]int{}
			}
			status.ResidualResources[string(kind)] = n
		}
	}

	status.Message = summarize(ledger, phase, counts)

	condition := metav1.Condition{
		Type:               migrationsv1.ConditionReady,
		Status:             metav1.ConditionTrue,
		Reason:             eventReason(phase),
		Message:            status.Message,
		ObservedGeneration: generation,
	}
	if phase != migrationsv1.PhaseCompleted {
		condition.Status = metav1.ConditionFalse
	}
	meta.SetStatusCondition(&status.Conditions, condition)

	return status
}

func summarize(ledger *migration.Ledger, phase migrationsv1.Phase, counts migration.Counts) string {
	if phase == migrationsv1.PhaseFailed {
		for _, e := range ledger.Entries() {
			if e.Step == migration.StepNamespace && e.Outcome == migration.OutcomeFailed {
				return e.Reason
			}
		}
	}

	parts := []string{fmt.Sprintf("%d migrated, %d already present, %d skipped by policy, %d failed",
		counts.Migrated, counts.SkippedAlreadyPresent, counts.SkippedByPolicy, counts.Failed)}

	switch report := ledger.Cleanup; {
	case report == nil:
		parts = append(parts, "source kept")
	case report.Err != nil:
		parts = append(parts, "source namespace not evaluated: "+report.Err.Error())
	case report.NamespaceDeleted:
		parts = append(parts, "source namespace deleted")
	case report.Residual.Total() == 0:
		parts = append(parts, "source namespace is protected and was kept")
	default:
		parts = append(parts, "source namespace not empty: "+report.Residual.String())
	}

	return strings.Join(parts, "; ")
}
