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
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"

	migrationsv1 "github.com/mikelane/ns-migrator/api/v1"
	"github.com/mikelane/ns-migrator/internal/cleanup"
	"github.com/mikelane/ns-migrator/internal/migration"
	"github.com/mikelane/ns-migrator/internal/resource"
)

var _ = Describe("Status", func() {
	started := metav1.Now()
	completed := metav1.NewTime(started.Add(42))
	request := migration.Request{SourceNamespace: "ns-a", TargetNamespace: "ns-b"}

	Describe("buildStatus", func() {
		It("reports a clean run as Completed", func() {
			ledger := migration.NewLedger(request)
			ledger.Record(migration.Entry{Kind: resource.KindDeployment, Name: "web", Step: migration.StepCopy, Outcome: migration.OutcomeMigrated})
			ledger.Record(migration.Entry{Kind: resource.KindConfigMap, Name: "kube-root-ca.crt", Step: migration.StepCopy, Outcome: migration.OutcomeSkippedByPolicy, Reason: "reserved"})
			ledger.Cleanup = &migration.CleanupReport{Residual: cleanup.Residual{resource.KindPod: 0}, NamespaceDeleted: true}

			status := buildStatus(ledger, 3, started, completed)

			Expect(status.Phase).To(Equal(migrationsv1.PhaseCompleted))
			Expect(status.ObservedGeneration).To(BeEquivalentTo(3))
			Expect(status.Summary).To(Equal(migrationsv1.MigrationSummary{Migrated: 1, SkippedByPolicy: 1}))
			Expect(status.Results).To(HaveLen(2))
			Expect(status.Results[1].Reason).To(Equal("reserved"))
			Expect(status.SourceNamespaceDeleted).To(BeTrue())
			Expect(status.ResidualResources).To(BeNil())
			Expect(status.Message).To(ContainSubstring("source namespace deleted"))
			Expect(meta.IsStatusConditionTrue(status.Conditions, migrationsv1.ConditionReady)).To(BeTrue())
		})

		It("reports failed resources as CompletedWithErrors with residuals", func() {
			ledger := migration.NewLedger(request)
			ledger.Record(migration.Entry{Kind: resource.KindDeployment, Name: "web-2", Step: migration.StepCopy, Outcome: migration.OutcomeFailed, Reason: "boom"})
			ledger.Cleanup = &migration.CleanupReport{Residual: cleanup.Residual{resource.KindDeployment: 1, resource.KindPod: 0}}

			status := buildStatus(ledger, 1, started, completed)

			Expect(status.Phase).To(Equal(migrationsv1.PhaseCompletedWithErrors))
			Expect(status.ResidualResources).To(Equal(map[string]int{"Deployment": 1}))
			Expect(status.SourceNamespaceDeleted).To(BeFalse())
			Expect(status.Message).To(ContainSubstring("source namespace not empty: Deployment=1"))

			ready := meta.FindStatusCondition(status.Conditions, migrationsv1.ConditionReady)
			Expect(ready.Status).To(Equal(metav1.ConditionFalse))
			Expect(ready.Reason).To(Equal(ReasonMigrationCompletedWithErrors))
		})

		It("reports a cleanup error as CompletedWithErrors", func() {
			ledger := migration.NewLedger(request)
			ledger.Cleanup = &migration.CleanupReport{Err: errors.New("list secrets: forbidden")}

			status := buildStatus(ledger, 1, started, completed)

			Expect(status.Phase).To(Equal(migrationsv1.PhaseCompletedWithErrors))
			Expect(status.Message).To(ContainSubstring("not evaluated"))
		})

		It("reports a namespace failure as Failed", func() {
			ledger := migration.NewLedger(request)
			ledger.Record(migration.Entry{Kind: resource.KindNamespace, Name: "ns-b", Step: migration.StepNamespace, Outcome: migration.OutcomeFailed, Reason: "namespace ns-b is terminating"})

			status := buildStatus(ledger, 1, started, completed)

			Expect(status.Phase).To(Equal(migrationsv1.PhaseFailed))
			Expect(status.Message).To(Equal("namespace ns-b is terminating"))
			Expect(eventReason(status.Phase)).To(Equal(ReasonMigrationFailed))
		})

		It("notes a kept source", func() {
			ledger := migration.NewLedger(migration.Request{SourceNamespace: "ns-a", TargetNamespace: "ns-b", KeepSource: true})

			Expect(buildStatus(ledger, 1, started, completed).Message).To(ContainSubstring("source kept"))
		})

		It("caps the stored results", func() {
			ledger := migration.NewLedger(request)
			for i := 0; i < migrationsv1.MaxResults+5; i++ {
				ledger.Record(migration.Entry{Kind: resource.KindSecret, Name: fmt.Sprintf("s-%d", i), Step: migration.StepCopy, Outcome: migration.OutcomeMigrated})
			}

			status := buildStatus(ledger, 1, started, completed)

			Expect(status.Results).To(HaveLen(migrationsv1.MaxResults))
			Expect(status.ResultsTruncated).To(BeTrue())
			Expect(status.Summary.Migrated).To(Equal(migrationsv1.MaxResults + 5))
		})
	})

	Describe("markRunning", func() {
		It("resets the completion time and sets Ready to False", func() {
			status := &migrationsv1.NamespaceMigrationStatus{
				Phase:       migrationsv1.PhaseCompleted,
				CompletedAt: &completed,
			}

			markRunning(status, 4, started)

			Expect(status.Phase).To(Equal(migrationsv1.PhaseRunning))
			Expect(status.ObservedGeneration).To(BeEquivalentTo(4))
			Expect(status.CompletedAt).To(BeNil())
			Expect(meta.IsStatusConditionFalse(status.Conditions, migrationsv1.ConditionReady)).To(BeTrue())
		})
	})
})
