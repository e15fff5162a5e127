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
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/apimachinery/pkg/watch"
	"k8s.io/client-go/tools/record"
	"sigs.k8s.io/controller-runtime/pkg/client"
	"sigs.k8s.io/controller-runtime/pkg/client/fake"

	migrationsv1 "github.com/mikelane/ns-migrator/api/v1"
	"github.com/mikelane/ns-migrator/internal/migration"
	"github.com/mikelane/ns-migrator/internal/planner"
)

var _ = Describe("RequestWatcher", func() {
	const (
		timeout  = time.Second * 5
		duration = time.Millisecond * 300
		interval = time.Millisecond * 20
	)

	var (
		ctx       context.Context
		cancel    context.CancelFunc
		k8sClient client.WithWatch
		watchers  *scriptedWatchClient
		runner    *countingRunner
		recorder  *record.FakeRecorder
		watcher   *RequestWatcher
		done      chan error
	)

	requestKey := types.NamespacedName{Name: "move-web", Namespace: "migrations"}

	newRequest := func(source, target string) *migrationsv1.NamespaceMigration {
		return &migrationsv1.NamespaceMigration{
			ObjectMeta: metav1.ObjectMeta{
				Name:      requestKey.Name,
				Namespace: requestKey.Namespace,
			},
			Spec: migrationsv1.NamespaceMigrationSpec{
				SourceNamespace: source,
				TargetNamespace: target,
			},
		}
	}

	fetch := func() *migrationsv1.NamespaceMigration {
		req := &migrationsv1.NamespaceMigration{}
		Expect(k8sClient.Get(ctx, requestKey, req)).To(Succeed())
		return req
	}

	phaseOf := func() migrationsv1.Phase {
		req := &migrationsv1.NamespaceMigration{}
		if err := k8sClient.Get(ctx, requestKey, req); err != nil {
			return ""
		}
		return req.Status.Phase
	}

	nextWatcher := func() *watch.FakeWatcher {
		var fw *watch.FakeWatcher
		Eventually(watchers.watchers, timeout, interval).Should(Receive(&fw))
		return fw
	}

	start := func(request *migrationsv1.NamespaceMigration, opts WatcherOptions) {
		k8sClient = fake.NewClientBuilder().
			WithScheme(scheme).
			WithStatusSubresource(&migrationsv1.NamespaceMigration{}).
			WithObjects(
				&corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: "ns-a"}},
				&appsv1.Deployment{ObjectMeta: metav1.ObjectMeta{Name: "web", Namespace: "ns-a"}},
				&corev1.ConfigMap{ObjectMeta: metav1.ObjectMeta{Name: "cfg", Namespace: "ns-a"}},
				request,
			).
			Build()

		watchers = newScriptedWatchClient(k8sClient)
		runner = &countingRunner{
			inner: migration.NewOrchestrator(k8sClient, planner.New(planner.DefaultConfig()), migration.Options{}),
		}
		recorder = record.NewFakeRecorder(20)

		if opts.Backoff.Duration == 0 {
			opts.Backoff = wait.Backoff{Duration: 10 * time.Millisecond, Factor: 2, Steps: 100, Cap: 50 * time.Millisecond}
		}
		watcher = NewRequestWatcher(watchers, runner, recorder, opts)

		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			done <- watcher.Start(ctx)
		}()
	}

	AfterEach(func() {
		if cancel != nil {
			cancel()
			Eventually(done, timeout, interval).Should(Receive(BeNil()))
			cancel = nil
		}
	})

	Describe("Scenario: Process a new request", func() {
		It("migrates the namespace and records the result in status", func() {
			request := newRequest("ns-a", "ns-b")
			start(request, WatcherOptions{})

			By("delivering an ADDED event")
			fw := nextWatcher()
			fw.Add(request.DeepCopy())

			Eventually(phaseOf, timeout, interval).Should(Equal(migrationsv1.PhaseCompleted))

			By("checking the recorded status")
			status := fetch().Status
			Expect(status.Summary.Migrated).To(Equal(2))
			Expect(status.Summary.Failed).To(BeZero())
			Expect(status.Results).To(HaveLen(2))
			Expect(status.SourceNamespaceDeleted).To(BeTrue())
			Expect(status.StartedAt).NotTo(BeNil())
			Expect(status.CompletedAt).NotTo(BeNil())
			Expect(status.ObservedGeneration).To(Equal(fetch().Generation))

			ready := meta.FindStatusCondition(status.Conditions, migrationsv1.ConditionReady)
			Expect(ready).NotTo(BeNil())
			Expect(ready.Status).To(Equal(metav1.ConditionTrue))

			By("checking the target namespace contents")
			Expect(k8sClient.Get(ctx, types.NamespacedName{Name: "web", Namespace: "ns-b"}, &appsv1.Deployment{})).To(Succeed())
			Expect(k8sClient.Get(ctx, types.NamespacedName{Name: "cfg", Namespace: "ns-b"}, &corev1.ConfigMap{})).To(Succeed())

			By("checking an event was emitted")
			Eventually(recorder.Events, timeout, interval).Should(Receive(ContainSubstring(ReasonMigrationCompleted)))
		})

		It("marks an invalid request as failed", func() {
			request := newRequest("ns-a", "ns-a")
			start(request, WatcherOptions{})

			nextWatcher().Add(request.DeepCopy())

			Eventually(phaseOf, timeout, interval).Should(Equal(migrationsv1.PhaseFailed))
			Expect(fetch().Status.Message).To(ContainSubstring("both \"ns-a\""))
			Eventually(recorder.Events, timeout, interval).Should(Receive(HavePrefix(corev1.EventTypeWarning)))
		})
	})

	Describe("Scenario: Requests already processed are not run again", func() {
		It("ignores the status write-back and replayed events", func() {
			request := newRequest("ns-a", "ns-b")
			start(request, WatcherOptions{})

			fw := nextWatcher()
			fw.Add(request.DeepCopy())
			Eventually(phaseOf, timeout, interval).Should(Equal(migrationsv1.PhaseCompleted))

			By("replaying the object as MODIFIED and ADDED")
			fw.Modify(fetch())
			fw.Add(fetch())

			Consistently(runner.runs.Load, duration, interval).Should(BeEquivalentTo(1))
		})

		It("skips a request whose status is final for its generation", func() {
			request := newRequest("ns-a", "ns-b")
			request.Generation = 2
			request.Status = migrationsv1.NamespaceMigrationStatus{
				Phase:              migrationsv1.PhaseCompletedWithErrors,
				ObservedGeneration: 2,
			}
			start(request, WatcherOptions{})

			nextWatcher().Add(request.DeepCopy())

			Consistently(runner.runs.Load, duration, interval).Should(BeZero())
			Expect(phaseOf()).To(Equal(migrationsv1.PhaseCompletedWithErrors))
		})

		It("does not dispatch delete events", func() {
			request := newRequest("ns-a", "ns-b")
			start(request, WatcherOptions{})

			nextWatcher().Delete(request.DeepCopy())

			Consistently(runner.runs.Load, duration, interval).Should(BeZero())
		})
	})

	Describe("Scenario: Stream interruptions", func() {
		It("reconnects after the stream closes and keeps processing", func() {
			request := newRequest("ns-a", "ns-b")
			start(request, WatcherOptions{})

			first := nextWatcher()
			Eventually(watcher.State, timeout, interval).Should(Equal(StateWatching))
			first.Stop()

			second := nextWatcher()
			Eventually(watcher.State, timeout, interval).Should(Equal(StateWatching))

			second.Add(request.DeepCopy())
			Eventually(phaseOf, timeout, interval).Should(Equal(migrationsv1.PhaseCompleted))
		})

		It("retries when opening the stream fails", func() {
			request := newRequest("ns-a", "ns-b")
			start(request, WatcherOptions{})

			first := nextWatcher()
			watchers.failNextWatch(apierrors.NewServiceUnavailable("apiserver restarting"))
			first.Stop()

			nextWatcher()
			Expect(len(watchers.watchCalls())).To(BeNumerically(">=", 3))
		})

		It("resumes from the last resource version and resets it when expired", func() {
			request := newRequest("ns-a", "ns-b")
			start(request, WatcherOptions{})

			first := nextWatcher()
			Expect(watchers.watchCalls()[0].Raw.ResourceVersion).To(BeEmpty())

			By("advancing the resource version with a bookmark")
			bookmark := &migrationsv1.NamespaceMigration{ObjectMeta: metav1.ObjectMeta{ResourceVersion: "4242"}}
			first.Action(watch.Bookmark, bookmark)
			first.Stop()

			second := nextWatcher()
			Expect(watchers.watchCalls()[1].Raw.ResourceVersion).To(Equal("4242"))

			By("expiring the resource version")
			second.Error(&metav1.Status{
				Status:  metav1.StatusFailure,
				Code:    410,
				Reason:  metav1.StatusReasonExpired,
				Message: "too old resource version: 4242",
			})

			nextWatcher()
			Expect(watchers.watchCalls()[2].Raw.ResourceVersion).To(BeEmpty())
			Expect(runner.runs.Load()).To(BeZero())
		})

		It("uses the same filter on every reconnect", func() {
			request := newRequest("ns-a", "ns-b")
			selector := labels.SelectorFromSet(labels.Set{"team": "platform"})
			start(request, WatcherOptions{Namespace: "migrations", Selector: selector})

			nextWatcher().Stop()
			nextWatcher()

			for _, call := range watchers.watchCalls()[:2] {
				Expect(call.Namespace).To(Equal("migrations"))
				Expect(call.LabelSelector.String()).To(Equal("team=platform"))
			}
		})
	})

	Describe("Scenario: Shutdown", func() {
		It("stops when the context is canceled", func() {
			start(newRequest("ns-a", "ns-b"), WatcherOptions{})
			nextWatcher()

			cancel()

			Eventually(done, timeout, interval).Should(Receive(BeNil()))
			Expect(watcher.State()).To(Equal(StateStopped))
			cancel = nil
		})
	})

	It("starts in the idle state", func() {
		w := NewRequestWatcher(nil, nil, nil, WatcherOptions{})
		Expect(w.State()).To(Equal(StateIdle))
		Expect(w.opts.Backoff).To(Equal(DefaultBackoff))
		Expect(w.NeedLeaderElection()).To(BeTrue())
	})
})
