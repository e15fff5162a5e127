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

// Package cleanup decides when a migrated source namespace may be deleted
// and garbage-collects finished migration requests.
//
// # Residual Counting
//
// After a migration run, the Evaluator re-lists every tracked kind in the
// source namespace. The count is always read fresh from the API server and
// never derived from the run's ledger: other actors may have created or
// deleted objects while the run was in progress.
//
// The following objects are not counted:
//   - ConfigMaps and Secrets the platform provisions into every namespace
//   - Objects that already carry a deletion timestamp
//   - Pods with a controller owner reference, which are reaped with their owner
//
// # Namespace Deletion
//
// MaybeDeleteNamespace deletes the namespace if and only if the residual
// count sums to zero. System namespaces (default, kube-system, kube-public,
// kube-node-lease) are never deleted. A namespace that is left non-empty is
// reported, not retried; a later migration request resolves it.
//
// # Request Retention
//
// The Scheduler runs periodically and deletes NamespaceMigration objects
// that finished longer than the retention period ago:
//
//	completedAt + retention < now
//
// To keep a finished request around, add the retain label:
//
//	apiVersion: migrations.internal/v1
//	kind: NamespaceMigration
//	metadata:
//	  name: move-payments
//	  labels:
//	    migrations.internal/retain: "true"
//
// Example usage:
//
//	scheduler := cleanup.NewScheduler(
//		k8sClient,
//		"",             // all namespaces
//		10*time.Minute, // check every 10 minutes
//		72*time.Hour,   // keep finished requests for 3 days
//	)
//	if err := mgr.Add(scheduler); err != nil {
//		return err
//	}
package cleanup
