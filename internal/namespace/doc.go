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

// Package namespace manages the namespaces a migration writes to and removes.
//
// # Overview
//
// The migration engine needs three things from the namespace layer:
//
//   - EnsureNamespace creates the target namespace when it is missing
//   - DeleteNamespace removes an emptied source namespace
//   - IsProtected guards system namespaces from deletion
//
// # Idempotency
//
// Both operations treat the already-satisfied state as success. A target
// namespace that already exists is reused as-is; its labels are left
// untouched so a migration into an existing namespace never rewrites it.
// Deleting a namespace that is already gone is not an error.
//
// A target namespace that is being deleted cannot receive objects, so
// EnsureNamespace reports it as a backend failure instead of reusing it.
//
// # Labels
//
// Namespaces created by the migrator carry:
//
//	app.kubernetes.io/managed-by: ns-migrator
//	migrations.internal/source-namespace: <source>   (annotation)
//
// # Errors
//
// Errors are *resource.OpError values with Kind "Namespace", so callers can
// match them with resource.IsConflict, resource.IsNotFound and
// resource.IsBackend like any adapter error.
//
// # Usage Example
//
//	mgr := namespace.NewManager(k8sClient)
//
//	if err := mgr.EnsureNamespace(ctx, "ns-b", "ns-a"); err != nil {
//		return err
//	}
//
//	if !namespace.IsProtected("ns-a") {
//		if err := mgr.DeleteNamespace(ctx, "ns-a"); err != nil {
//			return err
//		}
//	}
package namespace
