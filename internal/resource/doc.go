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

// Package resource provides uniform list/create/delete access to the namespaced
// resource kinds a namespace migration knows how to move.
//
// Each kind is served by an Adapter built on a controller-runtime client:
//
//   - Deployment
//   - StatefulSet
//   - Pod (tracked for cleanup only, never copied)
//   - PersistentVolumeClaim
//   - ConfigMap
//   - Secret
//   - Service
//
// Adapters hand out Descriptors, which wrap the typed object read from the
// API server. Create applies kind-specific sanitization before the object is
// sent, e.g. a Service loses its cluster-assigned addresses so the target
// namespace allocates fresh ones.
//
// # Errors
//
// Every adapter error is an *OpError classified into one of three sentinels:
//
//   - ErrConflict: create found an object with the same name
//   - ErrNotFound: delete found nothing to delete
//   - ErrBackend: anything else (transport, validation, authorization)
//
// The wrapped API error stays reachable, so both errors.Is(err, ErrConflict)
// and apierrors.IsAlreadyExists(err) hold for the same value.
package resource
