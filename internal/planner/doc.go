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

// Package planner decides which resources of a source namespace are copied
// and prepares the copies for creation in the target namespace.
//
// Two skip rules are applied in order:
//
//  1. Reserved names. Objects the platform provisions into every namespace
//     (the kube-root-ca.crt ConfigMap, service account token Secrets) are
//     never copied. The target namespace receives its own.
//  2. Storage locality. A PersistentVolumeClaim without a storage class, or
//     whose class contains the local storage marker ("local" by default,
//     case-insensitive), is bound to node-local storage and is skipped.
//
// Skipped resources are reported as SkippedByPolicy, never as failures.
package planner
