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

// Package migration copies the resources of one namespace into another.
//
// An Orchestrator run handles a single Request:
//
//  1. The target namespace is created when missing.
//  2. For each kind, in the order Deployments, StatefulSets,
//     PersistentVolumeClaims, ConfigMaps, Secrets, Services, the source
//     objects are listed, filtered by the planner, sanitized and created in
//     the target. A successful copy is followed by deletion of the original.
//  3. The source namespace is counted again and deleted when empty.
//
// Every resource instance considered produces one or more Ledger entries.
// A name that already exists in the target is SkippedAlreadyPresent and the
// original is left in place, which makes re-running a partially completed
// request safe. A failure on one object never stops its siblings, and a
// failed deletion of an original never reverts the copy.
//
// Run never returns an error; callers inspect the Ledger.
package migration
