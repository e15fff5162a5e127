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

package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Phase is the lifecycle phase of a NamespaceMigration.
type Phase string

const (
	PhasePending             Phase = "Pending"
	PhaseRunning             Phase = "Running"
	PhaseCompleted           Phase = "Completed"
	PhaseCompletedWithErrors Phase = "CompletedWithErrors"
	PhaseFailed              Phase = "Failed"
)

// IsTerminal reports whether no further work is expected for the phase.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseCompletedWithErrors || p == PhaseFailed
}

const (
	// ConditionReady is True once a run finished without failed resources.
	ConditionReady = "Ready"

	// RetainLabel exempts a finished request from retention cleanup.
	RetainLabel = "migrations.internal/retain"

	// MaxResults bounds the number of ledger entries stored in status.
	MaxResults = 250
)

// NamespaceMigrationSpec defines the desired state of NamespaceMigration
type NamespaceMigrationSpec struct {
	// SourceNamespace is the namespace resources are copied from
	// +kubebuilder:validation:MinLength=1
	SourceNamespace string `json:"sourceNamespace"`

	// TargetNamespace is the namespace resources are copied to. It is created
	// if it does not exist.
	// +kubebuilder:validation:MinLength=1
	TargetNamespace string `json:"targetNamespace"`

	// KeepSource leaves the originals and the source namespace in place
	// +optional
	KeepSource bool `json:"keepSource,omitempty"`
}

// ResourceResult is the outcome recorded for a single resource instance
type ResourceResult struct {
	// Kind is the resource kind, e.g. Deployment
	Kind string `json:"kind"`

	// Name is the resource name. Empty for kind-level failures.
	// +optional
	Name string `json:"name,omitempty"`

	// Step is the part of the run that produced the result
	// (namespace, list, copy, delete-original)
	Step string `json:"step"`

	// Outcome is one of Migrated, SkippedAlreadyPresent, SkippedByPolicy, Failed
	Outcome string `json:"outcome"`

	// Reason explains skipped and failed outcomes
	// +optional
	Reason string `json:"reason,omitempty"`
}

// MigrationSummary counts results per outcome
type MigrationSummary struct {
	Migrated              int `json:"migrated"`
	SkippedAlreadyPresent int `json:"skippedAlreadyPresent"`
	SkippedByPolicy       int `json:"skippedByPolicy"`
	Failed                int `json:"failed"`
}

// NamespaceMigrationStatus defines the observed state of NamespaceMigration.
type NamespaceMigrationStatus struct {
	// Phase represents the current phase of the migration
	// +kubebuilder:validation:Enum=Pending;Running;Completed;CompletedWithErrors;Failed
	// +optional
	Phase Phase `json:"phase,omitempty"`

	// ObservedGeneration is the generation of the spec the status refers to
	// +optional
	ObservedGeneration int64 `json:"observedGeneration,omitempty"`

	// StartedAt is when the latest run started
	// +optional
	StartedAt *metav1.Time `json:"startedAt,omitempty"`

	// CompletedAt is when the latest run finished
	// +optional
	CompletedAt *metav1.Time `json:"completedAt,omitempty"`

	// Summary counts the results of the latest run
	// +optional
	Summary MigrationSummary `json:"summary,omitempty"`

	// Results lists per-resource outcomes of the latest run
	// +optional
	Results []ResourceResult `json:"results,omitempty"`

	// ResultsTruncated is set when Results was capped
	// +optional
	ResultsTruncated bool `json:"resultsTruncated,omitempty"`

	// ResidualResources counts tracked resources left in the source namespace
	// +optional
	ResidualResources map[string]int `json:"residualResources,omitempty"`

	// SourceNamespaceDeleted is true once the source namespace was deleted
	// +optional
	SourceNamespaceDeleted bool `json:"sourceNamespaceDeleted,omitempty"`

	// Message is a human readable description of the latest run
	// +optional
	Message string `json:"message,omitempty"`

	// +listType=map
	// +listMapKey=type
	// +optional
	Conditions []metav1.Condition `json:"conditions,omitempty"`
}

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:printcolumn:name="Source",type="string",JSONPath=".spec.sourceNamespace"
// +kubebuilder:printcolumn:name="Target",type="string",JSONPath=".spec.targetNamespace"
// +kubebuilder:printcolumn:name="Phase",type="string",JSONPath=".status.phase"
// +kubebuilder:printcolumn:name="Age",type="date",JSONPath=".metadata.creationTimestamp"
// +kubebuilder:resource:shortName=nsmig

// NamespaceMigration is the Schema for the namespacemigrations API
type NamespaceMigration struct {
	metav1.TypeMeta `json:",inline"`

	// +optional
	metav1.ObjectMeta `json:"metadata,omitempty,omitzero"`

	// +required
	Spec NamespaceMigrationSpec `json:"spec"`

	// +optional
	Status NamespaceMigrationStatus `json:"status,omitempty,omitzero"`
}

// IsProcessed reports whether the current generation already has a final status.
func (m *NamespaceMigration) IsProcessed() bool {
	return m.Status.Phase.IsTerminal() && m.Status.ObservedGeneration == m.Generation
}

// +kubebuilder:object:root=true

// NamespaceMigrationList contains a list of NamespaceMigration
type NamespaceMigrationList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []NamespaceMigration `json:"items"`
}

func init() {
	SchemeBuilder.Register(&NamespaceMigration{}, &NamespaceMigrationList{})
}
