// Package v1 contains the Template CRD types.
package v1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
)

// +kubebuilder:object:root=true
// +kubebuilder:subresource:status
// +kubebuilder:resource:scope=Namespaced

// Template is the Schema for the templates API (weft registry sync).
type Template struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`
	Spec   TemplateSpec   `json:"spec,omitempty"`
	Status TemplateStatus `json:"status,omitempty"`
}

// TemplateSpec defines the desired state of Template.
type TemplateSpec struct {
	// Name of the stored template; defaults to the object name.
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	// Variables are the required placeholder names, in declaration
	// order.
	Variables []string `json:"variables,omitempty"`
	// Format is the template body with one {placeholder} per variable.
	Format string `json:"format"`
	// Pin marks the synced version as the one Resolve returns.
	Pin bool `json:"pin,omitempty"`
}

// TemplateStatus defines the observed state of Template.
type TemplateStatus struct {
	Synced bool `json:"synced"`
	// SyncedVersion is the registry version holding this spec.
	SyncedVersion int    `json:"syncedVersion,omitempty"`
	LastSyncTime  string `json:"lastSyncTime,omitempty"`
	Message       string `json:"message,omitempty"`
}

// +kubebuilder:object:root=true

// TemplateList contains a list of Template.
type TemplateList struct {
	metav1.TypeMeta `json:",inline"`
	metav1.ListMeta `json:"metadata,omitempty"`
	Items           []Template `json:"items"`
}

// DeepCopyObject implements runtime.Object.
func (t *Template) DeepCopyObject() runtime.Object {
	if t == nil {
		return nil
	}
	out := &Template{}
	t.DeepCopyInto(out)
	return out
}

// DeepCopyInto copies the receiver into out.
func (t *Template) DeepCopyInto(out *Template) {
	*out = *t
	out.TypeMeta = t.TypeMeta
	t.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	t.Spec.DeepCopyInto(&out.Spec)
	out.Status = t.Status
}

// DeepCopyInto copies TemplateSpec.
func (s *TemplateSpec) DeepCopyInto(out *TemplateSpec) {
	*out = *s
	if s.Variables != nil {
		out.Variables = make([]string, len(s.Variables))
		copy(out.Variables, s.Variables)
	}
}

// DeepCopyObject implements runtime.Object for TemplateList.
func (t *TemplateList) DeepCopyObject() runtime.Object {
	if t == nil {
		return nil
	}
	out := &TemplateList{}
	t.DeepCopyInto(out)
	return out
}

// DeepCopyInto copies the list into out.
func (t *TemplateList) DeepCopyInto(out *TemplateList) {
	*out = *t
	out.TypeMeta = t.TypeMeta
	t.ListMeta.DeepCopyInto(&out.ListMeta)
	if t.Items != nil {
		out.Items = make([]Template, len(t.Items))
		for i := range t.Items {
			t.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}
