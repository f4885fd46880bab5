// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/types"

	"github.com/juju/kubemirror/core/kind"
	"github.com/juju/kubemirror/core/object"
)

// Option mutates the unstructured content of a test object.
type Option func(u *unstructured.Unstructured)

// NewObject returns an object of the kind with a uid derived from
// its ref, with the options applied.
func NewObject(k kind.Kind, namespace, name string, opts ...Option) *object.Object {
	u := &unstructured.Unstructured{Object: map[string]interface{}{}}
	u.SetKind(string(k))
	u.SetNamespace(namespace)
	u.SetName(name)
	u.SetUID(types.UID(UID(k, namespace, name)))
	for _, opt := range opts {
		opt(u)
	}
	obj, err := object.FromUnstructured(k, u)
	if err != nil {
		panic(err)
	}
	return obj
}

// UID returns the uid NewObject gives an object.
func UID(k kind.Kind, namespace, name string) string {
	return "uid-" + object.NewRef(k, namespace, name).String()
}

// WithLabels sets the labels of the object.
func WithLabels(labels map[string]string) Option {
	return func(u *unstructured.Unstructured) {
		u.SetLabels(labels)
	}
}

// WithAnnotations sets the annotations of the object.
func WithAnnotations(annotations map[string]string) Option {
	return func(u *unstructured.Unstructured) {
		u.SetAnnotations(annotations)
	}
}

// OwnedBy adds an owner reference pointing at owner.
func OwnedBy(owner *object.Object) Option {
	return func(u *unstructured.Unstructured) {
		refs := u.GetOwnerReferences()
		refs = append(refs, ownerReference(owner))
		u.SetOwnerReferences(refs)
	}
}

// WithField sets a nested field of the object.
func WithField(value interface{}, fields ...string) Option {
	return func(u *unstructured.Unstructured) {
		if err := unstructured.SetNestedField(u.Object, value, fields...); err != nil {
			panic(err)
		}
	}
}
