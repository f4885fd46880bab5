// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package object defines the mirrored representation of control plane
// objects and the changes applied to them.
package object

import (
	"encoding/json"
	"strings"

	"github.com/juju/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/juju/kubemirror/core/kind"
)

// ChangeType is the type of a streamed change.
type ChangeType string

const (
	Added    ChangeType = "Added"
	Modified ChangeType = "Modified"
	Deleted  ChangeType = "Deleted"
	Error    ChangeType = "Error"
)

// Key identifies an object within the collection of its kind.
// Cluster scoped objects have an empty namespace.
type Key struct {
	Namespace string
	Name      string
}

// String returns "namespace/name", or just the name for cluster
// scoped objects.
func (k Key) String() string {
	if k.Namespace == "" {
		return k.Name
	}
	return k.Namespace + "/" + k.Name
}

// Less orders keys by namespace and then name.
func (k Key) Less(other Key) bool {
	if k.Namespace != other.Namespace {
		return k.Namespace < other.Namespace
	}
	return k.Name < other.Name
}

// Ref identifies an object across every collection.
type Ref struct {
	Kind kind.Kind
	Key
}

// NewRef returns a ref for the kind, namespace and name.
func NewRef(k kind.Kind, namespace, name string) Ref {
	return Ref{Kind: k, Key: Key{Namespace: namespace, Name: name}}
}

// String returns "Kind/namespace/name".
func (r Ref) String() string {
	return string(r.Kind) + "/" + r.Key.String()
}

// ParseRef parses the output of Ref.String.
func ParseRef(s string) (Ref, error) {
	parts := strings.Split(s, "/")
	switch len(parts) {
	case 2:
		if parts[0] == "" || parts[1] == "" {
			break
		}
		return NewRef(kind.Kind(parts[0]), "", parts[1]), nil
	case 3:
		if parts[0] == "" || parts[1] == "" || parts[2] == "" {
			break
		}
		return NewRef(kind.Kind(parts[0]), parts[1], parts[2]), nil
	}
	return Ref{}, errors.NotValidf("object ref %q", s)
}

// Object is a mirrored control plane object. Attributes are never
// mutated once the object is stored; a modification replaces the
// object wholesale.
type Object struct {
	Kind       kind.Kind
	Namespace  string
	Name       string
	Attributes *unstructured.Unstructured

	// DerivedChildren are lookup-only references to objects inferred to
	// be children of this one. They are rebuilt in full on every
	// recompute.
	DerivedChildren []Ref
}

// FromUnstructured returns an object of the kind wrapping u.
func FromUnstructured(k kind.Kind, u *unstructured.Unstructured) (*Object, error) {
	if u == nil {
		return nil, errors.NotValidf("nil %s payload", k)
	}
	if u.GetName() == "" {
		return nil, errors.NotValidf("%s without name", k)
	}
	return &Object{
		Kind:       k,
		Namespace:  u.GetNamespace(),
		Name:       u.GetName(),
		Attributes: u,
	}, nil
}

// Decode decodes a JSON payload into an object of the kind.
func Decode(k kind.Kind, payload json.RawMessage) (*Object, error) {
	u := &unstructured.Unstructured{}
	if err := u.UnmarshalJSON(payload); err != nil {
		return nil, errors.Annotatef(err, "decoding %s", k)
	}
	obj, err := FromUnstructured(k, u)
	return obj, errors.Trace(err)
}

// Key returns the key of the object within its collection.
func (o *Object) Key() Key {
	return Key{Namespace: o.Namespace, Name: o.Name}
}

// Ref returns the ref of the object.
func (o *Object) Ref() Ref {
	return Ref{Kind: o.Kind, Key: o.Key()}
}

// UID returns the control plane uid of the object, if known.
func (o *Object) UID() string {
	if o.Attributes == nil {
		return ""
	}
	return string(o.Attributes.GetUID())
}

// Labels returns the labels of the object.
func (o *Object) Labels() map[string]string {
	if o.Attributes == nil {
		return nil
	}
	return o.Attributes.GetLabels()
}

// Annotations returns the annotations of the object.
func (o *Object) Annotations() map[string]string {
	if o.Attributes == nil {
		return nil
	}
	return o.Attributes.GetAnnotations()
}

// WithDerivedChildren returns a shallow copy of the object carrying the
// supplied children.
func (o *Object) WithDerivedChildren(children []Ref) *Object {
	cp := *o
	cp.DerivedChildren = children
	return &cp
}
