// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	"github.com/juju/kubemirror/core/object"
)

func ownerReference(owner *object.Object) metav1.OwnerReference {
	controller := true
	return metav1.OwnerReference{
		Kind:       string(owner.Kind),
		Name:       owner.Name,
		UID:        types.UID(owner.UID()),
		Controller: &controller,
	}
}
