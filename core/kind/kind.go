// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package kind holds the finite set of object kinds that can be mirrored
// from the control plane, and how each kind maps onto a collection path.
package kind

import (
	"path"

	"github.com/juju/errors"
)

// Kind identifies a type of object held by the control plane,
// e.g. "Pod" or "Deployment".
type Kind string

// String implements fmt.Stringer.
func (k Kind) String() string {
	return string(k)
}

const (
	Namespace               Kind = "Namespace"
	Deployment              Kind = "Deployment"
	ReplicaSet              Kind = "ReplicaSet"
	StatefulSet             Kind = "StatefulSet"
	DaemonSet               Kind = "DaemonSet"
	Job                     Kind = "Job"
	CronJob                 Kind = "CronJob"
	Pod                     Kind = "Pod"
	Service                 Kind = "Service"
	Ingress                 Kind = "Ingress"
	ConfigMap               Kind = "ConfigMap"
	Secret                  Kind = "Secret"
	PersistentVolumeClaim   Kind = "PersistentVolumeClaim"
	HorizontalPodAutoscaler Kind = "HorizontalPodAutoscaler"
)

// Info describes where the collection of a kind lives.
type Info struct {
	Kind Kind

	// Group is the API group; empty for the legacy core group.
	Group    string
	Version  string
	Resource string

	// Namespaced is true when objects of the kind live in a namespace.
	Namespaced bool
}

// RelayPath returns the collection path for the kind. An empty namespace,
// or a cluster scoped kind, yields the cluster wide collection.
func (i Info) RelayPath(namespace string) string {
	base := "/api/" + i.Version
	if i.Group != "" {
		base = path.Join("/apis", i.Group, i.Version)
	}
	if i.Namespaced && namespace != "" {
		return path.Join(base, "namespaces", namespace, i.Resource)
	}
	return path.Join(base, i.Resource)
}

// Validate ensures the info can build a path.
func (i Info) Validate() error {
	if i.Kind == "" {
		return errors.NotValidf("empty kind")
	}
	if i.Version == "" {
		return errors.NotValidf("kind %q without version", i.Kind)
	}
	if i.Resource == "" {
		return errors.NotValidf("kind %q without resource", i.Kind)
	}
	return nil
}

// Registry is a fixed mapping from kind to Info. It is resolved once
// and then only read, so it is safe for concurrent use.
type Registry struct {
	infos map[Kind]Info
	order []Kind
}

// NewRegistry returns a registry holding the supplied infos. The order of
// the infos is kept as the iteration order of Kinds.
func NewRegistry(infos ...Info) (*Registry, error) {
	r := &Registry{
		infos: make(map[Kind]Info, len(infos)),
	}
	for _, info := range infos {
		if err := info.Validate(); err != nil {
			return nil, errors.Trace(err)
		}
		if _, ok := r.infos[info.Kind]; ok {
			return nil, errors.AlreadyExistsf("kind %q", info.Kind)
		}
		r.infos[info.Kind] = info
		r.order = append(r.order, info.Kind)
	}
	return r, nil
}

// DefaultRegistry returns the registry of kinds the dashboard mirrors.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(
		Info{Kind: Namespace, Version: "v1", Resource: "namespaces"},
		Info{Kind: Deployment, Group: "apps", Version: "v1", Resource: "deployments", Namespaced: true},
		Info{Kind: ReplicaSet, Group: "apps", Version: "v1", Resource: "replicasets", Namespaced: true},
		Info{Kind: StatefulSet, Group: "apps", Version: "v1", Resource: "statefulsets", Namespaced: true},
		Info{Kind: DaemonSet, Group: "apps", Version: "v1", Resource: "daemonsets", Namespaced: true},
		Info{Kind: Job, Group: "batch", Version: "v1", Resource: "jobs", Namespaced: true},
		Info{Kind: CronJob, Group: "batch", Version: "v1", Resource: "cronjobs", Namespaced: true},
		Info{Kind: Pod, Version: "v1", Resource: "pods", Namespaced: true},
		Info{Kind: Service, Version: "v1", Resource: "services", Namespaced: true},
		Info{Kind: Ingress, Group: "networking.k8s.io", Version: "v1", Resource: "ingresses", Namespaced: true},
		Info{Kind: ConfigMap, Version: "v1", Resource: "configmaps", Namespaced: true},
		Info{Kind: Secret, Version: "v1", Resource: "secrets", Namespaced: true},
		Info{Kind: PersistentVolumeClaim, Version: "v1", Resource: "persistentvolumeclaims", Namespaced: true},
		Info{Kind: HorizontalPodAutoscaler, Group: "autoscaling", Version: "v2", Resource: "horizontalpodautoscalers", Namespaced: true},
	)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the info for a kind.
func (r *Registry) Lookup(k Kind) (Info, error) {
	info, ok := r.infos[k]
	if !ok {
		return Info{}, errors.NotFoundf("kind %q", k)
	}
	return info, nil
}

// Kinds returns every registered kind in registration order.
func (r *Registry) Kinds() []Kind {
	return append([]Kind(nil), r.order...)
}

// Restrict returns a registry holding only the named kinds.
func (r *Registry) Restrict(kinds ...Kind) (*Registry, error) {
	var infos []Info
	for _, k := range kinds {
		info, err := r.Lookup(k)
		if err != nil {
			return nil, errors.Trace(err)
		}
		infos = append(infos, info)
	}
	return NewRegistry(infos...)
}
