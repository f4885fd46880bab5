// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package relation

import (
	"github.com/juju/collections/set"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/juju/kubemirror/core/kind"
	"github.com/juju/kubemirror/core/object"
)

// DefaultTable returns the predicates relating the kinds of
// kind.DefaultRegistry.
func DefaultTable() Table {
	t := Table{
		owned(kind.Deployment, kind.ReplicaSet),
		owned(kind.ReplicaSet, kind.Pod),
		owned(kind.StatefulSet, kind.Pod),
		owned(kind.DaemonSet, kind.Pod),
		owned(kind.Job, kind.Pod),
		owned(kind.CronJob, kind.Job),
		{
			Name:       "service-selects-pod",
			ParentKind: kind.Service,
			ChildKind:  kind.Pod,
			Match:      serviceSelectsPod,
		},
		{
			Name:       "ingress-routes-service",
			ParentKind: kind.Ingress,
			ChildKind:  kind.Service,
			Match:      ingressRoutesService,
		},
		scaleTarget(kind.Deployment),
		scaleTarget(kind.StatefulSet),
		mounts(kind.ConfigMap),
		mounts(kind.Secret),
		mounts(kind.PersistentVolumeClaim),
	}
	for _, child := range []kind.Kind{
		kind.Deployment, kind.StatefulSet, kind.DaemonSet, kind.CronJob,
		kind.Job, kind.Pod, kind.Service, kind.Ingress,
		kind.HorizontalPodAutoscaler,
	} {
		t = append(t, inNamespace(child))
	}
	return t
}

// owned relates objects through the child's owner references.
func owned(parent, child kind.Kind) Predicate {
	return Predicate{
		Name:       "owner-" + string(parent) + "-" + string(child),
		ParentKind: parent,
		ChildKind:  child,
		Match:      isOwnedBy,
	}
}

func isOwnedBy(child, parent *object.Object) bool {
	if child.Attributes == nil || child.Namespace != parent.Namespace {
		return false
	}
	uid := parent.UID()
	for _, ref := range child.Attributes.GetOwnerReferences() {
		if uid != "" && string(ref.UID) == uid {
			return true
		}
		if uid == "" && ref.Kind == string(parent.Kind) && ref.Name == parent.Name {
			return true
		}
	}
	return false
}

func hasControllerOwner(obj *object.Object) bool {
	if obj.Attributes == nil {
		return false
	}
	for _, ref := range obj.Attributes.GetOwnerReferences() {
		if ref.Controller != nil && *ref.Controller {
			return true
		}
	}
	return false
}

// inNamespace relates a namespace to the top level objects inside it,
// those without a controlling owner.
func inNamespace(child kind.Kind) Predicate {
	return Predicate{
		Name:       "namespace-" + string(child),
		ParentKind: kind.Namespace,
		ChildKind:  child,
		Match: func(c, parent *object.Object) bool {
			return c.Namespace == parent.Name && !hasControllerOwner(c)
		},
	}
}

func serviceSelectsPod(pod, svc *object.Object) bool {
	if pod.Namespace != svc.Namespace || svc.Attributes == nil {
		return false
	}
	var service corev1.Service
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(svc.Attributes.Object, &service); err != nil {
		logger.Debugf("cannot convert service %s: %v", svc.Ref(), err)
		return false
	}
	if len(service.Spec.Selector) == 0 {
		return false
	}
	selector := labels.SelectorFromSet(labels.Set(service.Spec.Selector))
	return selector.Matches(labels.Set(pod.Labels()))
}

func ingressRoutesService(svc, ing *object.Object) bool {
	if svc.Namespace != ing.Namespace || ing.Attributes == nil {
		return false
	}
	var ingress networkingv1.Ingress
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(ing.Attributes.Object, &ingress); err != nil {
		logger.Debugf("cannot convert ingress %s: %v", ing.Ref(), err)
		return false
	}
	routes := func(b *networkingv1.IngressBackend) bool {
		return b != nil && b.Service != nil && b.Service.Name == svc.Name
	}
	if routes(ingress.Spec.DefaultBackend) {
		return true
	}
	for _, rule := range ingress.Spec.Rules {
		if rule.HTTP == nil {
			continue
		}
		for _, p := range rule.HTTP.Paths {
			if routes(&p.Backend) {
				return true
			}
		}
	}
	return false
}

// scaleTarget relates an autoscaler to the workload it scales.
func scaleTarget(target kind.Kind) Predicate {
	return Predicate{
		Name:       "autoscaler-" + string(target),
		ParentKind: kind.HorizontalPodAutoscaler,
		ChildKind:  target,
		Match: func(workload, hpa *object.Object) bool {
			if workload.Namespace != hpa.Namespace || hpa.Attributes == nil {
				return false
			}
			var scaler autoscalingv2.HorizontalPodAutoscaler
			if err := runtime.DefaultUnstructuredConverter.FromUnstructured(hpa.Attributes.Object, &scaler); err != nil {
				logger.Debugf("cannot convert autoscaler %s: %v", hpa.Ref(), err)
				return false
			}
			ref := scaler.Spec.ScaleTargetRef
			return ref.Kind == string(workload.Kind) && ref.Name == workload.Name
		},
	}
}

// mounts relates a pod to the config maps, secrets and claims it
// consumes.
func mounts(child kind.Kind) Predicate {
	return Predicate{
		Name:       "pod-uses-" + string(child),
		ParentKind: kind.Pod,
		ChildKind:  child,
		Match: func(c, pod *object.Object) bool {
			if c.Namespace != pod.Namespace || pod.Attributes == nil {
				return false
			}
			var p corev1.Pod
			if err := runtime.DefaultUnstructuredConverter.FromUnstructured(pod.Attributes.Object, &p); err != nil {
				logger.Debugf("cannot convert pod %s: %v", pod.Ref(), err)
				return false
			}
			return podReferences(&p, child).Contains(c.Name)
		},
	}
}

// podReferences returns the names of the objects of the kind the pod
// refers to through its volumes and container environment.
func podReferences(p *corev1.Pod, k kind.Kind) set.Strings {
	names := set.NewStrings()
	for _, v := range p.Spec.Volumes {
		switch {
		case k == kind.ConfigMap && v.ConfigMap != nil:
			names.Add(v.ConfigMap.Name)
		case k == kind.Secret && v.Secret != nil:
			names.Add(v.Secret.SecretName)
		case k == kind.PersistentVolumeClaim && v.PersistentVolumeClaim != nil:
			names.Add(v.PersistentVolumeClaim.ClaimName)
		case v.Projected != nil:
			for _, src := range v.Projected.Sources {
				if k == kind.ConfigMap && src.ConfigMap != nil {
					names.Add(src.ConfigMap.Name)
				}
				if k == kind.Secret && src.Secret != nil {
					names.Add(src.Secret.Name)
				}
			}
		}
	}
	containers := append(append([]corev1.Container(nil), p.Spec.InitContainers...), p.Spec.Containers...)
	for _, ctr := range containers {
		for _, from := range ctr.EnvFrom {
			if k == kind.ConfigMap && from.ConfigMapRef != nil {
				names.Add(from.ConfigMapRef.Name)
			}
			if k == kind.Secret && from.SecretRef != nil {
				names.Add(from.SecretRef.Name)
			}
		}
		for _, env := range ctr.Env {
			if env.ValueFrom == nil {
				continue
			}
			if k == kind.ConfigMap && env.ValueFrom.ConfigMapKeyRef != nil {
				names.Add(env.ValueFrom.ConfigMapKeyRef.Name)
			}
			if k == kind.Secret && env.ValueFrom.SecretKeyRef != nil {
				names.Add(env.ValueFrom.SecretKeyRef.Name)
			}
		}
	}
	return names
}
