// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package relation_test

import (
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/kubemirror/core/kind"
	objecttesting "github.com/juju/kubemirror/core/object/testing"
	"github.com/juju/kubemirror/core/relation"
)

type defaultsSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&defaultsSuite{})

func (s *defaultsSuite) predicate(c *gc.C, parent, child kind.Kind) relation.Predicate {
	var found []relation.Predicate
	for _, p := range relation.DefaultTable().ForParent(parent) {
		if p.ChildKind == child {
			found = append(found, p)
		}
	}
	c.Assert(found, gc.HasLen, 1)
	return found[0]
}

func (s *defaultsSuite) TestOwnerReference(c *gc.C) {
	rs := objecttesting.NewObject(kind.ReplicaSet, "default", "web-1234")
	pod := objecttesting.NewObject(kind.Pod, "default", "web-1234-abcd", objecttesting.OwnedBy(rs))
	other := objecttesting.NewObject(kind.Pod, "default", "other")
	elsewhere := objecttesting.NewObject(kind.Pod, "prod", "web-1234-abcd", objecttesting.OwnedBy(rs))

	p := s.predicate(c, kind.ReplicaSet, kind.Pod)
	c.Check(p.Match(pod, rs), jc.IsTrue)
	c.Check(p.Match(other, rs), jc.IsFalse)
	c.Check(p.Match(elsewhere, rs), jc.IsFalse)
}

func (s *defaultsSuite) TestServiceSelector(c *gc.C) {
	svc := objecttesting.NewObject(kind.Service, "default", "web",
		objecttesting.WithField(map[string]interface{}{"app": "web"}, "spec", "selector"),
	)
	empty := objecttesting.NewObject(kind.Service, "default", "headless")
	pod := objecttesting.NewObject(kind.Pod, "default", "web-0",
		objecttesting.WithLabels(map[string]string{"app": "web", "tier": "front"}),
	)
	db := objecttesting.NewObject(kind.Pod, "default", "db-0",
		objecttesting.WithLabels(map[string]string{"app": "db"}),
	)

	p := s.predicate(c, kind.Service, kind.Pod)
	c.Check(p.Match(pod, svc), jc.IsTrue)
	c.Check(p.Match(db, svc), jc.IsFalse)
	c.Check(p.Match(pod, empty), jc.IsFalse)
}

func (s *defaultsSuite) TestIngressBackends(c *gc.C) {
	backend := map[string]interface{}{"service": map[string]interface{}{"name": "web"}}
	path := map[string]interface{}{"path": "/", "pathType": "Prefix", "backend": backend}
	rule := map[string]interface{}{"http": map[string]interface{}{"paths": []interface{}{path}}}
	ing := objecttesting.NewObject(kind.Ingress, "default", "web",
		objecttesting.WithField([]interface{}{rule}, "spec", "rules"),
	)
	p := s.predicate(c, kind.Ingress, kind.Service)
	c.Check(p.Match(objecttesting.NewObject(kind.Service, "default", "web"), ing), jc.IsTrue)
	c.Check(p.Match(objecttesting.NewObject(kind.Service, "default", "api"), ing), jc.IsFalse)
}

func (s *defaultsSuite) TestPodVolumes(c *gc.C) {
	volumes := []interface{}{
		map[string]interface{}{"name": "config", "configMap": map[string]interface{}{"name": "web-config"}},
		map[string]interface{}{"name": "creds", "secret": map[string]interface{}{"secretName": "web-creds"}},
		map[string]interface{}{"name": "data", "persistentVolumeClaim": map[string]interface{}{"claimName": "web-data"}},
	}
	envFrom := []interface{}{
		map[string]interface{}{"configMapRef": map[string]interface{}{"name": "web-env"}},
	}
	pod := objecttesting.NewObject(kind.Pod, "default", "web-0",
		objecttesting.WithField(volumes, "spec", "volumes"),
		objecttesting.WithField([]interface{}{map[string]interface{}{"name": "web", "envFrom": envFrom}}, "spec", "containers"),
	)

	cm := s.predicate(c, kind.Pod, kind.ConfigMap)
	c.Check(cm.Match(objecttesting.NewObject(kind.ConfigMap, "default", "web-config"), pod), jc.IsTrue)
	c.Check(cm.Match(objecttesting.NewObject(kind.ConfigMap, "default", "web-env"), pod), jc.IsTrue)
	c.Check(cm.Match(objecttesting.NewObject(kind.ConfigMap, "default", "other"), pod), jc.IsFalse)

	secret := s.predicate(c, kind.Pod, kind.Secret)
	c.Check(secret.Match(objecttesting.NewObject(kind.Secret, "default", "web-creds"), pod), jc.IsTrue)

	pvc := s.predicate(c, kind.Pod, kind.PersistentVolumeClaim)
	c.Check(pvc.Match(objecttesting.NewObject(kind.PersistentVolumeClaim, "default", "web-data"), pod), jc.IsTrue)
	c.Check(pvc.Match(objecttesting.NewObject(kind.PersistentVolumeClaim, "prod", "web-data"), pod), jc.IsFalse)
}

func (s *defaultsSuite) TestScaleTarget(c *gc.C) {
	hpa := objecttesting.NewObject(kind.HorizontalPodAutoscaler, "default", "web",
		objecttesting.WithField(map[string]interface{}{
			"apiVersion": "apps/v1",
			"kind":       "Deployment",
			"name":       "web",
		}, "spec", "scaleTargetRef"),
	)
	p := s.predicate(c, kind.HorizontalPodAutoscaler, kind.Deployment)
	c.Check(p.Match(objecttesting.NewObject(kind.Deployment, "default", "web"), hpa), jc.IsTrue)
	c.Check(p.Match(objecttesting.NewObject(kind.Deployment, "default", "api"), hpa), jc.IsFalse)
}

func (s *defaultsSuite) TestNamespaceTopLevelOnly(c *gc.C) {
	ns := objecttesting.NewObject(kind.Namespace, "", "default")
	rs := objecttesting.NewObject(kind.ReplicaSet, "default", "web-1234")
	owned := objecttesting.NewObject(kind.Pod, "default", "web-1234-abcd", objecttesting.OwnedBy(rs))
	bare := objecttesting.NewObject(kind.Pod, "default", "debug")

	p := s.predicate(c, kind.Namespace, kind.Pod)
	c.Check(p.Match(bare, ns), jc.IsTrue)
	c.Check(p.Match(owned, ns), jc.IsFalse)
	c.Check(p.Match(objecttesting.NewObject(kind.Pod, "prod", "debug"), ns), jc.IsFalse)
}

func (s *defaultsSuite) TestDefaultTableValid(c *gc.C) {
	c.Assert(relation.DefaultTable().Validate(), jc.ErrorIsNil)
}

func (s *defaultsSuite) TestValidateMissingMatch(c *gc.C) {
	t := relation.Table{{Name: "broken", ParentKind: kind.Pod, ChildKind: kind.Secret}}
	c.Assert(t.Validate(), gc.ErrorMatches, `predicate "broken" without match not valid`)
}

