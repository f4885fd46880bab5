// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package graph_test

import (
	"fmt"

	"github.com/juju/collections/set"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/juju/kubemirror/core/graph"
	"github.com/juju/kubemirror/core/kind"
	"github.com/juju/kubemirror/core/object"
	objecttesting "github.com/juju/kubemirror/core/object/testing"
	"github.com/juju/kubemirror/core/relation"
)

type buildSuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&buildSuite{})

func id(obj *object.Object) string {
	return graph.NodeID(obj.Ref())
}

func objectNodes(g graph.Graph) []string {
	var ids []string
	for _, n := range g.Nodes {
		if n.Type == graph.ObjectNode {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

func paginationNodes(g graph.Graph) []graph.Node {
	var nodes []graph.Node
	for _, n := range g.Nodes {
		if n.Type == graph.PaginationNode {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

func (s *buildSuite) replicaSetWithPods(count int) (*object.Object, []*object.Object) {
	rs := objecttesting.NewObject(kind.ReplicaSet, "default", "web-1")
	pods := make([]*object.Object, count)
	for i := range pods {
		pods[i] = objecttesting.NewObject(kind.Pod, "default", fmt.Sprintf("web-1-%02d", i), objecttesting.OwnedBy(rs))
	}
	return rs, pods
}

func (s *buildSuite) TestMissingRootIsSingleNode(c *gc.C) {
	root := object.NewRef(kind.Deployment, "default", "web")
	g := graph.Build(root, newCollections(), relation.DefaultTable(), graph.Options{})
	c.Assert(g.Nodes, gc.HasLen, 1)
	c.Check(g.Nodes[0].ID, gc.Equals, graph.NodeID(root))
	c.Check(g.Nodes[0].Object, gc.IsNil)
	c.Check(g.Edges, gc.HasLen, 0)
}

func (s *buildSuite) TestRootWithoutMatches(c *gc.C) {
	dep := objecttesting.NewObject(kind.Deployment, "default", "web")
	g := graph.Build(dep.Ref(), newCollections(dep), relation.DefaultTable(), graph.Options{})
	c.Check(objectNodes(g), jc.DeepEquals, []string{id(dep)})
	c.Check(g.Edges, gc.HasLen, 0)
}

func (s *buildSuite) TestMultiLevel(c *gc.C) {
	ns := objecttesting.NewObject(kind.Namespace, "", "default")
	dep := objecttesting.NewObject(kind.Deployment, "default", "web")
	rs := objecttesting.NewObject(kind.ReplicaSet, "default", "web-1", objecttesting.OwnedBy(dep))
	pod := objecttesting.NewObject(kind.Pod, "default", "web-1-a", objecttesting.OwnedBy(rs))
	elsewhere := objecttesting.NewObject(kind.Deployment, "prod", "web")

	g := graph.Build(ns.Ref(), newCollections(ns, dep, rs, pod, elsewhere), relation.DefaultTable(), graph.Options{})
	c.Check(objectNodes(g), jc.DeepEquals, []string{id(ns), id(dep), id(rs), id(pod)})
	c.Check(g.Edges, jc.DeepEquals, []graph.Edge{
		{From: id(ns), To: id(dep)},
		{From: id(dep), To: id(rs)},
		{From: id(rs), To: id(pod)},
	})
}

func (s *buildSuite) TestSharedChildIsOneNodeWithTwoEdges(c *gc.C) {
	ns := objecttesting.NewObject(kind.Namespace, "", "default")
	svc := objecttesting.NewObject(kind.Service, "default", "web",
		objecttesting.WithField(map[string]interface{}{"app": "web"}, "spec", "selector"))
	dep := objecttesting.NewObject(kind.Deployment, "default", "web")
	rs := objecttesting.NewObject(kind.ReplicaSet, "default", "web-1", objecttesting.OwnedBy(dep))
	pod := objecttesting.NewObject(kind.Pod, "default", "web-1-a",
		objecttesting.OwnedBy(rs),
		objecttesting.WithLabels(map[string]string{"app": "web"}))

	g := graph.Build(ns.Ref(), newCollections(ns, svc, dep, rs, pod), relation.DefaultTable(), graph.Options{})
	count := 0
	for _, n := range objectNodes(g) {
		if n == id(pod) {
			count++
		}
	}
	c.Check(count, gc.Equals, 1)

	var parents []string
	for _, e := range g.Edges {
		if e.To == id(pod) {
			parents = append(parents, e.From)
		}
	}
	c.Check(parents, jc.SameContents, []string{id(svc), id(rs)})
}

func (s *buildSuite) TestNoPaginationAtThreshold(c *gc.C) {
	rs, pods := s.replicaSetWithPods(graph.DefaultPageSize)
	g := graph.Build(rs.Ref(), newCollections(append(pods, rs)...), relation.DefaultTable(), graph.Options{})
	c.Check(paginationNodes(g), gc.HasLen, 0)
	c.Check(g.Children(id(rs)), gc.HasLen, graph.DefaultPageSize)
}

func (s *buildSuite) TestPagination(c *gc.C) {
	rs, pods := s.replicaSetWithPods(12)
	mirrors := newCollections(append(pods, rs)...)
	pageID := graph.PageID(id(rs), kind.Pod)

	for k := 0; k < 3; k++ {
		c.Logf("page %d", k)
		g := graph.Build(rs.Ref(), mirrors, relation.DefaultTable(), graph.Options{
			Cursors: map[string]int{pageID: 5 * k},
		})

		pages := paginationNodes(g)
		c.Assert(pages, gc.HasLen, 1)
		page := pages[0].Page
		c.Assert(page, gc.NotNil)
		c.Check(pages[0].ID, gc.Equals, pageID)
		c.Check(page.Total, gc.Equals, 12)
		c.Check(page.Pages(), gc.Equals, 3)
		c.Check(page.Index(), gc.Equals, k)
		c.Check(page.Offset, gc.Equals, 5*k)

		var expected []string
		for i := 5 * k; i < min(5*k+5, 12); i++ {
			expected = append(expected, id(pods[i]))
		}
		c.Check(objectNodes(g)[1:], jc.DeepEquals, expected)
		c.Check(g.Children(id(rs)), jc.DeepEquals, append([]string{pageID}, expected...))
	}
}

func (s *buildSuite) TestPaginationCursorNormalised(c *gc.C) {
	rs, pods := s.replicaSetWithPods(12)
	mirrors := newCollections(append(pods, rs)...)
	pageID := graph.PageID(id(rs), kind.Pod)

	for cursor, offset := range map[int]int{7: 5, 12: 0, -3: 0, 11: 10} {
		g := graph.Build(rs.Ref(), mirrors, relation.DefaultTable(), graph.Options{
			Cursors: map[string]int{pageID: cursor},
		})
		page := paginationNodes(g)[0].Page
		c.Check(page.Offset, gc.Equals, offset, gc.Commentf("cursor %d", cursor))
	}
}

func (s *buildSuite) TestPageNext(c *gc.C) {
	page := graph.Page{Offset: 5, PageSize: 5, Total: 12}
	c.Check(page.Next(), gc.Equals, 10)
	page.Offset = 10
	c.Check(page.End(), gc.Equals, 12)
	c.Check(page.Next(), gc.Equals, 0)
}

func (s *buildSuite) TestHiddenKindReparentsGrandchildren(c *gc.C) {
	dep := objecttesting.NewObject(kind.Deployment, "default", "web")
	rs1 := objecttesting.NewObject(kind.ReplicaSet, "default", "web-1", objecttesting.OwnedBy(dep))
	rs2 := objecttesting.NewObject(kind.ReplicaSet, "default", "web-2", objecttesting.OwnedBy(dep))
	objs := []*object.Object{dep, rs1, rs2}
	var grandchildren []string
	for i, rs := range []*object.Object{rs1, rs2} {
		for j := 0; j < 2; j++ {
			pod := objecttesting.NewObject(kind.Pod, "default", fmt.Sprintf("pod-%d-%d", i, j), objecttesting.OwnedBy(rs))
			objs = append(objs, pod)
			grandchildren = append(grandchildren, id(pod))
		}
	}

	g := graph.Build(dep.Ref(), newCollections(objs...), relation.DefaultTable(), graph.Options{
		Hidden: set.NewStrings(string(kind.ReplicaSet)),
	})
	c.Check(objectNodes(g), jc.DeepEquals, append([]string{id(dep)}, grandchildren...))
	c.Check(g.Children(id(dep)), jc.DeepEquals, grandchildren)
	for _, n := range g.Nodes {
		c.Check(n.Ref.Kind, gc.Not(gc.Equals), kind.ReplicaSet)
	}
}

func (s *buildSuite) TestHiddenChainReparentsToNearestVisible(c *gc.C) {
	ns := objecttesting.NewObject(kind.Namespace, "", "default")
	dep := objecttesting.NewObject(kind.Deployment, "default", "web")
	rs := objecttesting.NewObject(kind.ReplicaSet, "default", "web-1", objecttesting.OwnedBy(dep))
	pod := objecttesting.NewObject(kind.Pod, "default", "web-1-a", objecttesting.OwnedBy(rs))

	g := graph.Build(ns.Ref(), newCollections(ns, dep, rs, pod), relation.DefaultTable(), graph.Options{
		Hidden: set.NewStrings(string(kind.Deployment), string(kind.ReplicaSet)),
	})
	c.Check(objectNodes(g), jc.DeepEquals, []string{id(ns), id(pod)})
	c.Check(g.Edges, jc.DeepEquals, []graph.Edge{{From: id(ns), To: id(pod)}})
}

func (s *buildSuite) TestHiddenChildrenCountTowardsPagination(c *gc.C) {
	dep := objecttesting.NewObject(kind.Deployment, "default", "web")
	objs := []*object.Object{dep}
	for i := 0; i < 2; i++ {
		rs := objecttesting.NewObject(kind.ReplicaSet, "default", fmt.Sprintf("web-%d", i), objecttesting.OwnedBy(dep))
		objs = append(objs, rs)
		for j := 0; j < 4; j++ {
			objs = append(objs, objecttesting.NewObject(kind.Pod, "default", fmt.Sprintf("pod-%d-%d", i, j), objecttesting.OwnedBy(rs)))
		}
	}
	g := graph.Build(dep.Ref(), newCollections(objs...), relation.DefaultTable(), graph.Options{
		Hidden: set.NewStrings(string(kind.ReplicaSet)),
	})
	pages := paginationNodes(g)
	c.Assert(pages, gc.HasLen, 1)
	c.Check(pages[0].Page.Total, gc.Equals, 8)
	c.Check(pages[0].Page.Parent, gc.Equals, id(dep))
}

func (s *buildSuite) TestSiblingsOrderedByGroups(c *gc.C) {
	ns := objecttesting.NewObject(kind.Namespace, "", "default")
	a := objecttesting.NewObject(kind.ConfigMap, "default", "a",
		objecttesting.WithAnnotations(map[string]string{graph.GroupsAnnotation: "g1"}))
	b := objecttesting.NewObject(kind.ConfigMap, "default", "b",
		objecttesting.WithAnnotations(map[string]string{
			graph.GroupsAnnotation:      "g2",
			graph.UpsertAfterAnnotation: "g1",
		}))
	cm := objecttesting.NewObject(kind.ConfigMap, "default", "c")

	table := relation.Table{{
		Name:       "namespace-configmap",
		ParentKind: kind.Namespace,
		ChildKind:  kind.ConfigMap,
		Match: func(child, parent *object.Object) bool {
			return child.Namespace == parent.Name
		},
	}}
	// Listing order puts c before b before a.
	mirrors := collections{
		kind.Namespace: {ns},
		kind.ConfigMap: {cm, b, a},
	}
	g := graph.Build(ns.Ref(), mirrors, table, graph.Options{})
	c.Check(g.Children(id(ns)), jc.DeepEquals, []string{id(a), id(b), id(cm)})
}

func (s *buildSuite) TestCustomPageSize(c *gc.C) {
	rs, pods := s.replicaSetWithPods(4)
	g := graph.Build(rs.Ref(), newCollections(append(pods, rs)...), relation.DefaultTable(), graph.Options{
		PageSize: 3,
	})
	pages := paginationNodes(g)
	c.Assert(pages, gc.HasLen, 1)
	c.Check(pages[0].Page.Pages(), gc.Equals, 2)
	c.Check(objectNodes(g), gc.HasLen, 4)
}
