// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"github.com/juju/errors"
	"gopkg.in/yaml.v3"

	"github.com/juju/kubemirror/core/graph"
)

type renderedGraph struct {
	Root       string         `yaml:"root"`
	Generation uint64         `yaml:"generation"`
	Nodes      []renderedNode `yaml:"nodes"`
}

type renderedNode struct {
	ID        string        `yaml:"id"`
	Kind      string        `yaml:"kind"`
	Namespace string        `yaml:"namespace,omitempty"`
	Name      string        `yaml:"name,omitempty"`
	Missing   bool          `yaml:"missing,omitempty"`
	Page      *renderedPage `yaml:"page,omitempty"`
	Children  []string      `yaml:"children,omitempty"`
}

type renderedPage struct {
	Page  int `yaml:"page"`
	Pages int `yaml:"pages"`
	From  int `yaml:"from"`
	To    int `yaml:"to"`
	Total int `yaml:"total"`
}

// render formats the graph as YAML, listing nodes in the order the
// builder placed them.
func render(rootID string, generation uint64, g graph.Graph) ([]byte, error) {
	out := renderedGraph{
		Root:       rootID,
		Generation: generation,
	}
	for _, n := range g.Nodes {
		node := renderedNode{
			ID:       n.ID,
			Children: g.Children(n.ID),
		}
		switch n.Type {
		case graph.ObjectNode:
			node.Kind = string(n.Ref.Kind)
			node.Namespace = n.Ref.Namespace
			node.Name = n.Ref.Name
			node.Missing = n.Object == nil
		case graph.PaginationNode:
			node.Kind = string(n.Page.Kind)
			node.Page = &renderedPage{
				Page:  n.Page.Index() + 1,
				Pages: n.Page.Pages(),
				From:  n.Page.Offset + 1,
				To:    n.Page.End(),
				Total: n.Page.Total,
			}
		}
		out.Nodes = append(out.Nodes, node)
	}
	data, err := yaml.Marshal(out)
	return data, errors.Trace(err)
}
