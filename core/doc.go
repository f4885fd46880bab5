// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

/*
Package core holds the concepts and pure logic of the mirror: the kinds
that can be mirrored, the objects themselves, the predicates relating
them, the mirrored collections and the graph grown from them.

Be aware of what should *not* go here. In particular:

  - if it opens a connection of any kind, it should not be in here.
  - if it knows the framing of the relay or of the control plane's
    watch stream, it should not be in here.
  - if it starts goroutines that outlive a call, it belongs in a worker,
    with the exception of the mirror's recompute scheduling.

...and more generally, when adding to core:

  - it's fine to import from any subpackage of
    "github.com/juju/kubemirror/core"
  - but never import from any other subpackage of
    "github.com/juju/kubemirror"
*/
package core
