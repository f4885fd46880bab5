// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package mirror

import "github.com/juju/loggo"

var logger = loggo.GetLogger("kubemirror.core.mirror")
