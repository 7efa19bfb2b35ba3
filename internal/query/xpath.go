// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package query

import (
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/uiautodev/uiautodev/internal/driver/platformkind"
	"github.com/uiautodev/uiautodev/internal/hierarchy"
)

// EvalXPath runs expr against the raw XML (not the parsed tree), preserving
// full XPath expression semantics. Each match is re-materialized into a
// hierarchy.Node by serializing the matched subtree back to XML and routing
// it through hierarchy.Parse, so every result carries normalized bounds the
// same as a tree-walk match would.
func EvalXPath(rawXML string, expr string, platform platformkind.Platform) ([]*hierarchy.Node, error) {
	doc, err := xmlquery.Parse(strings.NewReader(rawXML))
	if err != nil {
		return nil, &hierarchy.ParseError{Reason: err.Error()}
	}

	matches, err := xmlquery.QueryAll(doc, expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errInvalidXPath, err.Error())
	}

	nodes := make([]*hierarchy.Node, 0, len(matches))
	for _, m := range matches {
		if m.Type != xmlquery.ElementNode {
			continue
		}
		node, err := hierarchy.Parse(m.OutputXML(true), platform)
		if err != nil {
			// A fragment that fails to re-parse (e.g. an attribute-only
			// xpath result) is skipped rather than failing the whole query.
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

var errInvalidXPath = fmt.Errorf("invalid xpath expression")
