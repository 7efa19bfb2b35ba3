// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package assertion

import (
	"context"

	"go.uber.org/zap"

	"github.com/uiautodev/uiautodev/internal/driver/platformkind"
	"github.com/uiautodev/uiautodev/internal/query"
)

// ElementDetail is the detail object attached to one evaluated element
// condition.
type ElementDetail struct {
	Reason     string `json:"reason,omitempty"`
	FoundCount int    `json:"found_count"`
	XPath      string `json:"xpath"`
}

// checkElementExists dumps the hierarchy, runs the selector's xpath, and
// (if attributes were specified) filters matches by the platform-aliased
// attribute table. It returns whether the element exists (before the
// selector's Expect is applied) plus the detail object.
func checkElementExists(ctx context.Context, logger *zap.Logger, drv Driver, platform platformkind.Platform, sel ElementSelector) (bool, ElementDetail) {
	rawXML, err := drv.DumpHierarchyXML(ctx)
	if err != nil {
		return false, ElementDetail{Reason: "dump hierarchy failed: " + err.Error(), XPath: sel.XPath}
	}

	matches, err := query.EvalXPath(rawXML, sel.XPath, platform)
	if err != nil {
		return false, ElementDetail{Reason: "xpath error: " + err.Error(), XPath: sel.XPath}
	}

	if len(matches) == 0 {
		return false, ElementDetail{Reason: "xpath found nothing", XPath: sel.XPath}
	}

	if len(sel.Attributes) == 0 {
		return true, ElementDetail{FoundCount: len(matches), XPath: sel.XPath}
	}

	for _, node := range matches {
		if nodeMatchesAttributes(logger, node.Properties, platform, sel.Attributes) {
			return true, ElementDetail{FoundCount: len(matches), XPath: sel.XPath}
		}
	}

	return false, ElementDetail{Reason: "attribute mismatch", FoundCount: len(matches), XPath: sel.XPath}
}

func nodeMatchesAttributes(logger *zap.Logger, props map[string]string, platform platformkind.Platform, wanted map[string]*string) bool {
	for key, value := range wanted {
		if value == nil {
			continue // a None-valued attribute is ignored
		}
		raw, ok := query.RawAttribute(platform, key)
		if !ok {
			if logger != nil {
				logger.Warn("unknown attribute in assertion selector, ignoring", zap.String("attribute", key), zap.String("platform", string(platform)))
			}
			continue
		}
		if props[raw] != *value {
			return false
		}
	}
	return true
}
