// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package query

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/uiautodev/uiautodev/internal/driver/platformkind"
	"github.com/uiautodev/uiautodev/internal/hierarchy"
)

// Request is the input to a Find operation: {by, value, timeout_seconds}.
type Request struct {
	By             By
	Value          string
	TimeoutSeconds float64
}

// pollInterval is click_element's fixed retry cadence.
const pollInterval = 500 * time.Millisecond

// FindAll resolves a Request against a tree/rawXML pair. Non-xpath queries
// walk the parsed tree in document order; xpath is evaluated against the
// raw XML directly.
func FindAll(tree *hierarchy.Node, rawXML string, platform platformkind.Platform, req Request) ([]*hierarchy.Node, error) {
	if req.By == ByXPath {
		return EvalXPath(rawXML, req.Value, platform)
	}

	var results []*hierarchy.Node
	hierarchy.Walk(tree, func(n *hierarchy.Node) {
		if matches(n, platform, req) {
			results = append(results, n)
		}
	})
	return results, nil
}

func matches(n *hierarchy.Node, platform platformkind.Platform, req Request) bool {
	switch req.By {
	case ByID:
		return attr(n, platform, "resourceId") == req.Value || n.Properties["label"] == req.Value
	case ByText:
		return attr(n, platform, "text") == req.Value || n.Properties["label"] == req.Value
	case ByLabel:
		return n.Properties["label"] == req.Value
	case ByClassName:
		return attr(n, platform, "className") == req.Value
	default:
		return false
	}
}

func attr(n *hierarchy.Node, platform platformkind.Platform, logicalKey string) string {
	raw, ok := RawAttribute(platform, logicalKey)
	if !ok {
		return ""
	}
	return n.Properties[raw]
}

// DumpFunc produces the current hierarchy on demand, matching the driver's
// DumpHierarchy signature. ClickElement calls it on every poll.
type DumpFunc func(ctx context.Context) (rawXML string, tree *hierarchy.Node, err error)

// ClickResult is the tap target resolved by ClickElement.
type ClickResult struct {
	X, Y int
}

// ClickElement polls dump+find every 500ms until found or the deadline
// passes, then computes the center of the first match. Bounds are derived
// from x/y/width/height properties when Node.Bounds is absent; if both are
// unavailable the operation fails with ErrElementNotFound. When the
// resolved x2<=1 and y2<=1 the coordinates are normalized and must be
// scaled by the caller's window size before tapping.
func ClickElement(ctx context.Context, dump DumpFunc, platform platformkind.Platform, req Request) (ClickResult, bool, error) {
	deadline := time.Now().Add(time.Duration(req.TimeoutSeconds * float64(time.Second)))

	for {
		rawXML, tree, err := dump(ctx)
		if err != nil {
			return ClickResult{}, false, err
		}

		results, err := FindAll(tree, rawXML, platform, req)
		if err != nil {
			return ClickResult{}, false, err
		}

		if len(results) > 0 {
			center, isPercent, err := centerOf(results[0])
			if err != nil {
				return ClickResult{}, false, err
			}
			return center, isPercent, nil
		}

		if time.Now().After(deadline) {
			return ClickResult{}, false, fmt.Errorf("%w: no match for %s=%s within %.1fs", elementNotFound, req.By, req.Value, req.TimeoutSeconds)
		}

		select {
		case <-ctx.Done():
			return ClickResult{}, false, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// centerOf returns the center point of n's bounds and whether that point is
// expressed in normalized (0..1) coordinates. This implementation makes the
// ambiguity explicit rather than coercing silently. Normalized is true only
// when both x2<=1 and y2<=1.
func centerOf(n *hierarchy.Node) (ClickResult, bool, error) {
	var x1, y1, x2, y2 float64
	if n.Bounds != nil {
		x1, y1, x2, y2 = float64(n.Bounds.X1), float64(n.Bounds.Y1), float64(n.Bounds.X2), float64(n.Bounds.Y2)
	} else {
		var ok bool
		x1, y1, x2, y2, ok = floatBoundsFromProperties(n)
		if !ok {
			return ClickResult{}, false, elementNotFoundErr()
		}
	}

	isPercent := x2 <= 1 && y2 <= 1
	cx := int((x1 + x2) / 2)
	cy := int((y1 + y2) / 2)
	return ClickResult{X: cx, Y: cy}, isPercent, nil
}

func floatBoundsFromProperties(n *hierarchy.Node) (x1, y1, x2, y2 float64, ok bool) {
	x, xok := parseFloatProp(n.Properties["x"])
	y, yok := parseFloatProp(n.Properties["y"])
	w, wok := parseFloatProp(n.Properties["width"])
	h, hok := parseFloatProp(n.Properties["height"])
	if !xok || !yok || !wok || !hok {
		return 0, 0, 0, 0, false
	}
	return x, y, x + w, y + h, true
}

func parseFloatProp(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

var elementNotFound = fmt.Errorf("element not found")

func elementNotFoundErr() error {
	return fmt.Errorf("%w: bounds unavailable", elementNotFound)
}
