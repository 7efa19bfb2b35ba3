// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/uiautodev/uiautodev/internal/assertion"
	"github.com/uiautodev/uiautodev/internal/driver"
	"github.com/uiautodev/uiautodev/internal/hierarchy"
	"github.com/uiautodev/uiautodev/internal/query"
)

// tapParams mirrors command_proxy.py's tap handler: x/y are either device
// pixels or, when isPercent is true, fractions of the current window size.
type tapParams struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	IsPercent bool    `json:"isPercent"`
}

func handleTap(ctx context.Context, drv driver.Driver, raw json.RawMessage) (any, error) {
	var p tapParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", driver.ErrInvalidArgument, err)
	}

	x, y := int(p.X), int(p.Y)
	if p.IsPercent {
		size, err := drv.WindowSize(ctx)
		if err != nil {
			return nil, err
		}
		x = int(p.X * float64(size.Width))
		y = int(p.Y * float64(size.Height))
	}
	return nil, drv.Tap(ctx, x, y)
}

type swipeParams struct {
	StartX          float64 `json:"startX"`
	StartY          float64 `json:"startY"`
	EndX            float64 `json:"endX"`
	EndY            float64 `json:"endY"`
	DurationSeconds float64 `json:"durationSeconds"`
}

func handleSwipe(ctx context.Context, drv driver.Driver, raw json.RawMessage) (any, error) {
	var p swipeParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", driver.ErrInvalidArgument, err)
	}
	duration := p.DurationSeconds
	if duration <= 0 {
		duration = 0.3
	}
	from := driver.Point{X: int(p.StartX), Y: int(p.StartY)}
	to := driver.Point{X: int(p.EndX), Y: int(p.EndY)}
	return nil, drv.Swipe(ctx, from, to, duration)
}

// direction is a fixed-fraction swipe, grounded on command_proxy.py's
// swipeUp/Down/Left/Right handlers: each moves between two points 3/5 of
// the screen apart, anchored on the midline, over 0.3s.
type direction int

const (
	directionUp direction = iota
	directionDown
	directionLeft
	directionRight
)

const directionalSwipeDuration = 0.3

func directionalSwipeHandler(dir direction) handlerFunc {
	return func(ctx context.Context, drv driver.Driver, _ json.RawMessage) (any, error) {
		size, err := drv.WindowSize(ctx)
		if err != nil {
			return nil, err
		}
		w, h := size.Width, size.Height
		var from, to driver.Point
		switch dir {
		case directionUp:
			from, to = driver.Point{X: w / 2, Y: h * 4 / 5}, driver.Point{X: w / 2, Y: h / 5}
		case directionDown:
			from, to = driver.Point{X: w / 2, Y: h / 5}, driver.Point{X: w / 2, Y: h * 4 / 5}
		case directionLeft:
			from, to = driver.Point{X: w * 4 / 5, Y: h / 2}, driver.Point{X: w / 5, Y: h / 2}
		case directionRight:
			from, to = driver.Point{X: w / 5, Y: h / 2}, driver.Point{X: w * 4 / 5, Y: h / 2}
		}
		return nil, drv.Swipe(ctx, from, to, directionalSwipeDuration)
	}
}

type sendKeysParams struct {
	Text string `json:"text"`
}

func handleSendKeys(ctx context.Context, drv driver.Driver, raw json.RawMessage) (any, error) {
	var p sendKeysParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", driver.ErrInvalidArgument, err)
	}
	return nil, drv.SendKeys(ctx, p.Text)
}

type installAppParams struct {
	URL string `json:"url"`
}

func handleInstallApp(ctx context.Context, drv driver.Driver, raw json.RawMessage) (any, error) {
	var p installAppParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", driver.ErrInvalidArgument, err)
	}
	return nil, drv.InstallApp(ctx, p.URL)
}

type packageParams struct {
	Package string `json:"package"`
}

func handleAppLaunch(ctx context.Context, drv driver.Driver, raw json.RawMessage) (any, error) {
	var p packageParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", driver.ErrInvalidArgument, err)
	}
	// Stop before launch, matching command_proxy.py's app_launch handler.
	_ = drv.AppTerminate(ctx, p.Package)
	return nil, drv.AppLaunch(ctx, p.Package)
}

func handleAppTerminate(ctx context.Context, drv driver.Driver, raw json.RawMessage) (any, error) {
	var p packageParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", driver.ErrInvalidArgument, err)
	}
	return nil, drv.AppTerminate(ctx, p.Package)
}

func handleAppCurrent(ctx context.Context, drv driver.Driver, _ json.RawMessage) (any, error) {
	return drv.AppCurrent(ctx)
}

func handleAppList(ctx context.Context, drv driver.Driver, _ json.RawMessage) (any, error) {
	return drv.AppList(ctx)
}

func handleWindowSize(ctx context.Context, drv driver.Driver, _ json.RawMessage) (any, error) {
	return drv.WindowSize(ctx)
}

// dumpResult is the wire shape of the dump command: the raw XML plus the
// parsed tree, matching command_proxy.py's dump handler response.
type dumpResult struct {
	XML  string          `json:"xml"`
	Tree *hierarchy.Node `json:"tree,omitempty"`
}

func handleDump(ctx context.Context, drv driver.Driver, _ json.RawMessage) (any, error) {
	rawXML, tree, err := drv.DumpHierarchy(ctx)
	if err != nil {
		return nil, err
	}
	return dumpResult{XML: rawXML, Tree: tree}, nil
}

type findElementsParams struct {
	By             query.By `json:"by"`
	Value          string   `json:"value"`
	TimeoutSeconds float64  `json:"timeoutSeconds"`
}

type elementResult struct {
	Bounds     *boundsResult     `json:"bounds,omitempty"`
	Properties map[string]string `json:"properties"`
}

type boundsResult struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func handleFindElements(ctx context.Context, drv driver.Driver, raw json.RawMessage) (any, error) {
	var p findElementsParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", driver.ErrInvalidArgument, err)
	}

	rawXML, tree, err := drv.DumpHierarchy(ctx)
	if err != nil {
		return nil, err
	}

	nodes, err := query.FindAll(tree, rawXML, drv.Platform(), query.Request{By: p.By, Value: p.Value})
	if err != nil {
		return nil, err
	}

	results := make([]elementResult, 0, len(nodes))
	for _, n := range nodes {
		er := elementResult{Properties: n.Properties}
		if n.Bounds != nil {
			er.Bounds = &boundsResult{X1: n.Bounds.X1, Y1: n.Bounds.Y1, X2: n.Bounds.X2, Y2: n.Bounds.Y2}
		}
		results = append(results, er)
	}
	return results, nil
}

type clickElementParams struct {
	By             query.By `json:"by"`
	Value          string   `json:"value"`
	TimeoutSeconds float64  `json:"timeoutSeconds"`
}

type clickElementResult struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func handleClickElement(ctx context.Context, drv driver.Driver, raw json.RawMessage) (any, error) {
	var p clickElementParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", driver.ErrInvalidArgument, err)
	}
	if p.TimeoutSeconds <= 0 {
		p.TimeoutSeconds = 10
	}

	result, isPercent, err := query.ClickElement(ctx, drv.DumpHierarchy, drv.Platform(), query.Request{
		By: p.By, Value: p.Value, TimeoutSeconds: p.TimeoutSeconds,
	})
	if err != nil {
		return nil, err
	}

	x, y := result.X, result.Y
	if isPercent {
		size, err := drv.WindowSize(ctx)
		if err != nil {
			return nil, err
		}
		x = result.X * size.Width
		y = result.Y * size.Height
	}

	if err := drv.Tap(ctx, x, y); err != nil {
		return nil, err
	}
	return clickElementResult{X: x, Y: y}, nil
}

func handleStartMjpeg(ctx context.Context, drv driver.Driver, _ json.RawMessage) (any, error) {
	started, err := drv.StartMjpegStream(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"started": started, "url": drv.GetMjpegURL()}, nil
}

func handleStopMjpeg(ctx context.Context, drv driver.Driver, _ json.RawMessage) (any, error) {
	return nil, drv.StopMjpegStream(ctx)
}

func (d *Dispatcher) handleList(_ context.Context, _ driver.Driver, _ json.RawMessage) (any, error) {
	return d.List(), nil
}

// assertRequest is the wire shape of assertElement/assertImage/
// assertCombined params, unmarshaled into an assertion.Request.
type assertRequest struct {
	Operator   assertion.Operator `json:"operator"`
	Conditions []assertCondition  `json:"conditions"`
	Wait       *assertWait        `json:"wait,omitempty"`
}

type assertCondition struct {
	Type       assertion.ConditionType  `json:"type"`
	Expect     assertion.Expect         `json:"expect"`
	XPath      string                   `json:"xpath,omitempty"`
	Attributes map[string]*string       `json:"attributes,omitempty"`
	Image      *assertion.ImageTemplate `json:"image,omitempty"`
}

type assertWait struct {
	Enabled    bool `json:"enabled"`
	TimeoutMs  int  `json:"timeoutMs"`
	IntervalMs int  `json:"intervalMs"`
}

func (d *Dispatcher) handleAssert(ctx context.Context, drv driver.Driver, raw json.RawMessage) (any, error) {
	var wire assertRequest
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", driver.ErrInvalidArgument, err)
	}

	if wire.Operator == "" {
		wire.Operator = assertion.And
	}

	conditions := make([]assertion.Condition, len(wire.Conditions))
	for i, c := range wire.Conditions {
		cond := assertion.Condition{Type: c.Type, Expect: c.Expect, Image: c.Image}
		if c.Type == assertion.ElementCondition {
			cond.Element = &assertion.ElementSelector{XPath: c.XPath, Attributes: c.Attributes}
		}
		conditions[i] = cond
	}

	req := assertion.Request{
		Operator:   wire.Operator,
		Conditions: conditions,
		Platform:   drv.Platform(),
	}
	if wire.Wait != nil {
		req.Wait = assertion.Wait{Enabled: wire.Wait.Enabled, TimeoutMs: wire.Wait.TimeoutMs, IntervalMs: wire.Wait.IntervalMs}
	}

	return d.engine(drv).Evaluate(ctx, req)
}
