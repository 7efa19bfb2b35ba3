// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

// Package assertion implements the combined element/image assertion engine:
// retry-until-deadline evaluation of and/or-combined conditions against a
// device driver.
package assertion

import (
	"context"
	"fmt"
	"image"

	"github.com/uiautodev/uiautodev/internal/driver/platformkind"
)

// Operator combines multiple conditions.
type Operator string

const (
	And Operator = "and"
	Or  Operator = "or"
)

// Expect is what a condition is checked against.
type Expect string

const (
	Exists    Expect = "exists"
	NotExists Expect = "not_exists"
)

// ConditionType discriminates the AssertionCondition sum type.
type ConditionType string

const (
	ElementCondition ConditionType = "element"
	ImageCondition   ConditionType = "image"
)

// ElementSelector locates an element for an element-type condition.
type ElementSelector struct {
	XPath      string
	Attributes map[string]*string
}

// ImageTemplate is the template image for an image-type condition.
type ImageTemplate struct {
	// Data is a base64-encoded PNG, optionally prefixed with
	// "data:image/png;base64,". Raw bytes must not exceed MaxTemplateSize.
	Data      string
	Threshold float64
	Name      string
}

// MaxTemplateSize is the 1 MiB cap on decoded template bytes.
const MaxTemplateSize = 1 << 20

// Condition is one entry of an AssertionRequest's Conditions list.
type Condition struct {
	Type    ConditionType
	Expect  Expect
	Element *ElementSelector
	Image   *ImageTemplate
}

// Wait configures optional retry-until-deadline behavior.
type Wait struct {
	Enabled    bool
	TimeoutMs  int
	IntervalMs int
}

func (w Wait) validate() error {
	if !w.Enabled {
		return nil
	}
	if w.TimeoutMs <= 0 {
		return fmt.Errorf("%w: timeout_ms must be positive, got %d", driverErrInvalidArgument, w.TimeoutMs)
	}
	if w.IntervalMs <= 0 {
		return fmt.Errorf("%w: interval_ms must be positive, got %d", driverErrInvalidArgument, w.IntervalMs)
	}
	if w.IntervalMs > w.TimeoutMs {
		return fmt.Errorf("%w: interval_ms (%d) must be <= timeout_ms (%d)", driverErrInvalidArgument, w.IntervalMs, w.TimeoutMs)
	}
	return nil
}

// Request is a full AssertionRequest: operator, conditions, optional wait,
// and the platform whose attribute-alias table governs element matching.
type Request struct {
	Operator   Operator
	Conditions []Condition
	Wait       Wait
	Platform   platformkind.Platform
}

func (r Request) validate() error {
	if r.Operator != And && r.Operator != Or {
		return fmt.Errorf("%w: unknown operator %q", driverErrInvalidArgument, r.Operator)
	}
	if len(r.Conditions) == 0 {
		return fmt.Errorf("%w: conditions must be non-empty", driverErrInvalidArgument)
	}
	return r.Wait.validate()
}

// Driver is the subset of driver.Driver the assertion engine needs.
// Declared locally to avoid a dependency on the concrete driver package.
type Driver interface {
	DumpHierarchyXML(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) (image.Image, error)
}

var driverErrInvalidArgument = fmt.Errorf("invalid argument")
