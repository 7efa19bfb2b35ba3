// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package assertion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/uiautodev/uiautodev/internal/driver/platformkind"
)

// ConditionResult is the per-condition outcome reported alongside the
// combined verdict.
type ConditionResult struct {
	Index   int            `json:"index"`
	Type    ConditionType  `json:"type"`
	Expect  Expect         `json:"expect"`
	Matched bool           `json:"matched"`
	Element *ElementDetail `json:"element,omitempty"`
	Image   *ImageDetail   `json:"image,omitempty"`
}

// Result is the outcome of Evaluate: the combined boolean plus the detail
// of each condition from the attempt that produced it.
type Result struct {
	TraceID    string            `json:"trace_id"`
	Satisfied  bool              `json:"satisfied"`
	Attempts   int               `json:"attempts"`
	ElapsedMs  int64             `json:"elapsed_ms"`
	Conditions []ConditionResult `json:"conditions"`
}

// Engine evaluates assertion requests against a Driver.
type Engine struct {
	logger *zap.Logger
	driver Driver
}

// NewEngine builds an Engine. logger may be nil, in which case a no-op
// logger is used.
func NewEngine(logger *zap.Logger, driver Driver) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger, driver: driver}
}

// Evaluate runs req.Conditions, combining them with req.Operator, retrying
// on the req.Wait cadence until either the combined result matches what was
// requested or the deadline passes. With Wait disabled exactly one attempt
// is made.
func (e *Engine) Evaluate(ctx context.Context, req Request) (Result, error) {
	if err := req.validate(); err != nil {
		return Result{}, err
	}

	traceID := uuid.NewString()
	start := time.Now()
	var deadline time.Time
	if req.Wait.Enabled {
		deadline = start.Add(time.Duration(req.Wait.TimeoutMs) * time.Millisecond)
	}

	attempts := 0
	for {
		attempts++
		satisfied, details := e.evaluateOnce(ctx, req)

		if satisfied || !req.Wait.Enabled || time.Now().After(deadline) {
			return Result{
				TraceID:    traceID,
				Satisfied:  satisfied,
				Attempts:   attempts,
				ElapsedMs:  time.Since(start).Milliseconds(),
				Conditions: details,
			}, nil
		}

		select {
		case <-ctx.Done():
			return Result{}, fmt.Errorf("assertion canceled after %d attempts: %w", attempts, ctx.Err())
		case <-time.After(time.Duration(req.Wait.IntervalMs) * time.Millisecond):
		}
	}
}

func (e *Engine) evaluateOnce(ctx context.Context, req Request) (bool, []ConditionResult) {
	details := make([]ConditionResult, len(req.Conditions))

	combined := req.Operator == And
	for i, cond := range req.Conditions {
		matched, detail := e.evaluateCondition(ctx, req.Platform, cond)
		details[i] = detail
		details[i].Index = i
		details[i].Matched = matched

		if req.Operator == And {
			combined = combined && matched
		} else {
			combined = combined || matched
		}
	}
	return combined, details
}

func (e *Engine) evaluateCondition(ctx context.Context, platform platformkind.Platform, cond Condition) (bool, ConditionResult) {
	result := ConditionResult{Type: cond.Type, Expect: cond.Expect}

	var exists bool
	switch cond.Type {
	case ElementCondition:
		if cond.Element == nil {
			result.Element = &ElementDetail{Reason: "missing element selector"}
			return false, result
		}
		var detail ElementDetail
		exists, detail = checkElementExists(ctx, e.logger, e.driver, platform, *cond.Element)
		result.Element = &detail
	case ImageCondition:
		if cond.Image == nil {
			result.Image = &ImageDetail{Reason: "missing image template"}
			return false, result
		}
		var detail ImageDetail
		exists, detail = checkImageExists(ctx, e.driver, *cond.Image)
		result.Image = &detail
	default:
		result.Element = &ElementDetail{Reason: fmt.Sprintf("unknown condition type %q", cond.Type)}
		return false, result
	}

	matched := exists
	if cond.Expect == NotExists {
		matched = !exists
	}
	return matched, result
}
