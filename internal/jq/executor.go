// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package jq filters completion responses with jq expressions.
//
// Every expression may read the response metadata through variables:
// $url, $placement, $attempts and $correlation_id. For example
//
//	cortensor complete --jq '{text: .choices[0].text, via: $url}' "hi"
package jq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/itchyny/gojq"

	"github.com/tombee/cortensor/pkg/completion"
)

const (
	DefaultTimeout      = time.Second
	DefaultMaxInputSize = 10 << 20
)

// ErrInputTooLarge is returned when a response exceeds the input limit.
var ErrInputTooLarge = errors.New("jq input too large")

// variables are bound in this order by Input.values.
var variables = []string{"$url", "$placement", "$attempts", "$correlation_id"}

// Input is one response together with how it was obtained.
type Input struct {
	// Raw is used when set; otherwise Value is encoded.
	Raw           json.RawMessage
	Value         any
	URL           string
	Placement     string
	Attempts      int
	CorrelationID string
}

// FromResult builds an Input from a successful completion.
func FromResult(res *completion.Result) Input {
	return Input{
		Raw:           res.Raw,
		Value:         res.Value,
		URL:           res.URL,
		Placement:     res.Placement.String(),
		Attempts:      res.Attempts,
		CorrelationID: res.CorrelationID,
	}
}

func (in Input) values() []any {
	return []any{in.URL, in.Placement, in.Attempts, in.CorrelationID}
}

// Query is a compiled expression. It is immutable and may be shared by
// concurrent evaluations.
type Query struct {
	src  string
	code *gojq.Code
}

func (q *Query) String() string { return q.src }

// Compile parses src and binds the metadata variables.
func Compile(src string) (*Query, error) {
	parsed, err := gojq.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression: %w", err)
	}
	code, err := gojq.Compile(parsed, gojq.WithVariables(variables))
	if err != nil {
		return nil, fmt.Errorf("jq compilation failed: %w", err)
	}
	return &Query{src: src, code: code}, nil
}

// Executor evaluates queries under a time and input size budget.
type Executor struct {
	timeout  time.Duration
	maxInput int
}

// NewExecutor returns an Executor. Zero arguments select the defaults.
func NewExecutor(timeout time.Duration, maxInput int) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxInput <= 0 {
		maxInput = DefaultMaxInputSize
	}
	return &Executor{timeout: timeout, maxInput: maxInput}
}

// Eval runs q over in. One result is returned bare, several as a slice
// and none as nil.
func (e *Executor) Eval(ctx context.Context, q *Query, in Input) (any, error) {
	doc, err := e.decode(in)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var out []any
	iter := q.code.RunWithContext(runCtx, doc, in.values()...)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, failed := v.(error); failed {
			// bare halt ends the program without an error
			var halt *gojq.HaltError
			if errors.As(err, &halt) && halt.Value() == nil {
				break
			}
			if ctx.Err() == nil && runCtx.Err() != nil {
				return nil, fmt.Errorf("jq evaluation timeout after %v", e.timeout)
			}
			return nil, err
		}
		out = append(out, v)
	}

	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0], nil
	}
	return out, nil
}

// decode turns in into the generic maps, slices and float64s gojq
// expects.
func (e *Executor) decode(in Input) (any, error) {
	raw := in.Raw
	if len(raw) == 0 {
		b, err := json.Marshal(in.Value)
		if err != nil {
			return nil, fmt.Errorf("encoding jq input: %w", err)
		}
		raw = b
	}
	if len(raw) > e.maxInput {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrInputTooLarge, len(raw), e.maxInput)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decoding jq input: %w", err)
	}
	return doc, nil
}
