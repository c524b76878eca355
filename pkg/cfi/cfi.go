/*
 * Copyright 2025 The Pagekeep Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package cfi implements EPUB Canonical Fragment Identifier positions and
// ranges. Positions have a total order; ranges have overlap, touch and
// containment relations. Everything outside this package treats the
// serialized forms as opaque markers.
package cfi

import (
	"strconv"
	"strings"

	"github.com/pagekeep-io/pagekeep/pkg/errors"
)

// RangeSeparator joins the start and end positions of a canonical range marker.
const RangeSeparator = "~"

// Position is a point within e-book content: a path of numeric steps,
// segmented by indirections, with an optional character offset at the leaf.
type Position struct {
	segments  [][]int
	offset    int
	hasOffset bool
}

// ParsePosition parses a position locator. The "epubcfi(...)" wrapper is
// optional; step assertions in brackets are ignored.
func ParsePosition(s string) (Position, error) {
	body := strings.TrimSpace(s)
	if strings.HasPrefix(body, "epubcfi(") && strings.HasSuffix(body, ")") {
		body = body[len("epubcfi(") : len(body)-1]
	}
	body = stripAssertions(body)
	if body == "" {
		return Position{}, errors.InvalidArgument("empty position locator")
	}

	pos := Position{}
	for _, seg := range strings.Split(body, "!") {
		steps, offset, hasOffset, err := parseSegment(seg)
		if err != nil {
			return Position{}, err
		}
		pos.segments = append(pos.segments, steps)
		if hasOffset {
			pos.offset = offset
			pos.hasOffset = true
		}
	}
	if len(pos.segments) == 0 || len(pos.segments[0]) == 0 {
		return Position{}, errors.InvalidArgument("position locator has no steps: " + s)
	}

	return pos, nil
}

func parseSegment(seg string) ([]int, int, bool, error) {
	if !strings.HasPrefix(seg, "/") {
		return nil, 0, false, errors.InvalidArgument("position segment must start with '/': " + seg)
	}

	var steps []int
	offset, hasOffset := 0, false
	for _, tok := range strings.Split(seg, "/")[1:] {
		if tok == "" {
			return nil, 0, false, errors.InvalidArgument("empty step in position segment: " + seg)
		}
		if idx := strings.Index(tok, ":"); idx >= 0 {
			o, err := strconv.Atoi(tok[idx+1:])
			if err != nil {
				return nil, 0, false, errors.InvalidArgument("malformed character offset: " + tok)
			}
			offset, hasOffset = o, true
			tok = tok[:idx]
		}
		n, err := strconv.Atoi(tok)
		if err != nil {
			return nil, 0, false, errors.InvalidArgument("malformed step: " + tok)
		}
		steps = append(steps, n)
	}

	return steps, offset, hasOffset, nil
}

// stripAssertions removes bracketed step assertions, e.g. "/4[chap01]" -> "/4".
func stripAssertions(s string) string {
	if !strings.Contains(s, "[") {
		return s
	}

	sb := strings.Builder{}
	depth := 0
	for _, r := range s {
		switch {
		case r == '[':
			depth++
		case r == ']' && depth > 0:
			depth--
		case depth == 0:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// String renders the position in its canonical textual form.
func (p Position) String() string {
	sb := strings.Builder{}
	for i, seg := range p.segments {
		if i > 0 {
			sb.WriteString("!")
		}
		for j, step := range seg {
			sb.WriteString("/")
			sb.WriteString(strconv.Itoa(step))
			last := i == len(p.segments)-1 && j == len(seg)-1
			if last && p.hasOffset {
				sb.WriteString(":")
				sb.WriteString(strconv.Itoa(p.offset))
			}
		}
	}
	return sb.String()
}

// steps flattens the segment paths for comparison. Indirections do not
// affect ordering.
func (p Position) steps() []int {
	if len(p.segments) == 1 {
		return p.segments[0]
	}
	var flat []int
	for _, seg := range p.segments {
		flat = append(flat, seg...)
	}
	return flat
}

// Compare returns -1, 0 or 1 by the document order of the two positions.
// A position compares before its descendants; offsets order leaf siblings.
func (p Position) Compare(other Position) int {
	a, b := p.steps(), other.steps()
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}

	ao, bo := -1, -1
	if p.hasOffset {
		ao = p.offset
	}
	if other.hasOffset {
		bo = other.offset
	}
	switch {
	case ao < bo:
		return -1
	case ao > bo:
		return 1
	}
	return 0
}

// Before reports whether p precedes other in document order.
func (p Position) Before(other Position) bool { return p.Compare(other) < 0 }

// Range is a span of content between two positions, Start <= End.
type Range struct {
	Start Position
	End   Position
}

// ParseRange parses a range marker. Accepted forms:
//   - canonical "start~end" pairs of position locators,
//   - EPUB range CFIs "epubcfi(parent,startLocal,endLocal)",
//   - a single position, yielding a collapsed range.
func ParseRange(s string) (Range, error) {
	body := strings.TrimSpace(s)
	if strings.Contains(body, RangeSeparator) {
		parts := strings.SplitN(body, RangeSeparator, 2)
		return rangeFromPair(parts[0], parts[1])
	}

	if strings.HasPrefix(body, "epubcfi(") && strings.HasSuffix(body, ")") {
		inner := stripAssertions(body[len("epubcfi(") : len(body)-1])
		if parts := strings.Split(inner, ","); len(parts) == 3 {
			return rangeFromPair(parts[0]+parts[1], parts[0]+parts[2])
		}
	}

	pos, err := ParsePosition(body)
	if err != nil {
		return Range{}, err
	}
	return Range{Start: pos, End: pos}, nil
}

func rangeFromPair(start, end string) (Range, error) {
	s, err := ParsePosition(start)
	if err != nil {
		return Range{}, err
	}
	e, err := ParsePosition(end)
	if err != nil {
		return Range{}, err
	}
	if e.Before(s) {
		s, e = e, s
	}
	return Range{Start: s, End: e}, nil
}

// Marker renders the canonical marker form of the range.
func (r Range) Marker() string {
	return r.Start.String() + RangeSeparator + r.End.String()
}

// Overlaps reports whether the two ranges share any content.
func (r Range) Overlaps(other Range) bool {
	return r.Start.Compare(other.End) <= 0 && other.Start.Compare(r.End) <= 0
}

// Touches reports whether the two ranges are exactly adjacent.
func (r Range) Touches(other Range) bool {
	return r.End.Compare(other.Start) == 0 || other.End.Compare(r.Start) == 0
}

// Contains reports whether the range fully covers the other.
func (r Range) Contains(other Range) bool {
	return r.Start.Compare(other.Start) <= 0 && other.End.Compare(r.End) <= 0
}

// Union returns the smallest range covering both ranges.
func (r Range) Union(other Range) Range {
	out := r
	if other.Start.Before(out.Start) {
		out.Start = other.Start
	}
	if out.End.Before(other.End) {
		out.End = other.End
	}
	return out
}

// Compare orders ranges by start position, then by end position.
func (r Range) Compare(other Range) int {
	if c := r.Start.Compare(other.Start); c != 0 {
		return c
	}
	return r.End.Compare(other.End)
}
