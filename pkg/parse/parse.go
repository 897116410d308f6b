// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
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

// Package parse implements a small parser-combinator library.
//
// Every parser shares one contract: it inspects the front of its input and
// reports how many bytes it matched, or NoMatch. Parsers never allocate the
// matched text; callers that need the matched span re-slice the input using
// the returned length. Combinators build larger parsers out of smaller ones
// while preserving the contract.
package parse

import "strings"

// Parser is the uniform parsing contract. It returns the number of bytes
// consumed from the front of s, or NoMatch if the input does not match.
type Parser func(s string) int

// NoMatch is returned by a parser whose input does not match.
const NoMatch = -1

// Unbounded disables the upper repetition limit of Many and List.
const Unbounded = -1

// Sequence matches each parser in order, each one starting where the
// previous one ended. It returns the total number of bytes consumed, or
// the first mismatch, so sequence(p,q)(s) == p(s) + q(s[p(s):]) whenever
// both succeed.
func Sequence(parsers ...Parser) Parser {
	return func(s string) int {
		consumed := 0
		for _, p := range parsers {
			n := p(s[consumed:])
			if n < 0 {
				return n
			}
			consumed += n
		}
		return consumed
	}
}

// Choice tries each parser against the same input and returns the first
// non-negative result. There is no backtracking across Sequence boundaries;
// once an alternative matches, its length is final.
func Choice(parsers ...Parser) Parser {
	return func(s string) int {
		for _, p := range parsers {
			if n := p(s); n >= 0 {
				return n
			}
		}
		return NoMatch
	}
}

// Many greedily matches p between min and max times. max may be Unbounded.
// It succeeds, returning the total bytes consumed, only when at least min
// repetitions matched; end of input stops the repetition without failing it.
// A zero-length match counts once and ends the repetition, so a parser that
// accepts the empty string cannot stall an unbounded Many.
func Many(p Parser, min, max int) Parser {
	return func(s string) int {
		consumed := 0
		count := 0
		for max == Unbounded || count < max {
			if consumed >= len(s) {
				break
			}
			n := p(s[consumed:])
			if n < 0 {
				break
			}
			count++
			if n == 0 {
				break
			}
			consumed += n
		}
		if count < min {
			return NoMatch
		}
		return consumed
	}
}

// Optional matches p zero or one times and never fails.
func Optional(p Parser) Parser {
	return Many(p, 0, 1)
}

// Literal matches lit exactly.
func Literal(lit string) Parser {
	return func(s string) int {
		if strings.HasPrefix(s, lit) {
			return len(lit)
		}
		return NoMatch
	}
}

// List matches the HTTP #rule: *LWS element *( *LWS "," *LWS element ),
// repeated between min and max times. min must be at least 1; a List with a
// smaller min never matches.
func List(p Parser, min, max int, lws Parser) Parser {
	zeroOrMoreLWS := Many(lws, 0, Unbounded)
	trailing := Many(Sequence(zeroOrMoreLWS, Literal(","), zeroOrMoreLWS, p), 0, Unbounded)
	element := Sequence(zeroOrMoreLWS, p, trailing)

	return func(s string) int {
		if min < 1 {
			return NoMatch
		}
		consumed := 0
		count := 0
		for max == Unbounded || count < max {
			if consumed >= len(s) {
				break
			}
			n := element(s[consumed:])
			if n < 0 {
				break
			}
			count++
			if n == 0 {
				break
			}
			consumed += n
		}
		if count < min {
			return NoMatch
		}
		return consumed
	}
}
