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

package grammar

import "preforkd/pkg/parse"

// RequestTokens holds the five raw spans of an HTTP request. The tokenizer
// captures each span by noting the offset before and after the matching
// production and re-slicing the input; header key/value splitting is
// deferred to the caller.
type RequestTokens struct {
	Method  string
	URI     string
	Version string
	Headers string
	Body    string
}

// TokenizeRequestLine matches Method 1*SP Request-URI 1*SP HTTP-Version CRLF
// at the front of s, filling the three request-line tokens. It returns the
// bytes consumed, or parse.NoMatch.
func TokenizeRequestLine(tokens *RequestTokens, s string) int {
	manySpaces := parse.Many(parse.SP, 1, parse.Unbounded)
	offset := 0

	// METHOD
	base := offset
	n := Method(s[offset:])
	if n < 0 {
		return parse.NoMatch
	}
	offset += n
	tokens.Method = s[base:offset]

	// 1*SP
	n = manySpaces(s[offset:])
	if n < 0 {
		return parse.NoMatch
	}
	offset += n

	// REQUEST-URI
	base = offset
	n = RequestURI(s[offset:])
	if n < 0 {
		return parse.NoMatch
	}
	offset += n
	tokens.URI = s[base:offset]

	// 1*SP
	n = manySpaces(s[offset:])
	if n < 0 {
		return parse.NoMatch
	}
	offset += n

	// HTTP-VERSION
	base = offset
	n = HTTPVersion(s[offset:])
	if n < 0 {
		return parse.NoMatch
	}
	offset += n
	tokens.Version = s[base:offset]

	// CRLF
	n = parse.CRLF(s[offset:])
	if n < 0 {
		return parse.NoMatch
	}
	offset += n

	return offset
}

// TokenizeHeaders matches *( http-header ) and records the full block span.
func TokenizeHeaders(tokens *RequestTokens, s string) int {
	n := parse.Many(HTTPHeader, 0, parse.Unbounded)(s)
	if n < 0 {
		return n
	}
	tokens.Headers = s[:n]
	return n
}

// TokenizeRequest tokenizes a complete request: request line, header block,
// the terminating CRLF, then the verbatim body. It returns the offset of the
// body within s, or parse.NoMatch when the request is malformed.
func TokenizeRequest(tokens *RequestTokens, s string) int {
	*tokens = RequestTokens{}

	offset := TokenizeRequestLine(tokens, s)
	if offset < 0 {
		return parse.NoMatch
	}

	n := TokenizeHeaders(tokens, s[offset:])
	if n < 0 {
		return parse.NoMatch
	}
	offset += n

	// The blank line separating headers from the body is mandatory.
	n = parse.CRLF(s[offset:])
	if n < 0 {
		return parse.NoMatch
	}
	offset += n

	tokens.Body = s[offset:]
	return offset
}
