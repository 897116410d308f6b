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

package parse

// Single-byte parsers for the character classes shared by text protocols.
// Each consumes exactly one byte or reports NoMatch, except CRLF, which
// consumes two.

// Byte matches the single byte b.
func Byte(b byte) Parser {
	return func(s string) int {
		if len(s) > 0 && s[0] == b {
			return 1
		}
		return NoMatch
	}
}

// ByteRange matches one byte in the inclusive range [lo, hi].
func ByteRange(lo, hi byte) Parser {
	return func(s string) int {
		if len(s) > 0 && s[0] >= lo && s[0] <= hi {
			return 1
		}
		return NoMatch
	}
}

// ByteFunc matches one byte satisfying pred.
func ByteFunc(pred func(byte) bool) Parser {
	return func(s string) int {
		if len(s) > 0 && pred(s[0]) {
			return 1
		}
		return NoMatch
	}
}

// AChar matches any 7-bit ASCII byte (0..127).
func AChar(s string) int {
	if len(s) > 0 && s[0] <= 127 {
		return 1
	}
	return NoMatch
}

// UpAlpha matches one uppercase letter.
func UpAlpha(s string) int {
	if len(s) > 0 && s[0] >= 'A' && s[0] <= 'Z' {
		return 1
	}
	return NoMatch
}

// LoAlpha matches one lowercase letter.
func LoAlpha(s string) int {
	if len(s) > 0 && s[0] >= 'a' && s[0] <= 'z' {
		return 1
	}
	return NoMatch
}

// Alpha matches one letter of either case.
func Alpha(s string) int {
	if n := LoAlpha(s); n >= 0 {
		return n
	}
	return UpAlpha(s)
}

// Digit matches one decimal digit.
func Digit(s string) int {
	if len(s) > 0 && s[0] >= '0' && s[0] <= '9' {
		return 1
	}
	return NoMatch
}

// Hex matches one hexadecimal digit of either case.
func Hex(s string) int {
	if len(s) == 0 {
		return NoMatch
	}
	switch s[0] {
	case 'a', 'b', 'c', 'd', 'e', 'f', 'A', 'B', 'C', 'D', 'E', 'F':
		return 1
	}
	return Digit(s)
}

// CR matches a carriage return.
func CR(s string) int {
	if len(s) > 0 && s[0] == '\r' {
		return 1
	}
	return NoMatch
}

// LF matches a line feed.
func LF(s string) int {
	if len(s) > 0 && s[0] == '\n' {
		return 1
	}
	return NoMatch
}

// SP matches a space.
func SP(s string) int {
	if len(s) > 0 && s[0] == ' ' {
		return 1
	}
	return NoMatch
}

// HT matches a horizontal tab.
func HT(s string) int {
	if len(s) > 0 && s[0] == '\t' {
		return 1
	}
	return NoMatch
}

// DblQt matches a double quote.
func DblQt(s string) int {
	if len(s) > 0 && s[0] == '"' {
		return 1
	}
	return NoMatch
}

// CRLF matches the two-byte line terminator.
func CRLF(s string) int {
	return Sequence(CR, LF)(s)
}

// Ctl matches one control byte (0..31 or DEL).
func Ctl(s string) int {
	if len(s) > 0 && (s[0] <= 31 || s[0] == 127) {
		return 1
	}
	return NoMatch
}
