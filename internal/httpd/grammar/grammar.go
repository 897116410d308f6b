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

// Package grammar implements the request grammar of RFC 1945 and the parts
// of RFC 2616 this server understands, composed from the parse package.
// Every production follows the parse.Parser contract: bytes consumed or
// parse.NoMatch. Productions are plain functions so that mutually recursive
// rules (comment, for one) can reference each other directly.
package grammar

import "preforkd/pkg/parse"

// --- basic rules ---

// LWS matches linear white space: [CRLF] 1*( SP | HT ).
func LWS(s string) int {
	return parse.Sequence(
		parse.Optional(parse.CRLF),
		parse.Many(parse.Choice(parse.SP, parse.HT), 1, parse.Unbounded),
	)(s)
}

// Text matches a single byte of TEXT: any octet except controls, with LWS
// folding counted one byte at a time.
func Text(s string) int {
	if len(s) == 0 {
		return parse.NoMatch
	}
	if LWS(s) > 0 {
		return 1
	}
	if parse.Ctl(s) > 0 {
		return parse.NoMatch
	}
	return 1
}

// TSpecials matches one separator byte, including SP and HT.
func TSpecials(s string) int {
	if parse.SP(s) >= 0 || parse.HT(s) >= 0 {
		return 1
	}
	if len(s) == 0 {
		return parse.NoMatch
	}
	switch s[0] {
	case '(', ')', '<', '>', '@', ',', ';', ':', '\\', '"', '/', '[', ']', '?', '=', '{', '}':
		return 1
	}
	return parse.NoMatch
}

func tokenChar(s string) int {
	if parse.AChar(s) >= 0 && parse.Ctl(s) < 0 && TSpecials(s) < 0 {
		return 1
	}
	return parse.NoMatch
}

// Token matches 1*<any CHAR except CTLs or tspecials>.
func Token(s string) int {
	return parse.Many(tokenChar, 1, parse.Unbounded)(s)
}

// QdText matches one byte legal inside a quoted string.
func QdText(s string) int {
	if LWS(s) >= 0 {
		return 1
	}
	if parse.AChar(s) >= 0 && parse.Ctl(s) < 0 && parse.DblQt(s) < 0 {
		return 1
	}
	return parse.NoMatch
}

// QuotedString matches ( <"> *(qdtext) <"> ).
func QuotedString(s string) int {
	return parse.Sequence(
		parse.DblQt,
		parse.Many(QdText, 0, parse.Unbounded),
		parse.DblQt,
	)(s)
}

// Word matches token | quoted-string.
func Word(s string) int {
	return parse.Choice(Token, QuotedString)(s)
}

// list applies the HTTP #rule with this grammar's LWS.
func list(p parse.Parser, min, max int) parse.Parser {
	return parse.List(p, min, max, LWS)
}

// --- URI character classes ---

// Safe matches one of "$" "-" "_" ".".
func Safe(s string) int {
	if len(s) == 0 {
		return parse.NoMatch
	}
	switch s[0] {
	case '$', '-', '_', '.':
		return 1
	}
	return parse.NoMatch
}

// Unsafe matches a byte that must be escaped inside a URI.
func Unsafe(s string) int {
	if len(s) == 0 {
		return parse.NoMatch
	}
	switch s[0] {
	case '"', '#', '%', '<', '>':
		return 1
	}
	if parse.Ctl(s) >= 0 || parse.SP(s) >= 0 {
		return 1
	}
	return parse.NoMatch
}

// Reserved matches one of ";" "/" "?" ":" "@" "&" "=" "+".
func Reserved(s string) int {
	if len(s) == 0 {
		return parse.NoMatch
	}
	switch s[0] {
	case ';', '/', '?', ':', '@', '&', '=', '+':
		return 1
	}
	return parse.NoMatch
}

// Extra matches one of "!" "*" "'" "(" ")" ",".
func Extra(s string) int {
	if len(s) == 0 {
		return parse.NoMatch
	}
	switch s[0] {
	case '!', '*', '\'', '(', ')', ',':
		return 1
	}
	return parse.NoMatch
}

// National matches any byte outside alpha, digit, reserved, extra, safe and
// unsafe.
func National(s string) int {
	if len(s) == 0 {
		return parse.NoMatch
	}
	if parse.Alpha(s) >= 0 || parse.Digit(s) >= 0 || Reserved(s) >= 0 ||
		Extra(s) >= 0 || Safe(s) >= 0 || Unsafe(s) >= 0 {
		return parse.NoMatch
	}
	return 1
}

// Unreserved matches alpha | digit | safe | extra | national.
func Unreserved(s string) int {
	if parse.Alpha(s) >= 0 || parse.Digit(s) >= 0 || Safe(s) >= 0 ||
		Extra(s) >= 0 || National(s) >= 0 {
		return 1
	}
	return parse.NoMatch
}

// Escape matches "%" HEX HEX.
func Escape(s string) int {
	return parse.Sequence(parse.Literal("%"), parse.Hex, parse.Hex)(s)
}

// UChar matches unreserved | escape.
func UChar(s string) int {
	return parse.Choice(Unreserved, Escape)(s)
}

// PChar matches uchar | ":" | "@" | "&" | "=" | "+".
func PChar(s string) int {
	if len(s) == 0 {
		return parse.NoMatch
	}
	switch s[0] {
	case ':', '@', '&', '=', '+':
		return 1
	}
	if UChar(s) >= 0 {
		return 1
	}
	return parse.NoMatch
}

// --- URI structure ---

// FSegment matches 1*pchar.
func FSegment(s string) int {
	return parse.Many(PChar, 1, parse.Unbounded)(s)
}

// Segment matches *pchar.
func Segment(s string) int {
	return parse.Many(PChar, 0, parse.Unbounded)(s)
}

// Path matches fsegment *( "/" segment ).
func Path(s string) int {
	return parse.Sequence(
		FSegment,
		parse.Many(parse.Sequence(parse.Literal("/"), Segment), 0, parse.Unbounded),
	)(s)
}

// Param matches *( pchar | "/" ).
func Param(s string) int {
	return parse.Many(parse.Choice(PChar, parse.Literal("/")), 0, parse.Unbounded)(s)
}

// Params matches param *( ";" param ).
func Params(s string) int {
	return parse.Sequence(
		Param,
		parse.Many(parse.Sequence(parse.Literal(";"), Param), 0, parse.Unbounded),
	)(s)
}

// Query matches *( uchar | reserved ).
func Query(s string) int {
	return parse.Many(parse.Choice(UChar, Reserved), 0, parse.Unbounded)(s)
}

// Fragment shares the query grammar.
func Fragment(s string) int {
	return Query(s)
}

// Scheme matches 1*( alpha | digit | "+" | "-" | "." ).
func Scheme(s string) int {
	return parse.Many(parse.Choice(
		parse.Alpha,
		parse.Digit,
		parse.Literal("+"),
		parse.Literal("-"),
		parse.Literal("."),
	), 1, parse.Unbounded)(s)
}

// NetLoc matches *( pchar | ";" | "?" ).
func NetLoc(s string) int {
	return parse.Many(parse.Choice(PChar, parse.Literal(";"), parse.Literal("?")), 0, parse.Unbounded)(s)
}

// RelPath matches [path] [";" params] ["?" query].
func RelPath(s string) int {
	return parse.Sequence(
		parse.Optional(Path),
		parse.Optional(parse.Sequence(parse.Literal(";"), Params)),
		parse.Optional(parse.Sequence(parse.Literal("?"), Query)),
	)(s)
}

// AbsPath matches "/" rel_path.
func AbsPath(s string) int {
	return parse.Sequence(parse.Literal("/"), RelPath)(s)
}

// NetPath matches "//" net_loc [abs_path].
func NetPath(s string) int {
	return parse.Sequence(parse.Literal("//"), NetLoc, parse.Optional(AbsPath))(s)
}

// RelativeURI matches net_path | abs_path | rel_path.
func RelativeURI(s string) int {
	return parse.Choice(NetPath, AbsPath, RelPath)(s)
}

// AbsoluteURI matches scheme ":" *( uchar | reserved ).
func AbsoluteURI(s string) int {
	return parse.Sequence(
		Scheme,
		parse.Literal(":"),
		parse.Many(parse.Choice(UChar, Reserved), 0, parse.Unbounded),
	)(s)
}

// URI matches ( absoluteURI | relativeURI ) [ "#" fragment ].
func URI(s string) int {
	return parse.Sequence(
		parse.Choice(AbsoluteURI, RelativeURI),
		parse.Optional(parse.Sequence(parse.Literal("#"), Fragment)),
	)(s)
}

// RequestURI matches "*" | absoluteURI | abs_path.
func RequestURI(s string) int {
	return parse.Choice(parse.Literal("*"), AbsoluteURI, AbsPath)(s)
}

// --- dates ---

// Month matches the three-letter month names.
func Month(s string) int {
	return parse.Choice(
		parse.Literal("Jan"), parse.Literal("Feb"), parse.Literal("Mar"),
		parse.Literal("Apr"), parse.Literal("May"), parse.Literal("Jun"),
		parse.Literal("Jul"), parse.Literal("Aug"), parse.Literal("Sep"),
		parse.Literal("Oct"), parse.Literal("Nov"), parse.Literal("Dec"),
	)(s)
}

// Weekday matches the long day names used by the RFC 850 format.
func Weekday(s string) int {
	return parse.Choice(
		parse.Literal("Monday"), parse.Literal("Tuesday"), parse.Literal("Wednesday"),
		parse.Literal("Thursday"), parse.Literal("Friday"), parse.Literal("Saturday"),
		parse.Literal("Sunday"),
	)(s)
}

// Wkday matches the short day names.
func Wkday(s string) int {
	return parse.Choice(
		parse.Literal("Mon"), parse.Literal("Tue"), parse.Literal("Wed"),
		parse.Literal("Thu"), parse.Literal("Fri"), parse.Literal("Sat"),
		parse.Literal("Sun"),
	)(s)
}

// TimeOfDay matches 2DIGIT ":" 2DIGIT ":" 2DIGIT.
func TimeOfDay(s string) int {
	twoDigits := parse.Many(parse.Digit, 2, 2)
	return parse.Sequence(twoDigits, parse.Literal(":"), twoDigits, parse.Literal(":"), twoDigits)(s)
}

// Date1 matches 2DIGIT SP month SP 4DIGIT.
func Date1(s string) int {
	return parse.Sequence(
		parse.Many(parse.Digit, 2, 2),
		parse.SP,
		Month,
		parse.SP,
		parse.Many(parse.Digit, 4, 4),
	)(s)
}

// Date2 matches 2DIGIT "-" month "-" 2DIGIT.
func Date2(s string) int {
	twoDigits := parse.Many(parse.Digit, 2, 2)
	return parse.Sequence(twoDigits, parse.Literal("-"), Month, parse.Literal("-"), twoDigits)(s)
}

// Date3 matches month SP ( 2DIGIT | ( SP 1DIGIT ) ).
func Date3(s string) int {
	day := parse.Choice(
		parse.Many(parse.Digit, 2, 2),
		parse.Sequence(parse.SP, parse.Many(parse.Digit, 1, 1)),
	)
	return parse.Sequence(Month, parse.SP, day)(s)
}

// ASCTimeDate matches wkday SP date3 SP time SP 4DIGIT.
func ASCTimeDate(s string) int {
	return parse.Sequence(
		Wkday, parse.SP, Date3, parse.SP, TimeOfDay, parse.SP,
		parse.Many(parse.Digit, 4, 4),
	)(s)
}

// RFC850Date matches weekday "," SP date2 SP time SP "GMT".
func RFC850Date(s string) int {
	return parse.Sequence(
		Weekday, parse.Literal(","), parse.SP, Date2, parse.SP, TimeOfDay, parse.SP,
		parse.Literal("GMT"),
	)(s)
}

// RFC1123Date matches wkday "," SP date1 SP time SP "GMT".
func RFC1123Date(s string) int {
	return parse.Sequence(
		Wkday, parse.Literal(","), parse.SP, Date1, parse.SP, TimeOfDay, parse.SP,
		parse.Literal("GMT"),
	)(s)
}

// HTTPDate matches rfc1123-date | rfc850-date | asctime-date.
func HTTPDate(s string) int {
	return parse.Choice(RFC1123Date, RFC850Date, ASCTimeDate)(s)
}

// --- products and comments ---

// ProductVersion shares the token grammar.
func ProductVersion(s string) int {
	return Token(s)
}

// Product matches token [ "/" product-version ].
func Product(s string) int {
	return parse.Sequence(
		Token,
		parse.Optional(parse.Sequence(parse.Literal("/"), ProductVersion)),
	)(s)
}

// CText matches one byte of TEXT excluding parentheses.
func CText(s string) int {
	if len(s) == 0 {
		return parse.NoMatch
	}
	switch s[0] {
	case '(', ')':
		return parse.NoMatch
	}
	return Text(s)
}

// Comment matches "(" *( ctext | comment ) ")". The rule is self-recursive,
// which is why the productions in this package are functions.
func Comment(s string) int {
	return parse.Sequence(
		parse.Literal("("),
		parse.Many(parse.Choice(CText, Comment), 0, parse.Unbounded),
		parse.Literal(")"),
	)(s)
}

// --- authentication and pragma ---

// AuthScheme shares the token grammar.
func AuthScheme(s string) int {
	return Token(s)
}

// AuthParam matches token "=" quoted-string.
func AuthParam(s string) int {
	return parse.Sequence(Token, parse.Literal("="), QuotedString)(s)
}

// UserIDPassword matches [token] ":" *TEXT.
func UserIDPassword(s string) int {
	return parse.Sequence(
		parse.Optional(Token),
		parse.Literal(":"),
		parse.Many(Text, 0, parse.Unbounded),
	)(s)
}

// ExtensionPragma matches token [ "=" word ].
func ExtensionPragma(s string) int {
	return parse.Sequence(
		Token,
		parse.Optional(parse.Sequence(parse.Literal("="), Word)),
	)(s)
}

// PragmaDirective matches "no-cache" | extension-pragma.
func PragmaDirective(s string) int {
	return parse.Choice(parse.Literal("no-cache"), ExtensionPragma)(s)
}

// Pragma matches "Pragma" ":" 1#pragma-directive.
func Pragma(s string) int {
	return parse.Sequence(
		parse.Literal("Pragma"),
		parse.Literal(":"),
		parse.Many(LWS, 0, parse.Unbounded),
		list(PragmaDirective, 1, parse.Unbounded),
	)(s)
}

// --- header fields ---

// FieldName shares the token grammar.
func FieldName(s string) int {
	return Token(s)
}

// FieldContent matches the free-form field text.
func FieldContent(s string) int {
	return parse.Many(parse.Choice(Text, Token, TSpecials, QuotedString), 0, parse.Unbounded)(s)
}

// FieldValue matches *( field-content | LWS ).
func FieldValue(s string) int {
	return parse.Many(parse.Choice(FieldContent, LWS), 0, parse.Unbounded)(s)
}

// HTTPHeader matches field-name ":" SP [ field-value ] CRLF.
func HTTPHeader(s string) int {
	return parse.Sequence(
		FieldName,
		parse.Literal(":"),
		parse.SP,
		parse.Optional(FieldValue),
		parse.CRLF,
	)(s)
}

// ContentCoding matches "x-gzip" | "x-compress" | token.
func ContentCoding(s string) int {
	return parse.Choice(parse.Literal("x-gzip"), parse.Literal("x-compress"), Token)(s)
}

// Attribute shares the token grammar.
func Attribute(s string) int {
	return Token(s)
}

// Value matches token | quoted-string.
func Value(s string) int {
	return parse.Choice(Token, QuotedString)(s)
}

// Parameter matches attribute "=" value.
func Parameter(s string) int {
	return parse.Sequence(Attribute, parse.Literal("="), Value)(s)
}

// MediaType matches type "/" subtype *( ";" parameter ).
func MediaType(s string) int {
	return parse.Sequence(
		Token,
		parse.Literal("/"),
		Token,
		parse.Many(parse.Sequence(parse.Literal(";"), Parameter), 0, parse.Unbounded),
	)(s)
}

// headerRule builds the shared "Name" ":" *LWS value production.
func headerRule(name string, value parse.Parser) parse.Parser {
	return parse.Sequence(
		parse.Literal(name),
		parse.Literal(":"),
		parse.Many(LWS, 0, parse.Unbounded),
		value,
	)
}

// Allow matches "Allow" ":" 1#method.
func Allow(s string) int {
	return headerRule("Allow", list(Method, 1, parse.Unbounded))(s)
}

// ContentEncoding matches "Content-Encoding" ":" content-coding.
func ContentEncoding(s string) int {
	return headerRule("Content-Encoding", ContentCoding)(s)
}

// ContentLength matches "Content-Length" ":" 1*DIGIT.
func ContentLength(s string) int {
	return headerRule("Content-Length", parse.Many(parse.Digit, 1, parse.Unbounded))(s)
}

// ContentType matches "Content-Type" ":" media-type.
func ContentType(s string) int {
	return headerRule("Content-Type", MediaType)(s)
}

// Expires matches "Expires" ":" HTTP-date.
func Expires(s string) int {
	return headerRule("Expires", HTTPDate)(s)
}

// LastModified matches "Last-Modified" ":" HTTP-date.
func LastModified(s string) int {
	return headerRule("Last-Modified", HTTPDate)(s)
}

// Date matches "Date" ":" HTTP-date.
func Date(s string) int {
	return headerRule("Date", HTTPDate)(s)
}

// IfModifiedSince matches "If-Modified-Since" ":" HTTP-date.
func IfModifiedSince(s string) int {
	return headerRule("If-Modified-Since", HTTPDate)(s)
}

// Referer matches "Referer" ":" ( absoluteURI | relativeURI ).
func Referer(s string) int {
	return headerRule("Referer", parse.Choice(AbsoluteURI, RelativeURI))(s)
}

// UserAgent matches "User-Agent" ":" 1*( product | comment ).
func UserAgent(s string) int {
	return headerRule("User-Agent", parse.Many(parse.Choice(Product, Comment), 1, parse.Unbounded))(s)
}

// GeneralHeader matches *LWS ( Date | Pragma ).
func GeneralHeader(s string) int {
	return parse.Sequence(
		parse.Many(LWS, 0, parse.Unbounded),
		parse.Choice(Date, Pragma),
	)(s)
}

// RequestHeader matches *LWS ( If-Modified-Since | Referer | User-Agent ).
func RequestHeader(s string) int {
	return parse.Sequence(
		parse.Many(LWS, 0, parse.Unbounded),
		parse.Choice(IfModifiedSince, Referer, UserAgent),
	)(s)
}

// EntityHeader matches *LWS one of the entity fields.
func EntityHeader(s string) int {
	return parse.Sequence(
		parse.Many(LWS, 0, parse.Unbounded),
		parse.Choice(Allow, ContentEncoding, ContentLength, ContentType, Expires, LastModified),
	)(s)
}

// ExtensionHeader falls back to the generic header shape.
func ExtensionHeader(s string) int {
	return HTTPHeader(s)
}

// --- request line ---

// ExtensionMethod shares the token grammar.
func ExtensionMethod(s string) int {
	return Token(s)
}

// Method matches the RFC method names, then any extension token.
func Method(s string) int {
	return parse.Choice(
		parse.Literal("OPTIONS"),
		parse.Literal("GET"),
		parse.Literal("HEAD"),
		parse.Literal("POST"),
		parse.Literal("PUT"),
		parse.Literal("DELETE"),
		parse.Literal("TRACE"),
		parse.Literal("CONNECT"),
		ExtensionMethod,
	)(s)
}

// HTTPVersion matches "HTTP" "/" 1DIGIT "." 1DIGIT.
func HTTPVersion(s string) int {
	oneDigit := parse.Many(parse.Digit, 1, 1)
	return parse.Sequence(
		parse.Literal("HTTP"),
		parse.Literal("/"),
		oneDigit,
		parse.Literal("."),
		oneDigit,
	)(s)
}
