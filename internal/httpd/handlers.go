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

// Package httpd implements the structured HTTP model and handlers. This
// file implements the request handlers and the six processing entry points
// the loader binds: request init, parse, process, response write, and the
// two destroy hooks.
package httpd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"

	"preforkd/internal/httpd/grammar"
	"preforkd/internal/store"
)

var log = commonlog.GetLogger("preforkd.httpd")

// Processor bundles the processing entry points with the key/value store
// used for POST persistence. A nil store disables persistence.
type Processor struct {
	Store store.KeyValueStore
}

// NewProcessor returns a processor backed by the given store.
func NewProcessor(kv store.KeyValueStore) *Processor {
	return &Processor{Store: kv}
}

// RequestInit creates a zeroed request rooted at the given public
// directory.
func (p *Processor) RequestInit(publicDir string) (*Request, error) {
	if publicDir == "" {
		return nil, ErrInvalidArgument
	}
	return &Request{PublicDir: publicDir}, nil
}

// RequestParse tokenizes raw request bytes and populates req. A tokenizer
// mismatch yields ErrMalformed and leaves req unspecified.
func (p *Processor) RequestParse(req *Request, data []byte) error {
	if req == nil {
		return ErrInvalidArgument
	}

	var tokens grammar.RequestTokens
	if grammar.TokenizeRequest(&tokens, string(data)) < 0 {
		return ErrMalformed
	}

	req.Method = MethodCode(tokens.Method)
	req.Version = VersionCode(tokens.Version)

	// A bare "/" serves the index page.
	if tokens.URI == "/" {
		req.URI = "/index.html"
	} else {
		req.URI = tokens.URI
	}

	// Split each captured header line on the first ": ".
	req.Headers = req.Headers[:0]
	for _, line := range strings.Split(tokens.Headers, "\r\n") {
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, ": ")
		if !found {
			return ErrMalformed
		}
		req.Headers.Add(key, value)
	}

	req.Body = []byte(tokens.Body)
	return nil
}

// RequestProcess dispatches on the request method and fills resp. An
// unhandled method produces a 500 response and ErrUnknownMethod.
func (p *Processor) RequestProcess(req *Request, resp *Response) error {
	if req == nil || resp == nil {
		return ErrInvalidArgument
	}

	var err error
	switch req.Method {
	case MethodGet:
		err = p.handleGet(req, resp)
	case MethodHead:
		err = p.handleHead(req, resp)
	case MethodPost:
		err = p.handlePost(req, resp)
	default:
		responseInit(resp, StatusInternalServerError)
		setContentLength(resp)
		err = ErrUnknownMethod
	}

	resp.Version = req.Version
	return err
}

// handleGet validates the URI, resolves it under the public directory and
// reads the file into the response body. Traversal outside the root is
// 403; a failed open is 404.
func (p *Processor) handleGet(req *Request, resp *Response) error {
	if !ValidateURI(req.URI) {
		responseInit(resp, StatusForbidden)
		setContentLength(resp)
		return nil
	}

	filepath := req.PublicDir + req.URI

	body, err := os.ReadFile(filepath)
	if err != nil {
		log.Debugf("open %q: %v", filepath, err)
		responseInit(resp, StatusNotFound)
		setContentLength(resp)
		return nil
	}

	responseInit(resp, StatusOK)
	resp.Body = body
	resp.Headers.Set("Content-Type", MimeType(filepath))
	setContentLength(resp)
	return nil
}

// handleHead runs the GET path, then discards the body. The emitted
// Content-Length keeps the length the body would have had.
func (p *Processor) handleHead(req *Request, resp *Response) error {
	if err := p.handleGet(req, resp); err != nil {
		return err
	}
	resp.Body = nil
	return nil
}

// handlePost serves the resource like GET and, when the request carries a
// body, records it in the store under the request URI. A later POST to the
// same URI overwrites the earlier record.
func (p *Processor) handlePost(req *Request, resp *Response) error {
	if err := p.handleGet(req, resp); err != nil {
		return err
	}

	if len(req.Body) == 0 || p.Store == nil {
		return nil
	}

	if err := p.Store.Put(context.Background(), req.URI, req.Body); err != nil {
		log.Errorf("store put %q: %v", req.URI, err)
		responseInit(resp, StatusInternalServerError)
		setContentLength(resp)
	}
	return nil
}

// ResponseWrite serializes resp into its wire form: status line, headers
// in insertion order, a blank line, then the body. The body is withheld on
// HEAD requests and on any status between 400 and 511.
func (p *Processor) ResponseWrite(resp *Response, req *Request) ([]byte, error) {
	if resp == nil || req == nil {
		return nil, ErrInvalidArgument
	}

	version, ok := versionNames[resp.Version]
	if !ok {
		return nil, fmt.Errorf("response version %d has no wire name", resp.Version)
	}
	reason := ReasonPhrase(resp.Status)
	if reason == "" {
		return nil, fmt.Errorf("status %d has no reason phrase", resp.Status)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s %d %s\r\n", version, resp.Status, reason)
	for _, hdr := range resp.Headers {
		fmt.Fprintf(&buf, "%s: %s\r\n", hdr.Key, hdr.Value)
	}
	buf.WriteString("\r\n")

	if req.Method != MethodHead && !(resp.Status >= 400 && resp.Status <= 511) {
		buf.Write(resp.Body)
	}

	return buf.Bytes(), nil
}

// RequestDestroy releases a request's buffers.
func (p *Processor) RequestDestroy(req *Request) error {
	if req == nil {
		return ErrInvalidArgument
	}
	*req = Request{}
	return nil
}

// ResponseDestroy releases a response's buffers.
func (p *Processor) ResponseDestroy(resp *Response) error {
	if resp == nil {
		return ErrInvalidArgument
	}
	*resp = Response{}
	return nil
}

// responseInit resets resp to a bare response carrying only a status.
func responseInit(resp *Response, status Status) {
	*resp = Response{Status: status}
}

// setContentLength rewrites the Content-Length header from the current
// body.
func setContentLength(resp *Response) {
	resp.Headers.Set("Content-Length", strconv.Itoa(len(resp.Body)))
}

// ValidateURI walks the slash-separated segments keeping a running count
// that ".." decrements and every other segment increments. The path is
// rejected as soon as the count goes negative, so "/a/../b" passes while
// "/../x" does not. The check is structural; it never consults the
// filesystem.
func ValidateURI(uri string) bool {
	net := 0
	for _, segment := range strings.Split(uri, "/") {
		if segment == "" {
			continue
		}
		if segment == ".." {
			net--
		} else {
			net++
		}
		if net < 0 {
			return false
		}
	}
	return true
}

// MimeType maps a file extension to the Content-Type this server emits.
// Unknown extensions fall back to application/octet-stream.
func MimeType(filepath string) string {
	dot := strings.LastIndexByte(filepath, '.')
	if dot < 0 {
		return "application/octet-stream"
	}
	switch strings.ToLower(filepath[dot+1:]) {
	case "txt":
		return "text/plain"
	case "html":
		return "text/html"
	case "js":
		return "application/javascript"
	case "json":
		return "application/json"
	case "css":
		return "text/css"
	case "png":
		return "image/png"
	case "jpeg", "jpg":
		return "image/jpeg"
	case "gif":
		return "image/gif"
	case "swf":
		return "application/x-shockwave-flash"
	}
	return "application/octet-stream"
}
