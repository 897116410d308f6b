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

package httpd

// The processing module exports exactly six entry points under fixed
// symbol names. The loader resolves all six or binds none.
const (
	SymbolRequestInit     = "request_init"
	SymbolRequestParse    = "request_parse"
	SymbolRequestProcess  = "request_process"
	SymbolResponseWrite   = "response_write"
	SymbolRequestDestroy  = "request_destroy"
	SymbolResponseDestroy = "response_destroy"
)

// Symbols returns the processor's entry points keyed by their artifact
// symbol names, in the shape the loader's registry consumes.
func (p *Processor) Symbols() map[string]any {
	return map[string]any{
		SymbolRequestInit:     p.RequestInit,
		SymbolRequestParse:    p.RequestParse,
		SymbolRequestProcess:  p.RequestProcess,
		SymbolResponseWrite:   p.ResponseWrite,
		SymbolRequestDestroy:  p.RequestDestroy,
		SymbolResponseDestroy: p.ResponseDestroy,
	}
}
