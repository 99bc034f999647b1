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

// Package framing turns a raw byte stream into line events against a
// bracket-aware state machine, and routes the resulting commands to either
// a fixed-size global storage or a per-connection dynamic block storage.
package framing

import "bytes"

// Observer receives the events a Processor emits while draining a byte
// stream: a regular command line, the outermost open/close of a `{ ... }`
// block, and an end-of-stream flush request. Router implements this.
type Observer interface {
	Push(command string)
	BlockStart()
	BlockEnd()
	Flush()
}

// Processor is a per-connection lexer. It is driven synchronously from the
// connection's own read loop; it holds no lock because nothing else ever
// touches one instance concurrently.
type Processor struct {
	residue        []byte
	openBraces     uint64
	processedLines uint64
	observer       Observer
}

// NewProcessor returns a Processor that forwards events to observer.
func NewProcessor(observer Observer) *Processor {
	return &Processor{observer: observer}
}

// ProcessedLines reports how many non-bracket command lines have been
// pushed so far.
func (p *Processor) ProcessedLines() uint64 {
	return p.processedLines
}

// Process appends data to any carried-over residue and extracts every
// complete line it can find, in order. A "line" here never includes the
// delimiting '\n'. Pass isFinal true on the chunk that ends the stream
// (EOF or disconnect): after draining, the observer then receives a Flush
// event, unless a block is still open. What Flush does is up to the
// observer; Router ignores it.
func (p *Processor) Process(data []byte, isFinal bool) {
	p.residue = append(p.residue, data...)

	for {
		idx := bytes.IndexByte(p.residue, '\n')
		if idx < 0 {
			break
		}
		line := string(p.residue[:idx])
		p.residue = p.residue[idx+1:]
		p.consumeLine(line)
	}

	if isFinal && p.openBraces == 0 {
		p.observer.Flush()
	}
}

func (p *Processor) consumeLine(line string) {
	switch line {
	case "{":
		if p.openBraces == 0 {
			p.observer.BlockStart()
		}
		p.openBraces++
	case "}":
		if p.openBraces == 0 {
			// Stray closer: still closes the implicit state, per the
			// framing invariants. BlockEnd flushes whatever the block
			// storage currently holds (usually nothing) and clears the
			// router's open-block flag.
			p.observer.BlockEnd()
			return
		}
		p.openBraces--
		if p.openBraces == 0 {
			p.observer.BlockEnd()
		}
	default:
		p.processedLines++
		p.observer.Push(line)
	}
}
