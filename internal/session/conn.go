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

// Package session drives one TCP connection end to end: it reads lines,
// feeds them through a framing.Processor and framing.Router, and applies
// the last-connection-flush rule against the server-wide session set.
package session

import (
	"bufio"
	"log"
	"net"

	"bulkserver/internal/framing"
	"bulkserver/internal/storage"
)

// Conn owns one accepted connection's lifetime: its own block storage, its
// own framing state, and its membership in the shared session set.
type Conn struct {
	netConn net.Conn
	set     *Set
	global  *storage.Storage

	block     *storage.Storage
	router    *framing.Router
	processor *framing.Processor

	logger *log.Logger
}

// newConn wires a Conn for an accepted net.Conn. The returned Conn is not
// yet tracked by set or started; call serve to do both. block is
// subscribed to the same sinks as global so a dynamic block's bulk
// reaches every sink the global stream does, not just its stats counters.
func newConn(netConn net.Conn, set *Set, global *storage.Storage, sinks []storage.Sink, logger *log.Logger) *Conn {
	block := storage.NewBlock()
	for _, sink := range sinks {
		block.Subscribe(sink)
	}
	c := &Conn{netConn: netConn, set: set, global: global, block: block, logger: logger}
	c.router = framing.NewRouter(global, block)
	c.processor = framing.NewProcessor(c.router)
	return c
}

// serve reads lines from the connection until it closes or errors, then
// unregisters itself from set and, if it was the last connection,
// flushes the global storage, matching the behavior of the original
// single-process server, where shutting down the last client session was
// the only implicit flush trigger.
func (c *Conn) serve() {
	defer c.teardown()

	reader := bufio.NewReader(c.netConn)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			c.processor.Process([]byte(line), false)
		}
		if err != nil {
			return
		}
	}
}

func (c *Conn) teardown() {
	c.processor.Process(nil, true)
	_ = c.netConn.Close()
	remaining := c.set.remove(c)
	if remaining == 0 {
		c.global.Flush()
	}
}

// RemoteAddr returns the connection's remote address, for logging.
func (c *Conn) RemoteAddr() net.Addr {
	return c.netConn.RemoteAddr()
}
