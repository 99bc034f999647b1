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

package session

import "sync"

// Set tracks every currently-active Conn so the server can close them on
// shutdown and so the last connection to drop can flush the global
// storage.
type Set struct {
	mu    sync.Mutex
	conns map[*Conn]struct{}
}

func newSet() *Set {
	return &Set{conns: make(map[*Conn]struct{})}
}

func (s *Set) add(c *Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[c] = struct{}{}
}

// remove deletes c from the set and returns the number of connections
// still active afterward.
func (s *Set) remove(c *Conn) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, c)
	return len(s.conns)
}

// closeAll closes every tracked connection's underlying socket. Each
// Conn's own serve loop notices the resulting read error and tears itself
// down normally.
func (s *Set) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.netConn.Close()
	}
}

// Len reports how many connections are currently active.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}
