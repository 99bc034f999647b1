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

// Package e2e drives a real session.Server over a loopback TCP listener
// and asserts on what the console sink observes, exercising the framing
// and storage rules end to end rather than unit by unit.
package e2e

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"bulkserver/internal/session"
	"bulkserver/internal/sinks"
	"bulkserver/internal/storage"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func startServer(t *testing.T, blockSize int) (*session.Server, *syncBuffer) {
	t.Helper()
	global := storage.NewGlobal(blockSize)
	out := &syncBuffer{}
	console := sinks.NewConsole(out, 1)
	global.Subscribe(console)

	srv := session.NewServer(global, []storage.Sink{console}, nil, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ln)
	}()

	t.Cleanup(func() {
		_ = srv.Close()
		<-done
		console.Stop()
	})

	// Serve's accept loop starts asynchronously; wait until it has taken
	// ownership of the listener, so srv.Addr() is set before handing the
	// server back.
	for i := 0; i < 100 && srv.Addr() == nil; i++ {
		time.Sleep(time.Millisecond)
	}
	return srv, out
}

func waitForLines(t *testing.T, out *syncBuffer, want int) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got := out.String()
		if strings.Count(got, "\n") >= want {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d lines, got: %q", want, out.String())
	return ""
}

func dialAndSend(t *testing.T, addr string, lines []string) {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	w := bufio.NewWriter(conn)
	for _, l := range lines {
		if _, err := w.WriteString(l + "\n"); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
}

// A plain run of five commands against
// bulk_size=3 produces one full bulk and one undersized tail once the
// single connection closes.
func TestE2E_PlainRunSplitsIntoFixedSizeBulks(t *testing.T) {
	srv, out := startServer(t, 3)
	dialAndSend(t, srv.Addr().String(), []string{"cmd1", "cmd2", "cmd3", "cmd4", "cmd5"})

	got := waitForLines(t, out, 2)
	want := "bulk: cmd1, cmd2, cmd3\nbulk: cmd4, cmd5\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// Scenario 2: a single dynamic block interrupts the fixed-size stream.
func TestE2E_DynamicBlockInterruptsFixedStream(t *testing.T) {
	srv, out := startServer(t, 3)
	dialAndSend(t, srv.Addr().String(), []string{"cmd1", "{", "cmd2", "cmd3", "cmd4", "cmd5", "}", "cmd6"})

	got := waitForLines(t, out, 3)
	want := "bulk: cmd1\nbulk: cmd2, cmd3, cmd4, cmd5\nbulk: cmd6\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// Scenario 3: nested braces only split on the outermost pair.
func TestE2E_NestedBracesOnlyOutermostSplits(t *testing.T) {
	srv, out := startServer(t, 3)
	dialAndSend(t, srv.Addr().String(), []string{"{", "{", "cmd1", "cmd2", "}", "cmd3", "}"})

	got := waitForLines(t, out, 1)
	want := "bulk: cmd1, cmd2, cmd3\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// Scenario 4: an unmatched opening brace discards the dynamic content
// accumulated inside it when the connection closes.
func TestE2E_UnmatchedOpenBraceDiscardsContent(t *testing.T) {
	srv, out := startServer(t, 3)
	dialAndSend(t, srv.Addr().String(), []string{"cmd1", "{", "cmd2", "cmd3"})

	got := waitForLines(t, out, 1)
	want := "bulk: cmd1\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	// Give any spurious second flush a moment to show up before asserting
	// it never does.
	time.Sleep(50 * time.Millisecond)
	if got := out.String(); got != want {
		t.Fatalf("unexpected extra output: got %q, want %q", got, want)
	}
}

// Scenario 5: three concurrent connections interleaving one line at a
// time share the same global fixed-size storage.
func TestE2E_ThreeConnectionsInterleaveIntoGlobalStorage(t *testing.T) {
	srv, out := startServer(t, 3)
	addr := srv.Addr().String()

	c1, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial c1: %v", err)
	}
	defer c1.Close()
	c2, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial c2: %v", err)
	}
	defer c2.Close()
	c3, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("dial c3: %v", err)
	}
	defer c3.Close()

	send := func(conn net.Conn, line string) {
		if _, err := conn.Write([]byte(line + "\n")); err != nil {
			t.Fatalf("write %q: %v", line, err)
		}
	}

	round := []struct {
		conn net.Conn
		line string
	}{
		{c1, "cmd01"}, {c2, "cmd11"}, {c3, "cmd21"},
		{c1, "cmd02"}, {c2, "cmd12"}, {c3, "cmd22"},
		{c1, "cmd03"},
	}
	for _, r := range round {
		send(r.conn, r.line)
		time.Sleep(2 * time.Millisecond)
	}

	got := waitForLines(t, out, 2)
	want := "bulk: cmd01, cmd11, cmd21\nbulk: cmd02, cmd12, cmd22\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}

	c1.Close()
	c2.Close()
	got = waitForLines(t, out, 2)
	if got != want {
		t.Fatalf("closing non-last connections must not flush: got %q, want %q", got, want)
	}

	c3.Close()
	got = waitForLines(t, out, 3)
	want += "bulk: cmd03\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

// Round-trip property: splitting the same input at
// arbitrary byte boundaries must not change the emitted bulks.
func TestE2E_ByteAtATimeProducesSameBulksAsWholeLines(t *testing.T) {
	srv, out := startServer(t, 3)
	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	payload := "cmd1\n{\ncmd2\ncmd3\n}\ncmd4\n"
	for i := 0; i < len(payload); i++ {
		if _, err := conn.Write([]byte{payload[i]}); err != nil {
			t.Fatalf("write byte %d: %v", i, err)
		}
	}

	got := waitForLines(t, out, 2)
	want := "bulk: cmd1\nbulk: cmd2, cmd3, cmd4\n"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
