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

package sinks

import (
	"context"
	"errors"
	"sync"
	"testing"

	"bulkserver/pkg/bulk"
)

type fakeEvaler struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, keys[0])
	return int64(1), nil
}

func (f *fakeEvaler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func TestRedis_AppendsOnePerBulk(t *testing.T) {
	fake := &fakeEvaler{}
	r := NewRedis(fake, "bulkserver:bulks", 2)

	r.Output(bulk.Bulk{TimestampMicros: 1, Commands: []string{"cmd1"}})
	r.Output(bulk.Bulk{TimestampMicros: 2, Commands: []string{"cmd2", "cmd3"}})
	stats := r.Stop()

	if fake.callCount() != 2 {
		t.Fatalf("Eval called %d times, want 2", fake.callCount())
	}

	var totalCommands uint64
	for _, st := range stats {
		totalCommands += st.Commands
	}
	if totalCommands != 3 {
		t.Fatalf("totalCommands = %d, want 3", totalCommands)
	}
}

func TestRedis_EvalFailureCreditsNothing(t *testing.T) {
	fake := &fakeEvaler{err: errors.New("connection refused")}
	r := NewRedis(fake, "bulkserver:bulks", 1)
	r.Output(bulk.Bulk{Commands: []string{"cmd1"}})
	stats := r.Stop()

	var totalCommands uint64
	for _, st := range stats {
		totalCommands += st.Commands
	}
	if totalCommands != 0 {
		t.Fatalf("totalCommands = %d, want 0 on eval failure", totalCommands)
	}
}

func TestUint32Counter_ConcurrentNextNeverRepeats(t *testing.T) {
	var c uint32Counter
	const goroutines = 20
	const perGoroutine = 200

	seen := make(chan uint32, goroutines*perGoroutine)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				seen <- c.next()
			}
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[uint32]struct{}, goroutines*perGoroutine)
	for v := range seen {
		if _, dup := unique[v]; dup {
			t.Fatalf("counter value %d produced more than once", v)
		}
		unique[v] = struct{}{}
	}
	if len(unique) != goroutines*perGoroutine {
		t.Fatalf("got %d unique values, want %d", len(unique), goroutines*perGoroutine)
	}
}
