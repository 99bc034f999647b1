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
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"bulkserver/internal/metrics"
	"bulkserver/internal/sinkpool"
	"bulkserver/pkg/bulk"
)

// File writes each bulk to its own file named bulk<timestampMicros>_<counter>.log.
// The counter is a process-wide atomic sequence, widened to 32 bits here
// (the original C++ implementation used a 16-bit counter that wraps on
// long-running processes; this is the fix for that known limitation, not
// a faithful reproduction of it).
type File struct {
	dir     string
	counter atomic.Uint32
	pool    WorkerPool

	mu        sync.Mutex
	filenames []string

	// maxCommands, when non-zero, makes the pool worker raise a fatal
	// error after it has processed this many commands in total, a
	// diagnostic facility requested on the command line via
	// max_cmds_in_files, not a normal operating mode.
	maxCommands  uint64
	seenCommands atomic.Uint64
}

// NewFile wires a File sink rooted at dir (use "" for the working
// directory) with workerCount background workers. maxCommands enables the
// diagnostic fatal-after-N-commands facility when non-zero.
func NewFile(dir string, workerCount int, maxCommands uint64) *File {
	pool := sinkpool.New(1024)
	pool.OnError(func(err error) { metrics.RecordError("file") })
	f := &File{dir: dir, pool: pool, maxCommands: maxCommands}
	if workerCount <= 0 {
		workerCount = 1
	}
	for i := 0; i < workerCount; i++ {
		f.pool.AddWorker()
	}
	return f
}

// filename returns the name (not the full path) a bulk with the given
// timestamp and counter value is written to.
func filename(timestampMicros int64, counter uint32) string {
	return fmt.Sprintf("bulk%d_%d.log", timestampMicros, counter)
}

// Output claims a unique counter value and enqueues a task that writes b
// to its own file.
func (f *File) Output(b bulk.Bulk) {
	counter := f.counter.Add(1) - 1
	name := filename(b.TimestampMicros, counter)

	f.pool.AddTask(func() (commands, blocks uint64, err error) {
		if f.maxCommands > 0 {
			total := f.seenCommands.Add(uint64(len(b.Commands)))
			if total > f.maxCommands {
				return 0, 0, fmt.Errorf("sinks: file worker exceeded diagnostic max_cmds_in_files=%d (at %d)", f.maxCommands, total)
			}
		}

		path := name
		if f.dir != "" {
			path = filepath.Join(f.dir, name)
		}
		fh, openErr := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
		if openErr != nil {
			return 0, 0, fmt.Errorf("sinks: open %s: %w", path, openErr)
		}
		_, writeErr := fh.WriteString(bulk.Format(b.Commands))
		closeErr := fh.Close()
		if writeErr != nil {
			return 0, 0, fmt.Errorf("sinks: write %s: %w", path, writeErr)
		}
		if closeErr != nil {
			return 0, 0, fmt.Errorf("sinks: close %s: %w", path, closeErr)
		}

		f.mu.Lock()
		f.filenames = append(f.filenames, name)
		f.mu.Unlock()
		metrics.RecordFlush("file", uint64(len(b.Commands)))
		return uint64(len(b.Commands)), 1, nil
	})
}

// Filenames returns every filename successfully written so far, in the
// order their writes completed (with more than one worker, not
// necessarily enqueue order).
func (f *File) Filenames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.filenames))
	copy(out, f.filenames)
	return out
}

// Stats returns the current per-worker statistics.
func (f *File) Stats() map[int]sinkpool.Stats {
	return f.pool.Snapshot()
}

// Stop drains the task queue, joins every worker, and returns their final
// stats.
func (f *File) Stop() map[int]sinkpool.Stats {
	return f.pool.StopWorkers()
}
