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
	"io"
	"sync"

	"bulkserver/internal/metrics"
	"bulkserver/internal/sinkpool"
	"bulkserver/pkg/bulk"
)

// Console writes each bulk to a shared io.Writer under a mutex, so a
// complete bulk is always atomic relative to every other bulk written to
// the same stream, even with multiple workers in its pool.
type Console struct {
	mu   sync.Mutex
	out  io.Writer
	pool WorkerPool
}

// NewConsole wires a Console sink to out (normally os.Stdout) with
// workerCount background workers. Call Stop to drain and join them.
func NewConsole(out io.Writer, workerCount int) *Console {
	pool := sinkpool.New(1024)
	pool.OnError(func(err error) { metrics.RecordError("console") })
	c := &Console{out: out, pool: pool}
	if workerCount <= 0 {
		workerCount = 1
	}
	for i := 0; i < workerCount; i++ {
		c.pool.AddWorker()
	}
	return c
}

// Output enqueues a task that formats and writes b, then credits the
// executing worker's own stats entry.
func (c *Console) Output(b bulk.Bulk) {
	c.pool.AddTask(func() (commands, blocks uint64, err error) {
		line := bulk.Format(b.Commands)
		c.mu.Lock()
		_, err = io.WriteString(c.out, line)
		c.mu.Unlock()
		if err != nil {
			return 0, 0, err
		}
		metrics.RecordFlush("console", uint64(len(b.Commands)))
		return uint64(len(b.Commands)), 1, nil
	})
}

// Stats returns the current per-worker statistics.
func (c *Console) Stats() map[int]sinkpool.Stats {
	return c.pool.Snapshot()
}

// Stop drains the task queue, joins every worker, and returns their final
// stats.
func (c *Console) Stop() map[int]sinkpool.Stats {
	return c.pool.StopWorkers()
}
