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
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	redis "github.com/redis/go-redis/v9"

	"bulkserver/internal/metrics"
	"bulkserver/internal/sinkpool"
	"bulkserver/pkg/bulk"
)

// Evaler abstracts the minimal Redis surface this sink needs (EVAL), so a
// test can substitute a logging stand-in without a real server.
type Evaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
}

// GoRedisEvaler wraps github.com/redis/go-redis/v9 as an Evaler.
type GoRedisEvaler struct{ client *redis.Client }

// NewGoRedisEvaler connects to addr (e.g. "127.0.0.1:6379").
func NewGoRedisEvaler(addr string) *GoRedisEvaler {
	return &GoRedisEvaler{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (g *GoRedisEvaler) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	return g.client.Eval(ctx, script, keys, args...).Result()
}

// redisAppendScript atomically appends the bulk's JSON encoding to a
// Redis list and records an idempotency marker for its (timestamp,
// counter) pair. Should this pool ever grow a retry path, which it does
// not today, a retried apply of the same bulk becomes a no-op rather
// than a duplicate list entry.
const redisAppendScript = `
local listKey = KEYS[1]
local markerKey = KEYS[2]
local payload = ARGV[1]
local set = redis.call('SETNX', markerKey, 1)
if set == 1 then
  redis.call('RPUSH', listKey, payload)
  redis.call('EXPIRE', markerKey, 86400)
  return 1
else
  return 0
end
`

type redisRecord struct {
	TimestampMicros int64    `json:"timestamp_micros"`
	Counter         uint32   `json:"counter"`
	Commands        []string `json:"commands"`
}

// Redis mirrors every bulk it receives into a Redis list under listKey.
type Redis struct {
	client  Evaler
	listKey string
	counter uint32Counter
	pool    WorkerPool
}

// uint32Counter is shared by every sink that needs a process-wide bulk
// counter (Redis, Postgres, Kafka). Output runs on whichever connection
// goroutine is flushing at the time, so concurrent calls are expected and
// the increment must be atomic, not merely monotonic.
type uint32Counter struct{ n atomic.Uint32 }

func (c *uint32Counter) next() uint32 {
	return c.n.Add(1) - 1
}

// NewRedis wires a Redis sink against client, writing to listKey, with
// workerCount background workers.
func NewRedis(client Evaler, listKey string, workerCount int) *Redis {
	pool := sinkpool.New(1024)
	pool.OnError(func(err error) { metrics.RecordError("redis") })
	r := &Redis{client: client, listKey: listKey, pool: pool}
	if workerCount <= 0 {
		workerCount = 1
	}
	for i := 0; i < workerCount; i++ {
		r.pool.AddWorker()
	}
	return r
}

// Output enqueues a task that appends b to the configured Redis list.
func (r *Redis) Output(b bulk.Bulk) {
	counter := r.counter.next()
	r.pool.AddTask(func() (commands, blocks uint64, err error) {
		payload, marshalErr := json.Marshal(redisRecord{
			TimestampMicros: b.TimestampMicros,
			Counter:         counter,
			Commands:        b.Commands,
		})
		if marshalErr != nil {
			return 0, 0, fmt.Errorf("sinks: marshal redis record: %w", marshalErr)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		markerKey := fmt.Sprintf("bulkserver:marker:%d:%d", b.TimestampMicros, counter)
		if _, err := r.client.Eval(ctx, redisAppendScript, []string{r.listKey, markerKey}, string(payload)); err != nil {
			return 0, 0, fmt.Errorf("sinks: redis eval: %w", err)
		}
		metrics.RecordFlush("redis", uint64(len(b.Commands)))
		return uint64(len(b.Commands)), 1, nil
	})
}

// Stats returns the current per-worker statistics.
func (r *Redis) Stats() map[int]sinkpool.Stats { return r.pool.Snapshot() }

// Stop drains the task queue, joins every worker, and returns their final
// stats.
func (r *Redis) Stop() map[int]sinkpool.Stats { return r.pool.StopWorkers() }
