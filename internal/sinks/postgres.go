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
	"database/sql"
	"fmt"
	"strings"
	"time"

	"bulkserver/internal/metrics"
	"bulkserver/internal/sinkpool"
	"bulkserver/pkg/bulk"
)

// Postgres schema (reference):
//
// CREATE TABLE IF NOT EXISTS bulks (
//   timestamp_micros BIGINT NOT NULL,
//   counter           INTEGER NOT NULL,
//   commands          TEXT NOT NULL,
//   PRIMARY KEY (timestamp_micros, counter)
// );
//
// One row per bulk, written inside a single-statement transaction so a
// bulk is never partially visible to a reader.

// Postgres mirrors every bulk into a bulks table via a caller-supplied
// *sql.DB. It does not open its own connection from a DSN: enabling it
// without a real database and schema already prepared is not meaningful,
// so construction requires a live *sql.DB rather than a connection
// string.
type Postgres struct {
	db      *sql.DB
	counter uint32Counter
	pool    WorkerPool
}

// NewPostgres wires a Postgres sink against db with workerCount
// background workers.
func NewPostgres(db *sql.DB, workerCount int) *Postgres {
	pool := sinkpool.New(1024)
	pool.OnError(func(err error) { metrics.RecordError("postgres") })
	p := &Postgres{db: db, pool: pool}
	if workerCount <= 0 {
		workerCount = 1
	}
	for i := 0; i < workerCount; i++ {
		p.pool.AddWorker()
	}
	return p
}

// Output enqueues a task that inserts one row for b.
func (p *Postgres) Output(b bulk.Bulk) {
	counter := p.counter.next()
	p.pool.AddTask(func() (commands, blocks uint64, err error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		tx, txErr := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
		if txErr != nil {
			return 0, 0, fmt.Errorf("sinks: postgres begin: %w", txErr)
		}
		defer func() { _ = tx.Rollback() }()

		formatted := strings.Join(b.Commands, ", ")
		if _, execErr := tx.ExecContext(ctx,
			`INSERT INTO bulks(timestamp_micros, counter, commands) VALUES ($1, $2, $3)
			   ON CONFLICT DO NOTHING`,
			b.TimestampMicros, counter, formatted); execErr != nil {
			return 0, 0, fmt.Errorf("sinks: postgres insert: %w", execErr)
		}
		if commitErr := tx.Commit(); commitErr != nil {
			return 0, 0, fmt.Errorf("sinks: postgres commit: %w", commitErr)
		}
		metrics.RecordFlush("postgres", uint64(len(b.Commands)))
		return uint64(len(b.Commands)), 1, nil
	})
}

// Stats returns the current per-worker statistics.
func (p *Postgres) Stats() map[int]sinkpool.Stats { return p.pool.Snapshot() }

// Stop drains the task queue, joins every worker, and returns their final
// stats.
func (p *Postgres) Stop() map[int]sinkpool.Stats { return p.pool.StopWorkers() }
