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

// Package sinks implements the consumers a storage.Storage flushes
// completed bulks to: console, file, and a set of optional durable
// mirrors (Redis, Postgres, Kafka) that share the same Sink contract.
package sinks

import (
	"bulkserver/internal/sinkpool"
	"bulkserver/pkg/bulk"
)

// Sink is the single operation a storage.Storage needs from an output:
// accept a completed bulk. Implementations know nothing about storages,
// there are no back pointers, so the dependency only ever runs one way.
type Sink interface {
	Output(b bulk.Bulk)
}

// WorkerPool is the subset of sinkpool.Pool every sink built in this
// package depends on, so tests can substitute a fake without pulling in
// goroutines.
type WorkerPool interface {
	AddWorker() int
	AddTask(sinkpool.Task)
	StopWorkers() map[int]sinkpool.Stats
	Snapshot() map[int]sinkpool.Stats
}
