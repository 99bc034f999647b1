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
	"database/sql"
	"errors"
	"fmt"

	"bulkserver/internal/sinkpool"
)

// DurableSink is the surface an optional sink exposes beyond Output: its
// own worker statistics and a clean Stop. Console and File satisfy it too,
// but callers only need it for the sinks selected by name at startup.
type DurableSink interface {
	Sink
	Stats() map[int]sinkpool.Stats
	Stop() map[int]sinkpool.Stats
}

// Options carries the optional durable-sink configuration accepted on the
// command line. Zero values disable the corresponding sink.
type Options struct {
	RedisAddr    string
	RedisListKey string
	KafkaAddr    string
	KafkaTopic   string
	Postgres     *sql.DB
	WorkerCount  int
}

// BuildDurable constructs the optional sinks named in enabled ("redis",
// "kafka", "postgres"), using opts for their configuration. It never
// constructs the console or file sinks: those are always on and wired
// directly by the caller, not selected by name.
//
// A requested "postgres" sink without a live opts.Postgres connection is
// an error rather than a silently skipped sink, since starting a
// Postgres-backed server that never wrote rows would be confusing to
// operators who believe it is running.
func BuildDurable(enabled []string, opts Options) ([]DurableSink, error) {
	var out []DurableSink
	for _, name := range enabled {
		switch name {
		case "redis":
			listKey := opts.RedisListKey
			if listKey == "" {
				listKey = "bulkserver:bulks"
			}
			var client Evaler
			if opts.RedisAddr != "" {
				client = NewGoRedisEvaler(opts.RedisAddr)
			} else {
				return nil, errors.New("sinks: redis adapter requested but -redis-addr was not set")
			}
			out = append(out, NewRedis(client, listKey, opts.WorkerCount))
		case "kafka":
			topic := opts.KafkaTopic
			if topic == "" {
				topic = "bulkserver-bulks"
			}
			producer := Producer(LoggingProducer{})
			out = append(out, NewKafka(producer, topic, opts.WorkerCount))
		case "postgres":
			if opts.Postgres == nil {
				return nil, errors.New("sinks: postgres adapter requested but no *sql.DB was supplied")
			}
			out = append(out, NewPostgres(opts.Postgres, opts.WorkerCount))
		default:
			return nil, fmt.Errorf("sinks: unknown durable sink %q", name)
		}
	}
	return out, nil
}
