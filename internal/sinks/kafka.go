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
	"time"

	"bulkserver/internal/metrics"
	"bulkserver/internal/sinkpool"
	"bulkserver/pkg/bulk"
)

// Producer is a minimal abstraction over a Kafka client. No concrete
// Kafka client library appears anywhere in this project's example corpus,
// so the producer stays an injectable interface rather than importing one.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error
}

// LoggingProducer is a dependency-free stand-in that logs what it would
// have sent. It is the default Producer when no real one is wired, so the
// Kafka sink can be exercised without a broker.
type LoggingProducer struct {
	Log func(format string, args ...interface{})
}

func (p LoggingProducer) Produce(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	log := p.Log
	if log == nil {
		log = func(string, ...interface{}) {}
	}
	log("[kafka-demo] topic=%s key=%s value=%s headers=%v", topic, key, value, headers)
	return nil
}

type kafkaMessage struct {
	TimestampMicros int64    `json:"timestamp_micros"`
	Counter         uint32   `json:"counter"`
	Commands        []string `json:"commands"`
}

// Kafka publishes one message per bulk to topic, keyed by
// "bulk<timestamp>_<counter>" so ordered delivery per bulk is preserved
// even without producer idempotence configured.
type Kafka struct {
	producer Producer
	topic    string
	counter  uint32Counter
	pool     WorkerPool
}

// NewKafka wires a Kafka sink against producer and topic with
// workerCount background workers.
func NewKafka(producer Producer, topic string, workerCount int) *Kafka {
	pool := sinkpool.New(1024)
	pool.OnError(func(err error) { metrics.RecordError("kafka") })
	k := &Kafka{producer: producer, topic: topic, pool: pool}
	if workerCount <= 0 {
		workerCount = 1
	}
	for i := 0; i < workerCount; i++ {
		k.pool.AddWorker()
	}
	return k
}

// Output enqueues a task that publishes b.
func (k *Kafka) Output(b bulk.Bulk) {
	counter := k.counter.next()
	k.pool.AddTask(func() (commands, blocks uint64, err error) {
		msg := kafkaMessage{TimestampMicros: b.TimestampMicros, Counter: counter, Commands: b.Commands}
		payload, marshalErr := json.Marshal(msg)
		if marshalErr != nil {
			return 0, 0, fmt.Errorf("sinks: marshal kafka message: %w", marshalErr)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		key := fmt.Sprintf("bulk%d_%d", b.TimestampMicros, counter)
		headers := map[string]string{"content-type": "application/json"}
		if produceErr := k.producer.Produce(ctx, k.topic, []byte(key), payload, headers); produceErr != nil {
			return 0, 0, fmt.Errorf("sinks: kafka produce: %w", produceErr)
		}
		metrics.RecordFlush("kafka", uint64(len(b.Commands)))
		return uint64(len(b.Commands)), 1, nil
	})
}

// Stats returns the current per-worker statistics.
func (k *Kafka) Stats() map[int]sinkpool.Stats { return k.pool.Snapshot() }

// Stop drains the task queue, joins every worker, and returns their final
// stats.
func (k *Kafka) Stop() map[int]sinkpool.Stats { return k.pool.StopWorkers() }
