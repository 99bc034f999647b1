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

package metrics

import (
	"bytes"
	"log"
	"strings"
	"testing"
	"time"

	"bulkserver/internal/sinkpool"
)

type fakeStatsSource struct {
	stats map[int]sinkpool.Stats
}

func (f fakeStatsSource) Stats() map[int]sinkpool.Stats { return f.stats }

func TestStatsLogger_ZeroIntervalIsANoop(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	l := NewStatsLogger(logger, 0, func() int { return 0 }, nil)
	l.Start()
	l.Stop()
	if buf.Len() != 0 {
		t.Fatalf("expected no output, got %q", buf.String())
	}
}

func TestStatsLogger_LogsEverySink(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	sinks := map[string]StatsSource{
		"console": fakeStatsSource{stats: map[int]sinkpool.Stats{0: {Commands: 5, Blocks: 2}}},
		"file":    fakeStatsSource{stats: map[int]sinkpool.Stats{0: {Commands: 3, Blocks: 1}}},
	}
	l := NewStatsLogger(logger, 5*time.Millisecond, func() int { return 2 }, sinks)
	l.Start()
	time.Sleep(30 * time.Millisecond)
	l.Stop()

	out := buf.String()
	if !strings.Contains(out, "sink=console commands=5 blocks=2 connections=2") {
		t.Fatalf("missing console line: %q", out)
	}
	if !strings.Contains(out, "sink=file commands=3 blocks=1 connections=2") {
		t.Fatalf("missing file line: %q", out)
	}
}
