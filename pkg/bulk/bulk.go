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

// Package bulk defines the wire-level unit the rest of the server operates
// on: an ordered group of commands flushed atomically to every subscribed
// sink.
package bulk

import "strings"

// Bulk is an immutable, ordered group of commands captured between two
// flush points. TimestampMicros is the time the first command of the group
// was pushed, in microseconds since the Unix epoch. Once handed to a sink,
// a Bulk is never mutated, it may be read concurrently by every worker
// that processes it.
type Bulk struct {
	TimestampMicros int64
	Commands        []string
}

// Format renders a bulk the way every sink in this package writes it:
// "bulk: <cmd1>, <cmd2>, ..., <cmdN>\n".
func Format(commands []string) string {
	var b strings.Builder
	b.WriteString("bulk: ")
	b.WriteString(strings.Join(commands, ", "))
	b.WriteByte('\n')
	return b.String()
}
