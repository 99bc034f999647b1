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

// bulkreplay reads back the bulk<timestampMicros>_<counter>.log files
// written by the file sink and prints their contents in counter order, so
// an operator can reconstruct what a run wrote without grepping the
// directory by hand.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var filenamePattern = regexp.MustCompile(`^bulk(\d+)_(\d+)\.log$`)

type logFile struct {
	path            string
	timestampMicros int64
	counter         uint64
}

func main() {
	dir := flag.String("dir", ".", "directory containing bulk<timestamp>_<counter>.log files")
	quiet := flag.Bool("quiet", false, "suppress the per-file timestamp/counter header")
	flag.Parse()

	files, err := discover(*dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	for _, f := range files {
		commands, err := readCommands(f.path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "bulkreplay: %v\n", err)
			continue
		}
		if !*quiet {
			fmt.Printf("# %s timestamp_micros=%d counter=%d\n", filepath.Base(f.path), f.timestampMicros, f.counter)
		}
		for _, c := range commands {
			fmt.Println(c)
		}
	}
}

// discover finds every bulk log file under dir and returns them ordered by
// counter, which is assigned in flush order regardless of which worker's
// goroutine happened to finish the write first.
func discover(dir string) ([]logFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("bulkreplay: read %s: %w", dir, err)
	}

	var files []logFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := filenamePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		ts, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			continue
		}
		counter, err := strconv.ParseUint(m[2], 10, 64)
		if err != nil {
			continue
		}
		files = append(files, logFile{path: filepath.Join(dir, e.Name()), timestampMicros: ts, counter: counter})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].counter < files[j].counter })
	return files, nil
}

// readCommands parses a single "bulk: cmd1, cmd2, ..., cmdN" line back
// into its individual commands. Only the first line is read, and whether
// it ends in a newline is not checked: a file cut short by an interrupted
// write is parsed as far as it goes.
func readCommands(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		return nil, nil
	}
	line := scanner.Text()
	rest, ok := strings.CutPrefix(line, "bulk: ")
	if !ok {
		return nil, fmt.Errorf("%s: unrecognized line format %q", path, line)
	}
	if rest == "" {
		return nil, nil
	}
	return strings.Split(rest, ", "), nil
}
