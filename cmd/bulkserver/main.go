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

package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"bulkserver/internal/metrics"
	"bulkserver/internal/sinks"
	"bulkserver/internal/session"
	"bulkserver/internal/storage"
)

const usage = "The program must be started with 2 or 3 parameters. First parameter is " +
	"port number, which value must be in range 0 - 65535. Second parameter is " +
	"block size, which value must be in range 1 - 18446744073709551615. Third, " +
	"optional, parameter is the diagnostic max_cmds_in_files threshold."

func main() {
	metricsAddr := flag.String("metrics-addr", "", "admin HTTP surface address (e.g. :9100); empty disables it")
	statsInterval := flag.Duration("stats-interval", 30*time.Second, "periodic textual stats cadence; 0 disables it")
	redisAddr := flag.String("redis-addr", "", "enable the Redis sink against this address")
	kafkaTopic := flag.String("kafka-topic", "", "enable the Kafka (logging-demo) sink against this topic")
	consoleWorkers := flag.Int("console-workers", 1, "console sink worker pool size")
	fileWorkers := flag.Int("file-workers", 2, "file sink worker pool size")
	flag.Parse()

	args := flag.Args()
	port, blockSize, maxCmdsInFiles, err := parsePositional(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)

	global := storage.NewGlobal(int(blockSize))

	console := sinks.NewConsole(os.Stdout, *consoleWorkers)
	file := sinks.NewFile("", *fileWorkers, maxCmdsInFiles)
	global.Subscribe(console)
	global.Subscribe(file)

	var enabledDurable []string
	if *redisAddr != "" {
		enabledDurable = append(enabledDurable, "redis")
	}
	if *kafkaTopic != "" {
		enabledDurable = append(enabledDurable, "kafka")
	}
	durableSinks, err := sinks.BuildDurable(enabledDurable, sinks.Options{
		RedisAddr:  *redisAddr,
		KafkaTopic: *kafkaTopic,
	})
	if err != nil {
		logger.Fatalf("bulkserver: %v", err)
	}
	allSinks := []storage.Sink{console, file}
	for _, sink := range durableSinks {
		global.Subscribe(sink)
		allSinks = append(allSinks, sink)
	}

	srv := session.NewServer(global, allSinks, logger, metrics.Hook{})

	statsSources := map[string]metrics.StatsSource{
		"console": console,
		"file":    file,
	}
	for i, name := range enabledDurable {
		statsSources[name] = durableSinks[i]
	}

	var adminServer *metrics.Server
	if *metricsAddr != "" {
		adminServer = metrics.NewServer(*metricsAddr, srv.ActiveConnections, statsSources)
		go func() {
			if err := adminServer.ListenAndServe(); err != nil {
				logger.Printf("bulkserver: admin http server stopped: %v", err)
			}
		}()
	}

	statsLogger := metrics.NewStatsLogger(logger, *statsInterval, srv.ActiveConnections, statsSources)
	statsLogger.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Printf("bulkserver: listening on port %d, block size %d", port, blockSize)
		serveErr <- srv.ListenAndServe(fmt.Sprintf(":%d", port))
	}()

	select {
	case <-sigCh:
		logger.Printf("bulkserver: shutting down")
	case err := <-serveErr:
		if err != nil {
			logger.Printf("bulkserver: listener stopped: %v", err)
		}
	}

	_ = srv.Close()
	statsLogger.Stop()
	if adminServer != nil {
		_ = adminServer.Close()
	}

	console.Stop()
	file.Stop()
	for _, sink := range durableSinks {
		sink.Stop()
	}
}

func parsePositional(args []string) (port uint16, blockSize uint64, maxCmdsInFiles uint64, err error) {
	if len(args) != 2 && len(args) != 3 {
		return 0, 0, 0, fmt.Errorf(usage)
	}

	portVal, perr := parseDigits(args[0])
	if perr != nil || portVal > math.MaxUint16 {
		return 0, 0, 0, fmt.Errorf(usage)
	}

	blockVal, berr := parseDigits(args[1])
	if berr != nil || blockVal == 0 {
		return 0, 0, 0, fmt.Errorf(usage)
	}

	var maxCmds uint64
	if len(args) == 3 {
		maxCmds, err = parseDigits(args[2])
		if err != nil {
			return 0, 0, 0, fmt.Errorf(usage)
		}
	}

	return uint16(portVal), blockVal, maxCmds, nil
}

func parseDigits(s string) (uint64, error) {
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r < '0' || r > '9' }) {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseUint(s, 10, 64)
}
