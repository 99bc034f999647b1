// bulkload is a tiny, dependency-free TCP load generator for a running
// bulkserver instance. It reuses one connection per worker (no reconnect
// per command) and supports concurrency so demo scripts run fast without
// relying on external tools.
//
// Usage example:
//
//	bulkload -addr=127.0.0.1:9000 -n=5000 -c=16 -block=3
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:9000", "bulkserver TCP address")
	n := flag.Int("n", 5000, "total commands to send per worker")
	conc := flag.Int("c", 8, "number of concurrent connections")
	block := flag.Int("block", 0, "wrap every block-th command in a { ... } block; 0 disables blocks")
	dialTimeout := flag.Duration("dial_timeout", 5*time.Second, "per-connection dial timeout")
	flag.Parse()

	if *n <= 0 || *conc <= 0 {
		fmt.Fprintln(os.Stderr, "-n and -c must be > 0")
		os.Exit(2)
	}

	start := time.Now()
	var sent int64
	var failed int64

	var wg sync.WaitGroup
	wg.Add(*conc)
	for w := 0; w < *conc; w++ {
		go func(id int) {
			defer wg.Done()
			if err := runWorker(id, *addr, *n, *block, *dialTimeout, &sent); err != nil {
				atomic.AddInt64(&failed, 1)
				fmt.Fprintf(os.Stderr, "bulkload: worker %d: %v\n", id, err)
			}
		}(w)
	}
	wg.Wait()

	elapsed := time.Since(start)
	if elapsed <= 0 {
		elapsed = time.Millisecond
	}
	ops := float64(atomic.LoadInt64(&sent)) / elapsed.Seconds()
	fmt.Printf("bulkload: sent=%d failed_workers=%d c=%d go=%d duration=%s throughput=%.0f cmds/s\n",
		atomic.LoadInt64(&sent), atomic.LoadInt64(&failed), *conc, runtime.GOMAXPROCS(0), elapsed.Truncate(time.Millisecond), ops)
}

// runWorker dials one connection and writes n commands to it, wrapping
// every block-th command in its own { ... } so the dynamic-block path
// gets exercised alongside the fixed-size path.
func runWorker(id int, addr string, n, block int, dialTimeout time.Duration, sent *int64) error {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	w := bufio.NewWriter(conn)
	for i := 0; i < n; i++ {
		cmd := fmt.Sprintf("worker%d-cmd%d", id, i)
		if block > 0 && i%block == 0 {
			if _, err := w.WriteString("{\n"); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "%s\n", cmd); err != nil {
			return err
		}
		if block > 0 && i%block == 0 {
			if _, err := w.WriteString("}\n"); err != nil {
				return err
			}
		}
		atomic.AddInt64(sent, 1)
	}
	return w.Flush()
}
