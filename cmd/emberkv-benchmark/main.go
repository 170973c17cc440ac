// emberkv-benchmark - load generator for EmberKV
//
// Usage:
//
//	emberkv-benchmark [flags]
//
// Flags:
//
//	--addr string      Server address (default "localhost:6379")
//	--clients int      Number of parallel clients (default 50)
//	--requests int     Total number of requests (default 100000)
//	--pipeline int     Commands sent per round trip (default 1)
//	--test string      Test type: ping,set,get,mixed,incr,lpush,hset,zadd (default "mixed")
//	--password string  Password sent with AUTH before the run
package main

import (
	"fmt"
	"net"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/emberkv/emberkv/internal/protocol"
)

type options struct {
	addr     string
	clients  int
	requests int
	pipeline int
	test     string
	password string
}

func main() {
	var opts options
	cmd := &cobra.Command{
		Use:          "emberkv-benchmark",
		Short:        "Benchmark an EmberKV server",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.addr, "addr", "localhost:6379", "Server address")
	flags.IntVar(&opts.clients, "clients", 50, "Number of parallel clients")
	flags.IntVar(&opts.requests, "requests", 100000, "Total number of requests")
	flags.IntVar(&opts.pipeline, "pipeline", 1, "Commands sent per round trip")
	flags.StringVar(&opts.test, "test", "mixed", "Test type: ping,set,get,mixed,incr,lpush,hset,zadd")
	flags.StringVar(&opts.password, "password", "", "Password sent with AUTH before the run")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// buildCommand returns request j of client id for the given test.
func buildCommand(test string, id, j int) (protocol.Command, error) {
	key := "key:" + strconv.Itoa(id) + ":" + strconv.Itoa(j)
	value := "value:" + strconv.Itoa(id) + ":" + strconv.Itoa(j)
	switch test {
	case "ping":
		return protocol.NewCommand("PING"), nil
	case "set":
		return protocol.NewCommand("SET", key, value), nil
	case "get":
		return protocol.NewCommand("GET", key), nil
	case "mixed":
		if j%2 == 0 {
			return protocol.NewCommand("SET", key, value), nil
		}
		return protocol.NewCommand("GET", "key:"+strconv.Itoa(id)+":"+strconv.Itoa(j-1)), nil
	case "incr":
		return protocol.NewCommand("INCR", "counter:"+strconv.Itoa(id)), nil
	case "lpush":
		return protocol.NewCommand("LPUSH", "list:"+strconv.Itoa(id), value), nil
	case "hset":
		return protocol.NewCommand("HSET", "hash:"+strconv.Itoa(id), key, value), nil
	case "zadd":
		return protocol.NewCommand("ZADD", "zset:"+strconv.Itoa(id), strconv.Itoa(j), key), nil
	}
	return nil, fmt.Errorf("unknown test %q", test)
}

func run(opts options) error {
	if opts.clients <= 0 || opts.requests <= 0 || opts.pipeline <= 0 {
		return fmt.Errorf("clients, requests and pipeline must be positive")
	}
	if _, err := buildCommand(opts.test, 0, 0); err != nil {
		return err
	}

	fmt.Println("====== EmberKV Benchmark ======")
	fmt.Printf("Server: %s\n", opts.addr)
	fmt.Printf("Clients: %d\n", opts.clients)
	fmt.Printf("Requests: %d\n", opts.requests)
	fmt.Printf("Pipeline: %d\n", opts.pipeline)
	fmt.Printf("Test: %s\n", opts.test)
	fmt.Println()

	var completed, failed atomic.Int64
	reqPerClient := opts.requests / opts.clients
	latencies := make([][]time.Duration, opts.clients)

	start := time.Now()
	var wg sync.WaitGroup
	for i := 0; i < opts.clients; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			latencies[id] = runClient(opts, id, reqPerClient, &completed, &failed)
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	var all []time.Duration
	for _, l := range latencies {
		all = append(all, l...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })

	fmt.Println("====== Results ======")
	fmt.Printf("Total time: %v\n", elapsed)
	fmt.Printf("Completed: %d\n", completed.Load())
	fmt.Printf("Errors: %d\n", failed.Load())
	fmt.Printf("Requests/sec: %.2f\n", float64(completed.Load())/elapsed.Seconds())
	if len(all) > 0 {
		fmt.Printf("Round trip p50: %v  p99: %v  max: %v\n",
			percentile(all, 0.50), percentile(all, 0.99), all[len(all)-1])
	}
	return nil
}

// runClient sends n commands in batches of opts.pipeline and returns the
// round-trip time of every batch.
func runClient(opts options, id, n int, completed, failed *atomic.Int64) []time.Duration {
	conn, err := net.Dial("tcp", opts.addr)
	if err != nil {
		failed.Add(int64(n))
		return nil
	}
	defer conn.Close()

	writer := protocol.NewWriter(conn)
	reader := protocol.NewReader(conn)

	if opts.password != "" {
		_ = writer.WriteCommand(protocol.NewCommand("AUTH", opts.password))
		_ = writer.Flush()
		if reply, err := reader.ReadReply(); err != nil || isError(reply) {
			failed.Add(int64(n))
			return nil
		}
	}

	rtts := make([]time.Duration, 0, n/opts.pipeline+1)
	for j := 0; j < n; j += opts.pipeline {
		batch := min(opts.pipeline, n-j)
		began := time.Now()
		for k := 0; k < batch; k++ {
			cmd, _ := buildCommand(opts.test, id, j+k)
			if err := writer.WriteCommand(cmd); err != nil {
				failed.Add(int64(n - j))
				return rtts
			}
		}
		if err := writer.Flush(); err != nil {
			failed.Add(int64(n - j))
			return rtts
		}
		for k := 0; k < batch; k++ {
			reply, err := reader.ReadReply()
			if err != nil {
				failed.Add(int64(n - j - k))
				return rtts
			}
			if isError(reply) {
				failed.Add(1)
				continue
			}
			completed.Add(1)
		}
		rtts = append(rtts, time.Since(began))
	}
	return rtts
}

func isError(r protocol.Reply) bool {
	_, ok := r.(protocol.ErrorReply)
	return ok
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
