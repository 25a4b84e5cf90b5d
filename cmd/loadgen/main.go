// Command loadgen drives synthetic load against a running kvserver and
// reports throughput and latency. It talks to the server purely over HTTP;
// retry, backoff and pacing are client-side policies.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Ankit-Rajput1112/DECS-Project/loadgen"
)

func main() {
	var (
		host     = flag.String("host", "127.0.0.1", "server host")
		port     = flag.Int("port", 8080, "server port")
		clients  = flag.Int("clients", 8, "number of concurrent clients")
		duration = flag.Duration("duration", 30*time.Second, "run duration")
		workload = flag.String("workload", "mix", "workload: get_all, put_all, get_popular or mix")
		keyspace = flag.Uint64("keyspace", 100000, "per-client key range")
		popular  = flag.Int("popular", 100, "hot-set size for get_popular")
		retries  = flag.Int("retries", 2, "retries per request")
		rps      = flag.Float64("rps", 0, "per-client request rate (0: unpaced)")
		csvPath  = flag.String("csv", "results.csv", "results CSV to append to (empty: skip)")
	)
	flag.Parse()

	w, err := loadgen.ParseWorkload(*workload)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	baseURL := fmt.Sprintf("http://%s:%d", *host, *port)
	res := loadgen.Run(ctx, baseURL, loadgen.Options{
		Clients:     *clients,
		Duration:    *duration,
		Workload:    w,
		Keyspace:    *keyspace,
		PopularKeys: *popular,
		Client: loadgen.ClientConfig{
			Timeout:    5 * time.Second,
			Retries:    *retries,
			RPS:        *rps,
			BreakAfter: 10,
			Cooldown:   2 * time.Second,
		},
	}, log)

	summary := loadgen.Summarize(res, *clients, *duration)
	fmt.Printf("Total req: %d\n", summary.Requests)
	fmt.Printf("Success: %d Errors: %d\n", summary.Success, summary.Errors)
	fmt.Printf("Throughput: %g req/s\n", summary.Throughput)
	fmt.Printf("Avg Latency: %g ms\n", summary.AvgLatencyMS)

	if *csvPath != "" {
		if err := loadgen.AppendCSV(*csvPath, summary); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Printf("Appended results to %s\n", *csvPath)
	}
}
