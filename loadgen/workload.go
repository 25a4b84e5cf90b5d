package loadgen

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Workload selects the request pattern the generator drives.
type Workload string

const (
	// WorkloadGetAll reads globally sequenced keys, mostly missing: a
	// worst case for the cache.
	WorkloadGetAll Workload = "get_all"

	// WorkloadPutAll alternates PUT and DELETE over per-worker keyspaces.
	WorkloadPutAll Workload = "put_all"

	// WorkloadGetPopular reads uniformly from a small hot set, the best
	// case for the cache.
	WorkloadGetPopular Workload = "get_popular"

	// WorkloadMix is 5% DELETE, 65% GET, 30% PUT.
	WorkloadMix Workload = "mix"
)

// ParseWorkload validates a workload name.
func ParseWorkload(s string) (Workload, error) {
	switch w := Workload(s); w {
	case WorkloadGetAll, WorkloadPutAll, WorkloadGetPopular, WorkloadMix:
		return w, nil
	default:
		return "", fmt.Errorf("loadgen: unknown workload %q", s)
	}
}

// Options configures a load-generation run.
type Options struct {
	Clients  int
	Duration time.Duration
	Workload Workload

	// Keyspace bounds the per-worker key range. Defaults to 100000.
	Keyspace uint64

	// PopularKeys is the hot-set size for get_popular. Defaults to 100.
	PopularKeys int

	Client ClientConfig
}

// Result holds the aggregated counters of a run. Latency is accumulated
// only for successful requests, matching throughput over successes.
type Result struct {
	Requests     uint64
	Success      uint64
	Errors       uint64
	TotalLatency time.Duration
}

// AvgLatencyMS returns the mean latency of successful requests in
// milliseconds, 0 when nothing succeeded.
func (r Result) AvgLatencyMS() float64 {
	if r.Success == 0 {
		return 0
	}
	return float64(r.TotalLatency.Nanoseconds()) / 1e6 / float64(r.Success)
}

// Throughput returns successful requests per second over the run duration.
func (r Result) Throughput(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(r.Success) / d.Seconds()
}

// runner aggregates counters across worker goroutines.
type runner struct {
	requests  atomic.Uint64
	success   atomic.Uint64
	errors    atomic.Uint64
	latencyNS atomic.Uint64
	globalSeq atomic.Uint64
}

func (rn *runner) record(lat time.Duration, err error) {
	rn.requests.Add(1)
	if err != nil {
		rn.errors.Add(1)
		return
	}
	rn.success.Add(1)
	rn.latencyNS.Add(uint64(lat.Nanoseconds()))
}

// threadKey derives a per-worker key bounded by the keyspace.
func threadKey(tid int, seq, keyspace uint64) string {
	v := (uint64(tid)*1000003 + seq) % keyspace
	return fmt.Sprintf("t%d-k%d", tid, v)
}

func (rn *runner) globalKey() string {
	return fmt.Sprintf("g%d", rn.globalSeq.Add(1)-1)
}

// Run drives the configured workload against the server at baseURL with
// opts.Clients concurrent workers for opts.Duration, or until ctx is done.
func Run(ctx context.Context, baseURL string, opts Options, log *zap.Logger) Result {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Keyspace == 0 {
		opts.Keyspace = 100000
	}
	if opts.PopularKeys <= 0 {
		opts.PopularKeys = 100
	}
	if opts.Clients <= 0 {
		opts.Clients = 1
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Duration)
	defer cancel()

	rn := &runner{}
	var wg sync.WaitGroup
	for tid := range opts.Clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cli := NewClient(baseURL, opts.Client)
			rn.work(ctx, cli, tid, opts)
		}()
	}
	wg.Wait()

	res := Result{
		Requests:     rn.requests.Load(),
		Success:      rn.success.Load(),
		Errors:       rn.errors.Load(),
		TotalLatency: time.Duration(rn.latencyNS.Load()),
	}
	log.Info("run complete",
		zap.String("workload", string(opts.Workload)),
		zap.Int("clients", opts.Clients),
		zap.Uint64("requests", res.Requests),
		zap.Uint64("success", res.Success),
		zap.Uint64("errors", res.Errors))
	return res
}

func (rn *runner) work(ctx context.Context, cli *Client, tid int, opts Options) {
	rng := rand.New(rand.NewSource(int64(tid) + 999))
	var seq uint64

	for ctx.Err() == nil {
		var (
			lat time.Duration
			err error
		)
		switch opts.Workload {
		case WorkloadGetAll:
			lat, err = cli.Get(ctx, rn.globalKey())

		case WorkloadPutAll:
			key := threadKey(tid, seq, opts.Keyspace)
			seq++
			if seq%2 == 1 {
				lat, err = cli.Put(ctx, key, []byte(fmt.Sprintf("v%d", seq)))
			} else {
				lat, err = cli.Delete(ctx, key)
			}

		case WorkloadGetPopular:
			key := fmt.Sprintf("popular-%d", rng.Intn(opts.PopularKeys))
			lat, err = cli.Get(ctx, key)

		default: // WorkloadMix
			key := threadKey(tid, seq, opts.Keyspace)
			seq++
			r := rng.Float64()
			switch {
			case r < 0.05:
				lat, err = cli.Delete(ctx, key)
			case r < 0.7:
				lat, err = cli.Get(ctx, key)
			default:
				lat, err = cli.Put(ctx, key, []byte(fmt.Sprintf("v%d", seq)))
			}
		}

		if ctx.Err() != nil && err != nil {
			// The deadline cut this request short; don't count it.
			return
		}
		rn.record(lat, err)
	}
}
