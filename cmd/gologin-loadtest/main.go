package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	goLogin "github.com/MrEthical07/goLogin"
	"github.com/MrEthical07/goLogin/internal/fakeidp"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		users       = flag.Int("users", 1000, "number of accounts to seed in the fake provider")
		concurrency = flag.Int("concurrency", 64, "number of concurrent workers")
		ops         = flag.Int("ops", 20000, "operations per phase")
		latency     = flag.Duration("latency", 0, "simulated provider latency per call")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
	)
	flag.Parse()

	if *users <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "users, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	idp := fakeidp.New(fakeidp.Options{Latency: *latency})
	names := make([]string, *users)
	fmt.Printf("seeding %d users...\n", *users)
	for i := range names {
		names[i] = fmt.Sprintf("user%d@example.com", i)
		idp.AddUser(names[i], "Passw0rd!", true)
	}

	engine, err := goLogin.New().
		WithProvider(idp).
		WithRedis(client).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine build failed: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	signInStats := runPhase(*ops, *concurrency, 7919, func(r *rand.Rand) error {
		flow, err := engine.NewSignInFlow(ctx)
		if err != nil {
			return err
		}
		defer flow.Close()
		return flow.SubmitSignIn(ctx, names[r.Intn(len(names))], "Passw0rd!", true)
	})
	rememberedStats := runPhase(*ops, *concurrency, 6151, func(*rand.Rand) error {
		flow, err := engine.NewSignInFlow(ctx)
		if err != nil {
			return err
		}
		defer flow.Close()
		return flow.SubmitRememberedSignIn(ctx)
	})
	refreshStats := runPhase(*ops, *concurrency, 4447, func(*rand.Rand) error {
		engine.Session().Refresh(ctx)
		return nil
	})

	fmt.Println("---- results ----")
	printStats("sign_in", signInStats)
	printStats("remembered_sign_in", rememberedStats)
	printStats("session_refresh", refreshStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("metrics: sign_in_success=%d sign_in_failure=%d busy_rejected=%d credential_saved=%d\n",
		snap.Counters[goLogin.MetricSignInSuccess],
		snap.Counters[goLogin.MetricSignInFailure],
		snap.Counters[goLogin.MetricBusyRejected],
		snap.Counters[goLogin.MetricCredentialSaved],
	)
}

func runPhase(ops, concurrency int, seed int64, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
