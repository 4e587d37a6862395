// Command tabauth-loadtest runs many simulated tabs against one shared durable tier
// and checks that no tab's registry entry is lost under concurrent updates.
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

	"github.com/alicebob/miniredis/v2"
	"github.com/bazaarops/tabauth"
	"github.com/bazaarops/tabauth/internal/logging"
	"github.com/bazaarops/tabauth/jwt"
	"github.com/bazaarops/tabauth/session"
	"github.com/bazaarops/tabauth/storage"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		tabs      = flag.Int("tabs", 64, "number of simulated tabs")
		ops       = flag.Int("ops", 20000, "operations per phase (checkAuth, switch)")
		users     = flag.Int("users", 16, "distinct accounts to rotate through")
		redisAddr = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix    = flag.String("prefix", "tabauth-loadtest", "key prefix")
	)
	flag.Parse()

	if *tabs <= 0 || *ops <= 0 || *users <= 0 {
		fmt.Fprintln(os.Stderr, "tabs, ops, and users must be > 0")
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

	durable := storage.NewRedis(client, storage.WithPrefix(*prefix), storage.WithUpdateAttempts(64))
	if err := durable.Delete(ctx, session.ActiveAccountsKey); err != nil {
		fmt.Fprintf(os.Stderr, "reset registry failed: %v\n", err)
		os.Exit(1)
	}

	tokens, err := mintTokens(*users)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mint tokens failed: %v\n", err)
		os.Exit(1)
	}

	cfg := tabauth.DefaultConfig()
	cfg.Metrics.Enabled = true

	stores := make([]*tabauth.Store, *tabs)
	fmt.Printf("opening %d tabs...\n", *tabs)
	startOpen := time.Now()
	for i := range stores {
		store, err := tabauth.New().
			WithConfig(cfg).
			WithDurable(durable).
			WithLogger(logging.Discard()).
			Build(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "build tab failed: %v\n", err)
			os.Exit(1)
		}
		stores[i] = store
	}
	loginStats := runPhase(stores, *tabs, func(r *rand.Rand, s *tabauth.Store) bool {
		return s.Login(ctx, tokens[r.Intn(len(tokens))], true).IsAuthenticated
	}, true)
	fmt.Printf("logged in %d tabs in %s\n", *tabs, time.Since(startOpen).Round(time.Millisecond))

	checkStats := runPhase(stores, *ops, func(_ *rand.Rand, s *tabauth.Store) bool {
		return s.CheckAuth(ctx).IsAuthenticated
	}, false)
	switchStats := runPhase(stores, *ops, func(r *rand.Rand, s *tabauth.Store) bool {
		return s.SwitchAccount(ctx, tokens[r.Intn(len(tokens))]).IsAuthenticated
	}, false)

	accounts, err := session.NewRegistry(durable).Load(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load registry failed: %v\n", err)
		os.Exit(1)
	}
	lost := 0
	var storageFailures uint64
	for _, s := range stores {
		if _, ok := accounts[s.TabID(ctx)]; !ok {
			lost++
		}
		storageFailures += s.Metrics().Value(tabauth.MetricStorageFailure)
	}

	fmt.Println("---- results ----")
	printStats("login", loginStats)
	printStats("checkAuth", checkStats)
	printStats("switch", switchStats)
	fmt.Printf("registry entries=%d tabs=%d lost=%d storage_failures=%d\n", len(accounts), *tabs, lost, storageFailures)

	for _, s := range stores {
		s.Close(ctx)
	}
	if lost > 0 {
		os.Exit(1)
	}
}

func mintTokens(users int) ([]string, error) {
	signer, err := jwt.NewSigner(jwt.SignerConfig{
		TTL:           time.Hour,
		SigningMethod: jwt.MethodHS256,
		PrivateKey:    []byte("tabauth-loadtest-signing-key"),
	})
	if err != nil {
		return nil, err
	}

	tokens := make([]string, users)
	for i := range tokens {
		tokens[i], err = signer.Sign(fmt.Sprintf("user-%d", i), "member")
		if err != nil {
			return nil, err
		}
	}
	return tokens, nil
}

// runPhase spreads ops operations over the tabs, one worker per tab. With sequential
// set, operation i goes to tab i so each tab runs exactly once.
func runPhase(stores []*tabauth.Store, ops int, op func(*rand.Rand, *tabauth.Store) bool, sequential bool) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := range stores {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				store := stores[worker]
				if sequential {
					store = stores[i%len(stores)]
				}
				t0 := time.Now()
				ok := op(r, store)
				d := time.Since(t0)
				if !ok {
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
