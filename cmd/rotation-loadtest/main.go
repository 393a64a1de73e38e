// Command rotation-loadtest drives refresh rotations through the engine against
// Redis (or an embedded miniredis) and reports latency percentiles plus the
// outcome of concurrent replay races.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"text/tabwriter"
	"time"

	goSession "github.com/MrEthical07/goSession"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	families    int
	concurrency int
	ops         int
	races       int
	racers      int
	redisURL    string
}

// errMultiWinner fails the run when any race produced more than one rotation.
var errMultiWinner = errors.New("a credential was rotated more than once")

func main() {
	if err := newCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:           "rotation-loadtest",
		Short:         "Measure rotation latency and replay-race safety",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.families <= 0 || opts.concurrency <= 0 || opts.ops <= 0 || opts.racers < 2 {
				return errors.New("families, concurrency and ops must be > 0 and racers >= 2")
			}
			opts.races = min(opts.races, opts.families)
			return run(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.families, "families", 2000, "session families to issue")
	f.IntVar(&opts.concurrency, "concurrency", 64, "concurrent rotation workers")
	f.IntVar(&opts.ops, "ops", 20000, "rotations in the throughput phase")
	f.IntVar(&opts.races, "races", 200, "families used in the replay race phase")
	f.IntVar(&opts.racers, "racers", 8, "concurrent presentations of one credential per race")
	f.StringVar(&opts.redisURL, "redis-url", "", "redis URL; REDIS_URL or an embedded miniredis when empty")
	return cmd
}

func run(ctx context.Context, opts options, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	client, cleanup, err := connect(opts.redisURL, out)
	if err != nil {
		return err
	}
	defer cleanup()

	engine, err := newEngine(client)
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	seeded := time.Now()
	tokens, err := issueFamilies(ctx, engine, opts.families)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "issued %d families in %s\n", opts.families, time.Since(seeded).Round(time.Millisecond))

	rotate := runRotatePhase(ctx, engine, tokens[opts.races:], opts.ops, opts.concurrency)
	race := runRacePhase(ctx, engine, tokens[:opts.races], opts.racers)
	report(out, rotate, race, engine.MetricsSnapshot())

	if race.multiWinner > 0 {
		return errMultiWinner
	}
	return nil
}

func connect(url string, out io.Writer) (redis.UniversalClient, func(), error) {
	if url == "" {
		url = os.Getenv("REDIS_URL")
	}
	if url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		fmt.Fprintf(out, "using redis at %s\n", opts.Addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	fmt.Fprintf(out, "using embedded miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func newEngine(client redis.UniversalClient) (*goSession.Engine, error) {
	cfg := goSession.DefaultConfig()
	cfg.JWT.AccessSecret = []byte("loadtest-access-secret-0123456789")
	cfg.JWT.RefreshSecret = []byte("loadtest-refresh-secret-012345678")
	cfg.JWT.Issuer = "rotation-loadtest"
	cfg.JWT.Audience = "rotation-loadtest"
	cfg.Session.RedisPrefix = "lt"
	cfg.Session.CredentialHashSecret = []byte("loadtest-hash-secret-0123456789")
	cfg.RateLimit.Enabled = false
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true

	return goSession.New().
		WithConfig(cfg).
		WithRedis(client).
		WithLogger(zap.NewNop()).
		Build()
}

func issueFamilies(ctx context.Context, engine *goSession.Engine, n int) ([]string, error) {
	meta := goSession.ClientMeta{IP: "127.0.0.1", UserAgent: "rotation-loadtest"}
	tokens := make([]string, n)
	for i := range tokens {
		pair, err := engine.Issue(ctx, fmt.Sprintf("user-%d", i), meta)
		if err != nil {
			return nil, fmt.Errorf("issue family %d: %w", i, err)
		}
		tokens[i] = pair.RefreshToken
	}
	return tokens, nil
}

// runRotatePhase rotates families in a round robin. Families are partitioned
// across workers so each credential chain is only ever advanced by its owner.
func runRotatePhase(ctx context.Context, engine *goSession.Engine, tokens []string, ops, concurrency int) summary {
	if len(tokens) == 0 {
		return summary{}
	}
	workers := min(concurrency, len(tokens))

	var (
		issued   atomic.Int64
		failures atomic.Int64
		wg       sync.WaitGroup
	)
	samples := make([][]time.Duration, workers)

	start := time.Now()
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var owned []int
			for i := w; i < len(tokens); i += workers {
				owned = append(owned, i)
			}
			for n := 0; issued.Add(1) <= int64(ops); n++ {
				i := owned[n%len(owned)]
				t0 := time.Now()
				pair, err := engine.Rotate(ctx, tokens[i], goSession.ClientMeta{})
				samples[w] = append(samples[w], time.Since(t0))
				if err != nil {
					failures.Add(1)
					continue
				}
				tokens[i] = pair.RefreshToken
			}
		}()
	}
	wg.Wait()
	return summarize(time.Since(start), slices.Concat(samples...), failures.Load())
}

type raceStats struct {
	families    int
	racers      int
	winners     int64
	reuse       int64
	other       int64
	multiWinner int64
}

// runRacePhase presents each family's current credential from several
// goroutines at once. Exactly one presentation may win.
func runRacePhase(ctx context.Context, engine *goSession.Engine, tokens []string, racers int) raceStats {
	out := raceStats{families: len(tokens), racers: racers}
	for _, token := range tokens {
		var (
			wins, reuse, other atomic.Int64
			wg                 sync.WaitGroup
			gate               = make(chan struct{})
		)
		for range racers {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-gate
				_, err := engine.Rotate(ctx, token, goSession.ClientMeta{})
				switch {
				case err == nil:
					wins.Add(1)
				case errors.Is(err, goSession.ErrTokenReuse):
					reuse.Add(1)
				default:
					other.Add(1)
				}
			}()
		}
		close(gate)
		wg.Wait()

		out.winners += wins.Load()
		out.reuse += reuse.Load()
		out.other += other.Load()
		if wins.Load() > 1 {
			out.multiWinner++
		}
	}
	return out
}

// summary describes one latency sample set.
type summary struct {
	elapsed  time.Duration
	count    int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	max      time.Duration
}

func (s summary) throughput() float64 {
	if s.elapsed <= 0 {
		return 0
	}
	return float64(s.count) / s.elapsed.Seconds()
}

func summarize(elapsed time.Duration, samples []time.Duration, failures int64) summary {
	slices.Sort(samples)
	s := summary{elapsed: elapsed, count: len(samples), failures: failures}
	if len(samples) > 0 {
		s.p50 = nearestRank(samples, 0.50)
		s.p95 = nearestRank(samples, 0.95)
		s.p99 = nearestRank(samples, 0.99)
		s.max = samples[len(samples)-1]
	}
	return s
}

// nearestRank returns the q-quantile of sorted samples using the nearest-rank
// method. q is clamped to [0, 1].
func nearestRank(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	q = math.Max(0, math.Min(1, q))
	rank := int(math.Ceil(q * float64(len(sorted))))
	return sorted[max(rank, 1)-1]
}

func report(out io.Writer, rotate summary, race raceStats, snap goSession.MetricsSnapshot) {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintln(tw, "phase\tops\tfailures\telapsed\tops/s\tp50\tp95\tp99\tmax")
	fmt.Fprintf(tw, "rotate\t%d\t%d\t%s\t%.0f\t%s\t%s\t%s\t%s\n",
		rotate.count, rotate.failures,
		rotate.elapsed.Round(time.Millisecond), rotate.throughput(),
		rotate.p50.Round(time.Microsecond), rotate.p95.Round(time.Microsecond),
		rotate.p99.Round(time.Microsecond), rotate.max.Round(time.Microsecond),
	)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "races\tracers\twinners\treuse\tother\tmulti-winner")
	fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\n",
		race.families, race.racers, race.winners, race.reuse, race.other, race.multiWinner)
	fmt.Fprintln(tw)
	for _, id := range []goSession.MetricID{
		goSession.MetricRefreshSuccess,
		goSession.MetricRefreshReuseDetected,
		goSession.MetricLineageRevoked,
		goSession.MetricStoreError,
	} {
		fmt.Fprintf(tw, "%s\t%d\n", id, snap.Counters[id])
	}
}
