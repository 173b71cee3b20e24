// Command bench drives a synthetic pipelined workload against a running
// crabcache server over TCP and exposes optional pprof/Prometheus endpoints.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// ---- Flags ----
	var (
		addr    = flag.String("addr", "127.0.0.1:8000", "crabcache server address")
		workers = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker connections")
		dur     = flag.Duration("duration", 10*time.Second, "benchmark duration")
		readPct = flag.Int("reads", 80, "read percentage [0..100]")
		batch   = flag.Int("batch", 16, "pipelined commands per write")

		keys    = flag.Int("keys", 1_000_000, "keyspace size")
		zipfS   = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV   = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed    = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		preload = flag.Int("preload", 10_000, "keys PUT before the timed run starts")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
	)
	flag.Parse()

	if *pprofAddr != "" {
		go func() {
			log.Printf("pprof: serving at %s", *pprofAddr)
			log.Println(http.ListenAndServe(*pprofAddr, nil))
		}()
	}

	opsCounter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crabcache",
		Subsystem: "bench",
		Name:      "ops_total",
		Help:      "Benchmark operations issued, by kind and outcome",
	}, []string{"kind", "outcome"})
	prometheus.MustRegister(opsCounter)
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Printf("metrics: serving at %s", *metricsAddr)
		log.Println(http.ListenAndServe(*metricsAddr, nil))
	}()

	// ---- Preload so reads have something to hit ----
	if err := preloadKeys(*addr, *preload); err != nil {
		log.Fatalf("preload: %v", err)
	}

	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}
	keysMax := uint64(*keys - 1)
	batchSize := *batch
	if batchSize <= 0 {
		batchSize = 1
	}

	var reads, writes, hits, misses, total uint64
	ctx, cancel := context.WithTimeout(context.Background(), *dur)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()
			if err := runWorker(ctx, *addr, id, *seed, *readPct, batchSize, keysMax, *zipfS, *zipfV,
				&reads, &writes, &hits, &misses, &total, opsCounter); err != nil {
				log.Printf("worker %d: %v", id, err)
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	ops := atomic.LoadUint64(&total)
	readsN := atomic.LoadUint64(&reads)
	writesN := atomic.LoadUint64(&writes)
	hitsN := atomic.LoadUint64(&hits)
	missesN := atomic.LoadUint64(&misses)

	hitRate := 0.0
	if readsN > 0 {
		hitRate = float64(hitsN) / float64(readsN) * 100
	}

	fmt.Printf("addr=%s workers=%d keys=%d dur=%v seed=%d batch=%d\n", *addr, workersN, *keys, elapsed, *seed, batchSize)
	fmt.Printf("ops=%d (%.0f ops/s)  reads=%d  writes=%d\n", ops, float64(ops)/elapsed.Seconds(), readsN, writesN)
	fmt.Printf("hits=%d  misses=%d  hit-rate=%.2f%%\n", hitsN, missesN, hitRate)
}

func preloadKeys(addr string, n int) error {
	if n <= 0 {
		return nil
	}
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	var sb strings.Builder
	r := bufio.NewReader(conn)
	const chunk = 500
	for i := 0; i < n; i += chunk {
		end := i + chunk
		if end > n {
			end = n
		}
		sb.Reset()
		for k := i; k < end; k++ {
			sb.WriteString("PUT k:")
			sb.WriteString(strconv.Itoa(k))
			sb.WriteString(" v")
			sb.WriteString(strconv.Itoa(k))
			sb.WriteByte('\n')
		}
		if _, err := conn.Write([]byte(sb.String())); err != nil {
			return err
		}
		for k := i; k < end; k++ {
			if _, err := r.ReadString('\n'); err != nil {
				return err
			}
			_ = k
		}
	}
	return nil
}

func runWorker(
	ctx context.Context,
	addr string,
	id int,
	seedBase int64,
	readPct, batchSize int,
	keysMax uint64,
	zipfS, zipfV float64,
	reads, writes, hits, misses, total *uint64,
	opsCounter *prometheus.CounterVec,
) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	localR := rand.New(rand.NewSource(seedBase + int64(id)*9973))
	localZipf := rand.NewZipf(localR, zipfS, zipfV, keysMax)
	r := bufio.NewReader(conn)

	var sb strings.Builder
	kinds := make([]byte, 0, batchSize) // 'R' or 'W' per queued command

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		sb.Reset()
		kinds = kinds[:0]
		for i := 0; i < batchSize; i++ {
			key := "k:" + strconv.FormatUint(localZipf.Uint64(), 10)
			if int(localR.Int31n(100)) < readPct {
				sb.WriteString("GET ")
				sb.WriteString(key)
				sb.WriteByte('\n')
				kinds = append(kinds, 'R')
			} else {
				sb.WriteString("PUT ")
				sb.WriteString(key)
				sb.WriteString(" v")
				sb.WriteString(strconv.Itoa(localR.Int()))
				sb.WriteByte('\n')
				kinds = append(kinds, 'W')
			}
		}
		if _, err := conn.Write([]byte(sb.String())); err != nil {
			return err
		}

		for _, kind := range kinds {
			line, err := r.ReadString('\n')
			if err != nil {
				return err
			}
			atomic.AddUint64(total, 1)
			if kind == 'R' {
				atomic.AddUint64(reads, 1)
				if line == "NULL\n" {
					atomic.AddUint64(misses, 1)
					opsCounter.WithLabelValues("get", "miss").Inc()
				} else {
					atomic.AddUint64(hits, 1)
					opsCounter.WithLabelValues("get", "hit").Inc()
				}
			} else {
				atomic.AddUint64(writes, 1)
				opsCounter.WithLabelValues("put", "ok").Inc()
			}
		}
	}
}
