// Command server runs the crabcache TCP cache and its admin HTTP surface.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/RogerFelipeNsk/crabcache/admin"
	"github.com/RogerFelipeNsk/crabcache/config"
	"github.com/RogerFelipeNsk/crabcache/internal/util"
	"github.com/RogerFelipeNsk/crabcache/server"
	"github.com/RogerFelipeNsk/crabcache/store"
)

func main() {
	os.Exit(run())
}

// run builds the config from flags, starts the listener and admin surface,
// and blocks until a shutdown signal or a fatal error. It returns the exit
// code spec §6 defines: 0 normal shutdown, 1 configuration error, 2 fatal
// runtime error.
func run() int {
	def := config.Default()

	var (
		bindAddr = flag.String("bind_addr", def.BindAddr, "TCP address to listen on")
		// Default picked from GOMAXPROCS the same way the teacher's cache.New
		// auto-sizes shards when the caller doesn't pin a count.
		numShards     = flag.Int("num_shards", util.ReasonableShardCount(), "number of shards")
		bytesPerShard = flag.Int64("bytes_per_shard", def.BytesPerShard, "memory budget per shard, in bytes")

		windowRatio   = flag.Float64("window_ratio", def.WindowRatio, "fraction of shard capacity given to the window LRU")
		sketchWidth   = flag.Int("sketch_width", def.SketchWidth, "count-min sketch width")
		sketchDepth   = flag.Int("sketch_depth", def.SketchDepth, "count-min sketch depth")
		highWatermark = flag.Float64("high_watermark", def.HighWatermark, "pressure ratio that enters Critical state")
		lowWatermark  = flag.Float64("low_watermark", def.LowWatermark, "pressure ratio that exits Critical state")

		evictionStrategy    = flag.String("eviction_strategy", string(def.EvictionStrategy), "Gradual or Batch")
		batchSize           = flag.Int("batch_size", def.BatchSize, "evictions per batch under Batch strategy")
		minItemsThreshold   = flag.Int("min_items_threshold", def.MinItemsThreshold, "eviction floor, in resident keys")
		admissionMultiplier = flag.Float64("admission_multiplier", def.AdmissionMultiplier, "TinyLFU admission bias")

		enableWAL         = flag.Bool("enable_wal", def.EnableWAL, "enable write-ahead logging")
		walDir            = flag.String("wal_dir", def.WALDir, "write-ahead log directory")
		walMaxSegmentSize = flag.Int64("wal_max_segment_size", def.WALMaxSegmentSize, "max bytes per WAL segment before rotation")
		walSyncPolicy     = flag.String("wal_sync_policy", string(def.WALSyncPolicy), "None, Async or Sync")
		walFlushInterval  = flag.Duration("wal_flush_interval", def.WALFlushInterval, "background flush interval under Async")

		maxBatchSize             = flag.Int("max_batch_size", def.MaxBatchSize, "max pipelined commands per batch, 1..1000")
		connectionTimeoutSeconds = flag.Int("connection_timeout_seconds", def.ConnectionTimeoutSeconds, "idle connection timeout, in seconds")
		maxConnections           = flag.Int("max_connections", def.MaxConnections, "max concurrent TCP connections")
		bufferSize               = flag.Int("buffer_size", def.BufferSize, "per-connection read buffer size, in bytes")

		tickIntervalMS = flag.Int("tick_interval_ms", def.TickIntervalMS, "TTL wheel tick interval, in milliseconds")
		slotWidth      = flag.Duration("slot_width", def.SlotWidth, "TTL wheel slot width")
		horizon        = flag.Duration("horizon", def.Horizon, "TTL wheel horizon before a key spills to the overflow bucket")

		adminAddr = flag.String("admin_addr", ":9090", "admin HTTP address (/health, /metrics, /dashboard)")
	)
	flag.Parse()

	cfg := config.Config{
		NumShards:     *numShards,
		BytesPerShard: *bytesPerShard,

		WindowRatio:   *windowRatio,
		SketchWidth:   *sketchWidth,
		SketchDepth:   *sketchDepth,
		HighWatermark: *highWatermark,
		LowWatermark:  *lowWatermark,

		EvictionStrategy:    config.EvictionStrategy(*evictionStrategy),
		BatchSize:           *batchSize,
		MinItemsThreshold:   *minItemsThreshold,
		AdmissionMultiplier: *admissionMultiplier,

		EnableWAL:         *enableWAL,
		WALDir:            *walDir,
		WALMaxSegmentSize: *walMaxSegmentSize,
		WALSyncPolicy:     config.WALSyncPolicy(*walSyncPolicy),
		WALFlushInterval:  *walFlushInterval,

		MaxBatchSize:             *maxBatchSize,
		ConnectionTimeoutSeconds: *connectionTimeoutSeconds,
		MaxConnections:           *maxConnections,
		BufferSize:               *bufferSize,

		TickIntervalMS: *tickIntervalMS,
		SlotWidth:      *slotWidth,
		Horizon:        *horizon,

		BindAddr: *bindAddr,
	}

	if err := cfg.Validate(); err != nil {
		log.Printf("config: %v", err)
		return 1
	}

	mgr, err := store.Open(cfg)
	if err != nil {
		log.Printf("store: failed to open: %v", err)
		return 1
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			log.Printf("store: close: %v", err)
		}
	}()

	ln, err := server.NewListener(cfg, mgr)
	if err != nil {
		log.Printf("server: failed to bind %s: %v", cfg.BindAddr, err)
		return 2
	}
	log.Printf("server: listening on %s", ln.Addr())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() { serveErr <- ln.Serve(ctx) }()

	adminSrv := &http.Server{
		Addr:    *adminAddr,
		Handler: admin.NewMux(mgr, "crabcache", "server"),
	}
	go func() {
		log.Printf("admin: listening on %s", *adminAddr)
		if err := adminSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("admin: %v", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Printf("server: shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			log.Printf("server: accept loop exited: %v", err)
			return 2
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = adminSrv.Shutdown(shutdownCtx)
	_ = ln.Close()

	log.Printf("server: shutdown complete")
	return 0
}
