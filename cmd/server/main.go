// Command server wires the full ingestion-to-ledger pipeline together:
// device manager -> stream processor -> hash-chained ledger, fronted by
// a gRPC processStream boundary and a bare health/metrics HTTP endpoint.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/neuroflux/engine/internal/circuitbreaker"
	"github.com/neuroflux/engine/internal/classifiers"
	"github.com/neuroflux/engine/internal/config"
	"github.com/neuroflux/engine/internal/device"
	"github.com/neuroflux/engine/internal/devicemanager"
	"github.com/neuroflux/engine/internal/events"
	"github.com/neuroflux/engine/internal/features"
	"github.com/neuroflux/engine/internal/identity"
	"github.com/neuroflux/engine/internal/ledger"
	"github.com/neuroflux/engine/internal/monitoring"
	"github.com/neuroflux/engine/internal/neural"
	"github.com/neuroflux/engine/internal/storage"
	"github.com/neuroflux/engine/internal/streamproc"
	"github.com/neuroflux/engine/pb"
)

// demoPatientID names the single simulated patient this process streams
// while no real device-pairing/session-admission surface exists yet.
const demoPatientID = "patient-demo"

func main() {
	cfg := config.Get()
	slog.Info("neuroflux engine starting", "env", cfg.Server.Env, "grpc_port", cfg.Server.GRPCPort, "http_port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := monitoring.NewMetrics()
	breakers := circuitbreaker.NewEngineCircuitBreakers()

	bus := buildEventBus(cfg)
	signer, err := ledger.NewRSASigner()
	if err != nil {
		log.Fatalf("generating ledger signing key: %v", err)
	}

	tiers, cursorSource := buildStorageTiers(ctx, cfg)
	processor := ledger.NewProcessor(tiers, metrics, bus.Emit, cfg.Ledger.StrictSignatures)
	led, err := ledger.NewLedger(ctx, processor, signer, cursorSource)
	if err != nil {
		log.Fatalf("starting ledger: %v", err)
	}

	seizurePredictor := classifiers.NewSeizurePredictor()
	registry := buildRegistry(seizurePredictor)
	applyPatientOverride(seizurePredictor, demoPatientID)

	classificationCadenceMs := float64(cfg.Stream.ClassificationCadenceMs)
	streamProcessor := streamproc.NewProcessor(registry, classificationCadenceMs)

	discovery := device.NewDiscoveryService()
	devMgr := devicemanager.NewManager(discovery)
	devMgr.RequireIdentity = cfg.Device.RequireIdentity
	if devMgr.RequireIdentity {
		verifier, err := identity.NewSPIFFEVerifier(cfg.Identity.SocketPath)
		if err != nil {
			slog.Warn("SPIFFE verifier unavailable, continuing without device identity checks", "error", err)
		} else {
			devMgr.SetVerifier(verifier)
		}
	}
	devMgr.RegisterDeviceType("simulator", func(deviceID string) device.Device {
		return device.NewSimulatorDevice(deviceID, []string{"C3", "C4", "CP3", "CP4", "FC3", "FC4", "O1", "O2"}, 256)
	})

	devMgr.SetAggregationCallback(1000, func(deviceID string, batch []neural.SamplePacket) {
		ingestBatch(ctx, led, deviceID, batch)
	})

	sessionID := fmt.Sprintf("session-%d", time.Now().UnixNano())
	if _, err := led.LogSessionCreated(ctx, sessionID, demoPatientID, "sim-1"); err != nil {
		slog.Warn("logging session created", "error", err)
	}

	if _, err := devMgr.AddDevice("sim-1", "simulator"); err != nil {
		log.Fatalf("registering simulator device: %v", err)
	}
	devMgr.SetActiveSession(sessionID)
	wireDeviceCallback(devMgr, streamProcessor, "sim-1")

	if ok, err := devMgr.ConnectDevice("sim-1", device.ConnectOptions{Timeout: 3 * time.Second}, device.ProtocolSerial, ""); !ok || err != nil {
		log.Fatalf("connecting simulator device: %v", err)
	}
	if _, err := led.LogDeviceConnected(ctx, "sim-1", "simulator"); err != nil {
		slog.Warn("logging device connected", "error", err)
	}
	if err := devMgr.StartStreaming("sim-1"); err != nil {
		log.Fatalf("starting simulator stream: %v", err)
	}

	go drainResults(ctx, led, metrics, streamProcessor)

	grpcServer := startGRPCServer(cfg, streamProcessor, breakers)
	httpServer := startHTTPServer(cfg, breakers)

	<-ctx.Done()
	slog.Info("shutting down")

	_ = devMgr.StopStreaming()
	devMgr.FlushAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	_ = led.Close(shutdownCtx)
}

// buildEventBus returns a Pub/Sub-backed bus when configured, else a
// purely in-process one.
func buildEventBus(cfg *config.Config) events.Emitter {
	if !cfg.PubSub.Enabled {
		return events.NewBus()
	}
	bus, err := events.NewPubSubBus(cfg.PubSub.ProjectID, cfg.PubSub.TopicID)
	if err != nil {
		slog.Warn("pubsub bus unavailable, falling back to in-process bus", "error", err)
		return events.NewBus()
	}
	return bus
}

// buildStorageTiers wraps every configured tier in a RetryingTier, wiring
// a Cloud Tasks durable hedge when enabled. The Spanner tier, if present,
// doubles as the ledger's chain-cursor source.
func buildStorageTiers(ctx context.Context, cfg *config.Config) ([]storage.Tier, ledger.CursorSource) {
	var hedge *storage.DurableHedge
	if cfg.CloudTasks.Enabled {
		h, err := storage.NewDurableHedge(ctx, cfg.CloudTasks.ProjectID, cfg.CloudTasks.LocationID, cfg.CloudTasks.QueueID)
		if err != nil {
			slog.Warn("durable hedge unavailable, tier writes will not have a Cloud Tasks fallback", "error", err)
		} else {
			hedge = h
		}
	}

	var tiers []storage.Tier
	var cursor ledger.CursorSource

	redisTier, err := storage.NewRedisTier(cfg.Storage.Redis.Addr, cfg.Storage.Redis.Password, cfg.Storage.Redis.DB)
	if err != nil {
		slog.Warn("redis tier unavailable, row-kv writes will fail until it recovers", "error", err)
	} else {
		tiers = append(tiers, storage.NewRetryingTier(redisTier, hedge))
	}

	if cfg.Storage.Supabase.URL != "" {
		supabaseTier, err := storage.NewSupabaseTier(cfg.Storage.Supabase.URL, cfg.Storage.Supabase.ServiceKey)
		if err != nil {
			slog.Warn("supabase tier unavailable", "error", err)
		} else {
			tiers = append(tiers, storage.NewRetryingTier(supabaseTier, hedge))
		}
	}

	if cfg.Storage.Spanner.ProjectID != "" {
		spannerTier, err := storage.NewSpannerTier(ctx, cfg.Storage.Spanner.ProjectID, cfg.Storage.Spanner.InstanceID, cfg.Storage.Spanner.DatabaseID)
		if err != nil {
			slog.Warn("spanner tier unavailable, chain cursor will start from genesis", "error", err)
		} else {
			tiers = append(tiers, storage.NewRetryingTier(spannerTier, hedge))
			cursor = spannerTier
		}
	}

	return tiers, cursor
}

// buildRegistry mirrors streamproc.DefaultRegistry but keeps a live
// reference to the seizure predictor so the per-patient threshold
// overlay can reach it.
func buildRegistry(seizurePredictor *classifiers.SeizurePredictor) *streamproc.Registry {
	r := streamproc.NewRegistry()
	r.Add("mental_state", features.NewMentalStateExtractor(2000), classifiers.NewMentalStateClassifier())
	r.Add("sleep_stage", features.NewSleepExtractor(), classifiers.NewSleepStageClassifier())
	r.Add("motor_imagery", features.NewMotorImageryExtractor(2000, nil), classifiers.NewMotorImageryClassifier())
	r.Add("seizure", features.NewSeizureExtractor(), seizurePredictor)
	return r
}

// applyPatientOverride loads the optional per-patient config overlay and,
// if one exists for patientID, pushes its seizure-predictor band onto
// the live classifier instance.
func applyPatientOverride(seizurePredictor *classifiers.SeizurePredictor, patientID string) {
	mgr, err := config.NewManager(getEnv("CONFIG_PATH", "config.yaml"), getEnv("PATIENTS_CONFIG_PATH", "patients.yaml"))
	if err != nil {
		slog.Info("no per-patient config overlay loaded, using global seizure thresholds", "error", err)
		return
	}
	if !mgr.HasOverride(patientID) {
		return
	}
	imminent, high, medium := mgr.SeizureThresholds(patientID)
	seizurePredictor.SetPatientThresholds(patientID, classifiers.Thresholds{Imminent: imminent, High: high, Medium: medium})
	slog.Info("applied per-patient seizure threshold override", "patient_id", patientID)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// wireDeviceCallback fans a device's emitted packets out to both the
// ledger's ingestion-hash aggregation window and the stream processor's
// classification pipeline.
func wireDeviceCallback(devMgr *devicemanager.Manager, proc *streamproc.Processor, deviceID string) {
	d := devMgr.GetDevice(deviceID)
	d.SetDataCallback(func(packet neural.SamplePacket) {
		devMgr.Aggregate(deviceID, packet)
		if err := proc.Ingest(packet); err != nil {
			slog.Warn("stream ingestion error", "device_id", deviceID, "error", err)
		}
	})
}

// ingestBatch hashes an aggregated batch of packets and logs a
// DATA_INGESTED event, the ledger's record that this data reached the
// pipeline independent of what any classifier later made of it.
func ingestBatch(ctx context.Context, led *ledger.Ledger, deviceID string, batch []neural.SamplePacket) {
	hash, size := hashBatch(batch)
	sessionID := ""
	if len(batch) > 0 {
		sessionID = batch[0].SessionID
	}
	if _, err := led.LogDataIngested(ctx, sessionID, hash, size); err != nil {
		slog.Warn("logging data ingested", "device_id", deviceID, "error", err)
	}
}

func hashBatch(batch []neural.SamplePacket) (hash string, sizeBytes int) {
	h := sha256.New()
	for _, pkt := range batch {
		for _, row := range pkt.Data {
			for _, v := range row {
				_ = binary.Write(h, binary.LittleEndian, v)
				sizeBytes += 8
			}
		}
	}
	return hex.EncodeToString(h.Sum(nil)), sizeBytes
}

// drainResults consumes every classification result, records it in
// metrics, and logs an ML_INFERENCE audit event for any seizure result
// at HIGH or IMMINENT risk, the one classification outcome clinically
// significant enough to belong in the compliance trail.
func drainResults(ctx context.Context, led *ledger.Ledger, metrics *monitoring.Metrics, proc *streamproc.Processor) {
	for result := range proc.Results() {
		metrics.RecordClassification(string(result.Kind), time.Duration(result.LatencyMs*float64(time.Millisecond)))

		if result.RiskLevel != neural.RiskHigh && result.RiskLevel != neural.RiskImminent {
			continue
		}
		e := ledger.NewEvent(ledger.EventModelInference)
		e.UserID = demoPatientID
		e.Metadata["risk_level"] = string(result.RiskLevel)
		e.Metadata["probability"] = fmt.Sprintf("%.4f", result.Probability)
		if err := led.Log(ctx, e); err != nil {
			slog.Warn("logging seizure risk inference", "error", err)
		}
	}
}

// startGRPCServer exposes the stream processor over the hand-rolled
// processStream RPC, gating new streams on the device-link circuit
// breaker so a gateway already failing to reach devices doesn't also
// accumulate stalled streams here.
func startGRPCServer(cfg *config.Config, proc *streamproc.Processor, breakers *circuitbreaker.EngineCircuitBreakers) *grpc.Server {
	lis, err := net.Listen("tcp", ":"+cfg.Server.GRPCPort)
	if err != nil {
		log.Fatalf("listening on grpc port %s: %v", cfg.Server.GRPCPort, err)
	}

	srv := grpc.NewServer(
		grpc.StreamInterceptor(streamproc.StreamBreakerInterceptor(breakers.Device)),
	)
	pb.RegisterStreamProcessorServer(srv, streamproc.NewGRPCServer(proc))

	go func() {
		slog.Info("processStream gRPC server listening", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			slog.Warn("grpc server stopped", "error", err)
		}
	}()
	return srv
}

// startHTTPServer exposes liveness and Prometheus scrape endpoints. A
// full REST surface is out of scope here; this is the one ambient
// endpoint the ambient stack needs.
func startHTTPServer(cfg *config.Config, breakers *circuitbreaker.EngineCircuitBreakers) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status, detail := breakers.HealthStatus()
		w.Header().Set("Content-Type", "application/json")
		if status != "HEALTHY" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprintf(w, `{"status":%q,"breakers":%q}`, status, fmt.Sprint(detail))
	})
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSec) * time.Second,
	}
	go func() {
		slog.Info("health/metrics server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Warn("http server stopped", "error", err)
		}
	}()
	return srv
}
