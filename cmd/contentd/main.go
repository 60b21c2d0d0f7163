package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"

	"github.com/keithlinneman/contentd/internal/body"
	"github.com/keithlinneman/contentd/internal/bundle"
	"github.com/keithlinneman/contentd/internal/cfg"
	"github.com/keithlinneman/contentd/internal/content"
	"github.com/keithlinneman/contentd/internal/engine"
	"github.com/keithlinneman/contentd/internal/health"
	"github.com/keithlinneman/contentd/internal/httpserver"
	"github.com/keithlinneman/contentd/internal/log"
	"github.com/keithlinneman/contentd/internal/metrics"
	"github.com/keithlinneman/contentd/internal/opshttp"
	"github.com/keithlinneman/contentd/internal/otelx"
	"github.com/keithlinneman/contentd/internal/prof"
	"github.com/keithlinneman/contentd/internal/ratelimit"
	v "github.com/keithlinneman/contentd/internal/version"
	"github.com/keithlinneman/contentd/internal/xerrors"
)

// treeInfo feeds the X-Content-Bundle-Version and X-Content-Hash headers.
type treeInfo struct {
	version string
	hash    string
}

func (t treeInfo) ContentVersion() string { return t.version }
func (t treeInfo) ContentHash() string    { return t.hash }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	// Parse config from flags and env
	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf(
			"%s %s (commit=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.AppName, vi.Version, vi.Commit, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		os.Exit(0)
	}

	// Fill in config from environment variables with prefix CONTENTD_ and validate
	cfg.FillFromEnv(flag.CommandLine, "CONTENTD_", func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	// Setup logging
	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v\n", conf.LogLevel, err)
		os.Exit(1)
	}
	stackLvl, err := log.ParseLevel(conf.StacktraceLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid stacktrace level %s: %v\n", conf.StacktraceLevel, err)
		os.Exit(1)
	}
	lg, err := log.New(log.Options{
		App:             v.AppName,
		Level:           lvl,
		StacktraceLevel: stackLvl,
		JsonFormat:      conf.LogJSON,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	// no-op for slog/stderr, but here if we swap backends in the future to ensure any buffered logs are flushed on shutdown
	defer lg.Sync()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_date", vi.BuildDate,
		"go_version", vi.GoVersion,
		"vcs_dirty", vi.VCSDirty,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"content_root", conf.ContentRoot,
		"template_ext", conf.TemplateExt,
		"blocking_workers", conf.BlockingWorkers,
		"rate_rps", conf.RateRPS,
		"rate_burst", conf.RateBurst,
		"enable_pprof", conf.EnablePprof,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_tracing", conf.EnableTracing,
		"enable_bundle_fetch", conf.EnableBundleFetch,
		"otlp_endpoint", conf.OTLPEndpoint,
		"pyro_server", conf.PyroServer,
		"pyro_tenant", conf.PyroTenantID,
		"trace_sample", conf.TraceSample,
		"bundle_ssm_param", conf.BundleSSMParam,
		"bundle_s3_bucket", conf.BundleS3Bucket,
		"bundle_s3_prefix", conf.BundleS3Prefix,
		"bundle_signing_key_arn", conf.BundleSigningKeyARN,
	)

	// Setup pyroscope profiling
	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		AuthToken:     "",
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"app":       v.AppName,
			"component": "server",
			"version":   vi.Version,
			"commit":    vi.Commit,
			"source":    "go-agent",
		},
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	defer func() { stopProf() }()

	// Setup otel for tracing
	// Insecure is true because we are only writing to a collector on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  true,
		Sample:    conf.TraceSample,
		Service:   v.AppName,
		Component: "server",
		Version:   vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, "server", &vi)
	m.SetProfilingActive(conf.EnablePyroscope)

	// Worker pool for the blocking reads behind file and process bodies
	pool := body.NewPool(conf.BlockingWorkers)
	defer pool.Close()

	// Resolve the content tree: either fetch a bundle from S3/SSM or use
	// the local directory as-is.
	treeRoot := conf.ContentRoot
	info := treeInfo{version: "local"}
	if conf.EnableBundleFetch {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			L.Error(ctx, err, "failed to load AWS config")
			os.Exit(1)
		}
		loader, err := bundle.NewLoader(ctx, bundle.Options{
			Logger:     L,
			SSMParam:   conf.BundleSSMParam,
			S3Bucket:   conf.BundleS3Bucket,
			S3Prefix:   conf.BundleS3Prefix,
			KMSKeyARN:  conf.BundleSigningKeyARN,
			ExtractDir: conf.BundleExtractDir,
			AWSConfig:  &awsCfg,
		})
		if err != nil {
			L.Error(ctx, err, "failed to create bundle loader")
			os.Exit(1)
		}
		hash, err := loader.CurrentHash(ctx)
		if err != nil {
			L.Error(ctx, err, "failed to resolve current bundle hash")
			os.Exit(1)
		}
		fetchStart := time.Now()
		treeRoot, err = loader.FetchHash(ctx, hash)
		if err != nil {
			// content is the whole point of this process, fail early so
			// systemd restarts us instead of serving nothing
			L.Error(ctx, err, "failed to fetch content bundle", "hash", hash)
			os.Exit(1)
		}
		m.ObserveBundleLoadDuration(time.Since(fetchStart).Seconds())
		m.SetContentBundle(hash)
		info = treeInfo{version: hash, hash: hash}
		L.Info(ctx, "fetched content bundle",
			"hash", hash,
			"tree_root", treeRoot,
			"duration", time.Since(fetchStart),
		)
	}

	files, err := content.ScanDir(treeRoot)
	if err != nil {
		L.Error(ctx, err, "failed to scan content tree", "tree_root", treeRoot)
		os.Exit(1)
	}

	eng, err := engine.New(engine.Options{
		Logger:          L,
		Files:           files,
		Pool:            pool,
		TemplateExt:     conf.TemplateExt,
		OnRenderFailure: m.IncRenderFailure,
	})
	if err != nil {
		L.Error(ctx, err, "failed to load content engine", "tree_root", treeRoot)
		os.Exit(1)
	}
	defer eng.Close()

	m.SetContentRoutes(eng.Routes())
	m.SetContentLoadedTimestamp(time.Now())
	L.Info(ctx, "content engine loaded", "routes", eng.Routes(), "tree_root", treeRoot)

	// setup toggle for server shutdown; readiness also requires a loaded tree
	var gate health.ShutdownGate
	readiness := health.All(
		gate.Probe(),
		health.CheckFunc(func(context.Context) error {
			if eng.Routes() == 0 {
				return xerrors.New("no content routes loaded")
			}
			return nil
		}),
	)

	// Rate limiter middleware for the content listener
	limiter := ratelimit.New(ctx,
		ratelimit.WithRate(conf.RateRPS, conf.RateBurst),
		// increment prometheus counter on each denied request
		ratelimit.WithOnDenied(func(ip string) {
			m.IncRateLimitDenied()
		}),
		// only log the first time an ip is denied each time it is cleaned from the bucket
		ratelimit.WithOnFirstDenied(func(ip string) {
			L.Warn(ctx, "rate limit triggered", "ip", ip)
		}),
		ratelimit.WithOnCapacity(func() {
			m.IncRateLimitCapacity()
			L.Warn(ctx, "rate limit capacity reached, rejecting new visitors until some are evicted")
		}),
	)

	httpOpts := &httpserver.Options{
		Logger:       L,
		Port:         conf.HTTPPort,
		Engine:       eng,
		Metrics:      m,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		ContentInfo:  info,
	}
	if conf.RateRPS > 0 {
		httpOpts.RateLimitMW = limiter.Middleware
	}

	contentHTTPStop, err := httpserver.Start(ctx, httpOpts)
	if err != nil {
		L.Error(ctx, err, "failed to start content http listener")
		os.Exit(1)
	}
	defer func() { _ = contentHTTPStop(context.Background()) }()

	// admin/ops listener for metrics, health checks, pprof and the content index
	// sg restricts inbound to internal monitoring infrastructure
	opsHTTPStop, err := opshttp.Start(ctx, L, opshttp.Options{
		Port:        conf.AdminPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      health.Fixed(true, ""),
		Readiness:   readiness,
		Index:       eng.Index(),
		OnPanic:     m.IncHttpPanic,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		os.Exit(1)
	}
	defer func() { _ = opsHTTPStop(context.Background()) }()

	// notify systemd that we started successfully if started under systemd
	if err := notifySystemd(); err != nil {
		// log and dont exit, worst case systemd will kill the process after timeout
		L.Warn(ctx, "failed to notify systemd of readiness", "error", err)
	}

	// block until signal so we dont exit
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	L.Info(context.Background(), "shutdown signal received")

	// fail readiness to drain connections
	gate.Set("draining")
	L.Info(context.Background(), "shutdown gate closed")

	L.Info(context.Background(), "sleeping 30s for in-flight and load balancer health checks to drain")
	forceCh := make(chan os.Signal, 1)
	signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
	select {
	case <-time.After(30 * time.Second):
		L.Info(context.Background(), "drain period complete")
	case <-forceCh:
		L.Warn(context.Background(), "second signal received, skipping drain")
	}
	signal.Stop(forceCh)

	if err := contentHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "content http server shutdown")
	}

	if err := opsHTTPStop(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "ops http server shutdown")
	}

	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(context.Background(), err, "otel shutdown")
	}

	stopProf()

	L.Info(context.Background(), "shutdown complete")
	os.Exit(0)
}

func notifySystemd() error {
	// systemd will set NOTIFY_SOCKET to a unix socket path if we were started under systemd with type=notify
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set, skipping systemd notify")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify failed: dial failed: %w", err)
	}
	conn.Write([]byte("READY=1"))
	if err := conn.Close(); err != nil {
		return fmt.Errorf("systemd notify failed: close failed: %w", err)
	}
	return nil
}
