package cfg

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/keithlinneman/contentd/internal/log"
)

type App struct {
	LogJSON         bool
	LogLevel        string
	StacktraceLevel string

	HTTPPort  int
	AdminPort int

	// ContentRoot is the local directory to scan. Ignored when bundle
	// fetching is enabled; the extracted bundle becomes the root.
	ContentRoot     string
	TemplateExt     string
	BlockingWorkers int

	RateRPS   float64
	RateBurst int

	EnablePprof     bool
	EnablePyroscope bool
	EnableTracing   bool
	PyroServer      string
	PyroTenantID    string
	OTLPEndpoint    string
	TraceSample     float64

	EnableBundleFetch   bool
	BundleSSMParam      string
	BundleS3Bucket      string
	BundleS3Prefix      string
	BundleSigningKeyARN string
	BundleExtractDir    string
}

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.IntVar(&c.HTTPPort, "http-port", 8080, "listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "admin listen TCP port (1..65535)")
	fs.StringVar(&c.ContentRoot, "content-root", "", "directory to scan for content files")
	fs.StringVar(&c.TemplateExt, "template-ext", "tmpl", "filename extension marking template files")
	fs.IntVar(&c.BlockingWorkers, "blocking-workers", 16, "workers for offloaded file and process reads (1..1024)")
	fs.Float64Var(&c.RateRPS, "rate-rps", 50, "per-client request rate limit (0 disables)")
	fs.IntVar(&c.RateBurst, "rate-burst", 100, "per-client burst allowance")
	fs.BoolVar(&c.EnablePprof, "enable-pprof", true, "Enable pprof profiling (on admin port only)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")
	fs.BoolVar(&c.EnableBundleFetch, "enable-bundle-fetch", false, "fetch the content tree as a bundle from S3/SSM instead of scanning content-root")
	fs.StringVar(&c.BundleSSMParam, "bundle-ssm-param", "", "ssm parameter name holding the current bundle hash")
	fs.StringVar(&c.BundleS3Bucket, "bundle-s3-bucket", "", "s3 bucket name to get content bundles from")
	fs.StringVar(&c.BundleS3Prefix, "bundle-s3-prefix", "", "s3 prefix (key) to get content bundles from")
	fs.StringVar(&c.BundleSigningKeyARN, "bundle-signing-key-arn", "", "KMS key ARN for bundle signature verification (empty skips verification)")
	fs.StringVar(&c.BundleExtractDir, "bundle-extract-dir", "", "directory to extract fetched bundles into (temp dir when empty)")
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := prefix + strings.ReplaceAll(strings.ToUpper(f.Name), "-", "_")
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value %q overrides env %s=%q", f.Name, f.Value.String(), key, envVal)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, envVal, err)
			}
		}
	})
}

// Validate checks that config values are within expected ranges and formats.
// Returns an error describing all invalid fields, or nil if all valid.
func Validate(c App) error {
	var errs []error

	// Ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort))
	}
	if c.AdminPort < 1 || c.AdminPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid ADMIN_PORT %d (must be 1..65535)", c.AdminPort))
	}
	if c.AdminPort == c.HTTPPort {
		errs = append(errs, fmt.Errorf("ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort))
	}

	// Log levels
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}

	// Content source: exactly one of local root or bundle fetch
	if c.EnableBundleFetch {
		if c.BundleSSMParam == "" {
			errs = append(errs, fmt.Errorf("BUNDLE_SSM_PARAM required when ENABLE_BUNDLE_FETCH=true"))
		}
		if c.BundleS3Bucket == "" {
			errs = append(errs, fmt.Errorf("BUNDLE_S3_BUCKET required when ENABLE_BUNDLE_FETCH=true"))
		}
	} else if c.ContentRoot == "" {
		errs = append(errs, fmt.Errorf("CONTENT_ROOT is required (or enable bundle fetch)"))
	}

	if c.TemplateExt == "" || strings.ContainsAny(c.TemplateExt, "./") {
		errs = append(errs, fmt.Errorf("invalid TEMPLATE_EXT %q (bare extension, no dot)", c.TemplateExt))
	}

	if c.BlockingWorkers < 1 || c.BlockingWorkers > 1024 {
		errs = append(errs, fmt.Errorf("BLOCKING_WORKERS must be 1..1024 (got %d)", c.BlockingWorkers))
	}

	if c.RateRPS < 0 {
		errs = append(errs, fmt.Errorf("RATE_RPS must be >= 0 (got %.3f)", c.RateRPS))
	}
	if c.RateRPS > 0 && c.RateBurst < 1 {
		errs = append(errs, fmt.Errorf("RATE_BURST must be >= 1 when rate limiting is enabled (got %d)", c.RateBurst))
	}

	// Tracing sample
	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}

	// Pyroscope (URL and scheme)
	if c.EnablePyroscope {
		if c.PyroServer == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER required when ENABLE_PYROSCOPE=true"))
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER must be a URL (got %q)", c.PyroServer))
		}
		if c.PyroTenantID == "" {
			errs = append(errs, fmt.Errorf("PYRO_TENANT required when ENABLE_PYROSCOPE=true"))
		}
	}

	// OTLP tracing (grpc exporter wants host:port, no scheme)
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
