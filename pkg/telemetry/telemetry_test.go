package telemetry

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/starchart/starchart/pkg/manifest"
)

func newTestTelemetry(t *testing.T) (*Telemetry, *bytes.Buffer) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Logging.Format = "json"
	cfg.Logging.Level = "debug"

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		t.Fatalf("NewTracer failed: %v", err)
	}
	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	var buf bytes.Buffer
	return &Telemetry{
		Logger:  NewLoggerTo(&buf, cfg.Logging),
		Tracer:  tracer,
		Metrics: metrics,
		Config:  cfg,
	}, &buf
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "no service name", mutate: func(c *Config) { c.ServiceName = "" }, wantErr: true},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: true},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
		{name: "bad exporter", mutate: func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "jaeger"
		}, wantErr: true},
		{name: "bad sampling", mutate: func(c *Config) { c.Tracing.SamplingRate = 2 }, wantErr: true},
		{name: "ci with endpoint", mutate: func(c *Config) { *c = *CIConfig("localhost:4317") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRecordCompilation_Success(t *testing.T) {
	tel, _ := newTestTelemetry(t)
	ctx := tel.WithContext(context.Background())

	site, err := RecordCompilation(ctx, "starchart.yaml", func() (*manifest.CompiledSite, error) {
		return manifest.Compile(&manifest.SiteConfig{
			Title: "Docs",
			Sidebar: []manifest.NavigationGroup{
				*manifest.Group("Guides",
					manifest.Item("Intro", "intro"),
					manifest.Link("Ext", "https://example.com"),
				),
			},
			Adapter: manifest.AdapterOptions{
				Target:       manifest.TargetNode,
				IncludeFiles: []manifest.AssetIncludeRule{"./src/**", "./src/img/*"},
			},
		})
	})
	if err != nil {
		t.Fatalf("RecordCompilation failed: %v", err)
	}
	if site.Len() != 2 {
		t.Errorf("Expected 2 routes, got %d", site.Len())
	}

	m := tel.Metrics
	if got := testutil.ToFloat64(m.compiles.WithLabelValues(ResultSuccess)); got != 1 {
		t.Errorf("Expected 1 successful compile, got %v", got)
	}
	if got := testutil.ToFloat64(m.routes); got != 2 {
		t.Errorf("Expected routes gauge 2, got %v", got)
	}
	if got := testutil.ToFloat64(m.assetPatterns); got != 2 {
		t.Errorf("Expected asset_patterns gauge 2, got %v", got)
	}
	if got := testutil.ToFloat64(m.assetOverlaps); got != 1 {
		t.Errorf("Expected asset_overlaps gauge 1, got %v", got)
	}
}

func TestRecordCompilation_Failure(t *testing.T) {
	tel, buf := newTestTelemetry(t)
	ctx := tel.WithContext(context.Background())

	_, err := RecordCompilation(ctx, "starchart.yaml", func() (*manifest.CompiledSite, error) {
		return manifest.Compile(&manifest.SiteConfig{
			Title: "Docs",
			Sidebar: []manifest.NavigationGroup{
				*manifest.Group("Guides",
					manifest.Item("A", "same"),
					manifest.Item("B", "same"),
				),
			},
			Adapter: manifest.AdapterOptions{Target: manifest.TargetStatic},
		})
	})
	if manifest.KindOf(err) != manifest.KindDuplicateSlug {
		t.Fatalf("Expected duplicate slug error, got %v", err)
	}

	m := tel.Metrics
	if got := testutil.ToFloat64(m.compiles.WithLabelValues(ResultFailure)); got != 1 {
		t.Errorf("Expected 1 failed compile, got %v", got)
	}
	if got := testutil.ToFloat64(m.configErrors.WithLabelValues("duplicate_slug")); got != 1 {
		t.Errorf("Expected 1 duplicate_slug error, got %v", got)
	}
	if !strings.Contains(buf.String(), "Compilation failed") {
		t.Errorf("Expected a debug log line, got %q", buf.String())
	}
}

func TestRecordCompilation_WithoutTelemetry(t *testing.T) {
	want := errors.New("boom")
	_, err := RecordCompilation(context.Background(), "x", func() (*manifest.CompiledSite, error) {
		return nil, want
	})
	if !errors.Is(err, want) {
		t.Errorf("Expected the compile error to pass through, got %v", err)
	}
}

func TestMetrics_Disabled(t *testing.T) {
	m, err := NewMetrics(MetricsConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}

	// None of these may panic on a disabled collector.
	m.RecordLoad("yaml", nil)
	m.RecordCompile(nil, time.Millisecond, errors.New("x"))
	m.RecordConfigError(errors.New("x"))
	m.RecordPolicyViolation("https-links", "warning")
	m.ObserveLint(time.Millisecond)

	if err := m.StartMetricsServer(context.Background(), zerolog.Nop()); err != nil {
		t.Errorf("StartMetricsServer on disabled metrics should be a no-op: %v", err)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m, err := NewMetrics(DefaultConfig().Metrics)
	if err != nil {
		t.Fatalf("NewMetrics failed: %v", err)
	}
	m.RecordPolicyViolation("https-links", "warning")
	m.RecordLoad("cue", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	for _, want := range []string{
		`starchart_policy_violations_total{policy="https-links",severity="warning"} 1`,
		`starchart_manifest_loads_total{format="cue",result="success"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("Expected %q in metrics output", want)
		}
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, LoggingConfig{Level: "info", Format: "json"})

	logger.NewComponentLogger("loader").WithManifest("docs/starchart.cue", "cue").WithPolicy("slug-format").Info("loaded")
	logger.Debug("hidden")

	out := buf.String()
	for _, want := range []string{`"component":"loader"`, `"manifest":"docs/starchart.cue"`, `"format":"cue"`, `"policy_name":"slug-format"`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %s in %s", want, out)
		}
	}
	if strings.Contains(out, "hidden") {
		t.Error("Debug message should be filtered at info level")
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("debug").String() != "debug" {
		t.Error("Expected debug level")
	}
	if ParseLevel("nonsense").String() != "info" {
		t.Error("Unknown levels should default to info")
	}
}

func TestStartOperation(t *testing.T) {
	ic := StartOperation(context.Background(), "assets.resolve")
	if ic.Span != nil {
		t.Error("Expected no span without telemetry in the context")
	}
	ic.End(nil)

	tel, _ := newTestTelemetry(t)
	ic = StartOperation(tel.WithContext(context.Background()), "assets.resolve", AttrAssetRoot.String("."))
	if ic.Span == nil {
		t.Fatal("Expected a span with telemetry in the context")
	}
	ic.End(errors.New("failed"))
	if TraceID(context.Background()) != "" {
		t.Error("Expected no trace ID without a span")
	}
}
