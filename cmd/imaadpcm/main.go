package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kulaginds/imaadpcm/internal/config"
	"github.com/kulaginds/imaadpcm/internal/handler"
	"github.com/kulaginds/imaadpcm/internal/logging"
	"github.com/kulaginds/imaadpcm/internal/transcode"
)

const (
	appName    = "IMA ADPCM Codec"
	appVersion = "v1.0.0"
)

// Exit codes
const (
	exitOK      = 0
	exitUsage   = 1
	exitFailure = 2
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout io.Writer) int {
	fs := flag.NewFlagSet("imaadpcm", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	decodeFlag := fs.Bool("decode", false, "decode raw code files to WAVE instead of encoding")
	batchFlag := fs.Bool("batch", false, "treat arguments as input/output pairs converted concurrently")
	serveFlag := fs.Bool("serve", false, "run the HTTP transcoding server")
	channelsFlag := fs.Int("channels", 0, "channel count of raw code input (1, 2, 4)")
	rateFlag := fs.Int("rate", 0, "sample rate of raw code input")
	workersFlag := fs.Int("workers", 0, "concurrent conversions in batch mode")
	configFlag := fs.String("config", "", "YAML configuration file")
	hostFlag := fs.String("host", "", "server listen host")
	portFlag := fs.String("port", "", "server listen port")
	logLevelFlag := fs.String("log-level", "", "log level (debug, info, warn, error)")
	helpFlag := fs.Bool("help", false, "show help")
	versionFlag := fs.Bool("version", false, "show version")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(stdout, "error: %v\n", err)
		showHelp(stdout)
		return exitUsage
	}

	if *helpFlag {
		showHelp(stdout)
		return exitOK
	}

	if *versionFlag {
		showVersion(stdout)
		return exitOK
	}

	opts := config.LoadOptions{
		Host:       strings.TrimSpace(*hostFlag),
		Port:       strings.TrimSpace(*portFlag),
		LogLevel:   strings.TrimSpace(*logLevelFlag),
		ConfigFile: strings.TrimSpace(*configFlag),
		Channels:   *channelsFlag,
		SampleRate: *rateFlag,
		Workers:    *workersFlag,
	}

	cfg, err := config.LoadWithOverrides(opts)
	if err != nil {
		fmt.Fprintf(stdout, "failed to load config: %v\n", err)
		return exitUsage
	}

	closeLog, err := setupLogging(cfg.Logging)
	if err != nil {
		fmt.Fprintf(stdout, "failed to set up logging: %v\n", err)
		return exitFailure
	}
	defer closeLog()

	if *serveFlag {
		if err := serve(ctx, cfg); err != nil {
			logging.Error("server: %v", err)
			return exitFailure
		}
		return exitOK
	}

	mode := transcode.ModeEncode
	if *decodeFlag {
		mode = transcode.ModeDecode
	}

	jobs, err := buildJobs(fs.Args(), mode, cfg.Codec, *batchFlag)
	if err != nil {
		fmt.Fprintf(stdout, "error: %v\n", err)
		showHelp(stdout)
		return exitUsage
	}

	start := time.Now()
	results, err := transcode.Batch(ctx, jobs, cfg.Batch.Workers)
	for _, res := range results {
		if res != nil {
			fmt.Fprintf(stdout, "%s %s -> %s: %d samples, %d code bytes\n",
				res.Job.Mode, res.Job.Input, res.Job.Output, res.Samples, res.CodeBytes)
		}
	}
	if err != nil {
		logging.Error("%v", err)
		return exitFailure
	}
	logging.Elapsed("conversion", start)

	return exitOK
}

// buildJobs pairs positional arguments into jobs. Without batch mode exactly
// one pair is accepted.
func buildJobs(args []string, mode transcode.Mode, codec config.CodecConfig, batch bool) ([]transcode.Job, error) {
	if len(args) < 2 || len(args)%2 != 0 {
		return nil, fmt.Errorf("expected <input> <output> pairs, got %d arguments", len(args))
	}
	if !batch && len(args) != 2 {
		return nil, fmt.Errorf("more than one input/output pair requires -batch")
	}

	jobs := make([]transcode.Job, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		jobs = append(jobs, transcode.Job{
			Mode:       mode,
			Input:      args[i],
			Output:     args[i+1],
			Channels:   codec.Channels,
			SampleRate: codec.SampleRate,
		})
	}
	return jobs, nil
}

func serve(ctx context.Context, cfg *config.Config) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	h, err := handler.New(cfg, handler.NewMetrics(reg))
	if err != nil {
		return err
	}
	defer h.Close()

	server := createServer(cfg, h, reg)
	logging.Info("starting server on %s (channels=%d rate=%d)", server.Addr, cfg.Codec.Channels, cfg.Codec.SampleRate)

	errCh := make(chan error, 1)
	go func() {
		errCh <- startServer(server)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func createServer(cfg *config.Config, h *handler.Handler, reg *prometheus.Registry) *http.Server {
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var next http.Handler = mux
	next = corsMiddleware(next, cfg.Server.AllowedOrigins)
	next = securityHeadersMiddleware(next)
	next = requestLoggingMiddleware(next)

	return &http.Server{
		Addr:         addr,
		Handler:      next,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; connect-src 'self' ws: wss:")

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler, allowedOrigins []string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if isOriginAllowed(origin, allowedOrigins, r.Host) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Encoding, X-Request-ID")
			w.Header().Set("Access-Control-Expose-Headers", strings.Join([]string{
				handler.HeaderChannels, handler.HeaderSampleRate, handler.HeaderByteRate,
				handler.HeaderBlockAlign, handler.HeaderDropped, "X-Request-ID",
			}, ", "))
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isOriginAllowed(origin string, allowedOrigins []string, host string) bool {
	if origin == "" {
		return false
	}

	for _, allowed := range allowedOrigins {
		if strings.TrimSpace(allowed) == origin {
			return true
		}
	}

	if len(allowedOrigins) == 0 {
		u, err := url.Parse(origin)
		return err == nil && u.Host != "" && u.Host == host
	}

	return false
}

// statusRecorder captures the response status for the request log
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack lets websocket upgrades pass through the request log.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

func requestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		id := r.Header.Get("X-Request-ID")
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logging.Info("%s %s %s %s %d %s", id, r.RemoteAddr, r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

func setupLogging(cfg config.LoggingConfig) (func(), error) {
	logging.SetLevelFromString(cfg.Level)
	logging.SetFormat(cfg.Format)

	if cfg.File == "" {
		logging.SetOutput(os.Stderr)
		return func() {}, nil
	}

	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logging.SetOutput(f)
	return func() {
		logging.SetOutput(os.Stderr)
		_ = f.Close()
	}, nil
}

func startServer(server *http.Server) error {
	if server == nil {
		return fmt.Errorf("server is nil")
	}

	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

func showHelp(w io.Writer) {
	fmt.Fprintln(w, appName)
	fmt.Fprintln(w, "USAGE: imaadpcm [options] <input> <output> [<input> <output> ...]")
	fmt.Fprintln(w, "OPTIONS:")
	fmt.Fprintln(w, "  -decode             Decode raw code files to 16-bit PCM WAVE (default: encode WAVE)")
	fmt.Fprintln(w, "  -channels           Channel count of raw code input: 1, 2 or 4 (default 2)")
	fmt.Fprintln(w, "  -rate               Sample rate of raw code input (default 22050)")
	fmt.Fprintln(w, "  -batch              Convert several input/output pairs concurrently")
	fmt.Fprintln(w, "  -workers            Concurrent conversions in batch mode (default: CPU count)")
	fmt.Fprintln(w, "  -serve              Run the HTTP/websocket transcoding server")
	fmt.Fprintln(w, "  -host               Set server listen host (default 0.0.0.0)")
	fmt.Fprintln(w, "  -port               Set server listen port (default 8080)")
	fmt.Fprintln(w, "  -config             Load settings from a YAML file")
	fmt.Fprintln(w, "  -log-level          Set log level (debug, info, warn, error)")
	fmt.Fprintln(w, "  -version            Show version information")
	fmt.Fprintln(w, "  -help               Show this help message")
	fmt.Fprintln(w, "ENVIRONMENT VARIABLES: SERVER_HOST, SERVER_PORT, CODEC_CHANNELS, CODEC_SAMPLE_RATE, BATCH_WORKERS, LOG_LEVEL, LOG_FORMAT, LOG_FILE")
	fmt.Fprintln(w, "EXAMPLES: imaadpcm music.wav music.adpcm")
	fmt.Fprintln(w, "          imaadpcm -decode -channels 4 -rate 44100 music.adpcm music.wav")
}

func showVersion(w io.Writer) {
	fmt.Fprintf(w, "%s %s\n", appName, appVersion)
	fmt.Fprintln(w, "Formats: 16-bit PCM WAVE <-> IMA ADPCM (DVI4) mono, stereo, quad")
}
