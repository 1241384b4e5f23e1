package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/cloze-lab/ctest/internal/backend"
	"github.com/cloze-lab/ctest/internal/handler"
	appI18n "github.com/cloze-lab/ctest/internal/i18n"
	"github.com/cloze-lab/ctest/internal/model"
	"github.com/cloze-lab/ctest/internal/monitoring"
	"github.com/cloze-lab/ctest/internal/store"
)

//go:generate templ generate

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ctest",
		Short: "Web frontend for authoring, taking and reviewing C-Tests",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd(), inspectCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `ctest --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	f.String("log-file", "", "Also write logs to this file, rotated by size")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP frontend",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("backend-url", "http://localhost:8000", "C-Test backend base URL")
	f.Duration("backend-timeout", 30*time.Second, "Timeout for a single backend call")
	f.String("public-url", "", "Public origin for share links (default: the request origin)")
	f.String("db", "ctest.db", "SQLite database path for the local history")
	f.StringP("lang", "l", "de", "Default UI language (de, en)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /ctest)")
	f.Bool("secure-cookies", true, "Set Secure flag on cookies")
	f.Duration("hint-cooldown", time.Second, "Minimum interval between two hints")
	f.String("redis-url", "", "Redis URL for the page data cache (empty disables caching)")
	f.Duration("cache-ttl", 10*time.Minute, "Lifetime of cached page data")
	f.Float64("generate-rate", 0.2, "Generation requests per second per client (0 disables limiting)")
	f.Int("generate-burst", 5, "Generation request burst per client")
	addLogFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export generated tests and observed submissions",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "ctest.db", "SQLite database path")
	f.String("format", "json", "Output format (json, xlsx)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

func inspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect TEXT_FILE ANSWERS_FILE",
		Short: "Show how a blanked text is split into blanks",
		Long: "Parse a blanked text against its answers JSON (an object mapping blank\n" +
			"index to {answer, length}) and print every blank with its position.",
		Args: cobra.ExactArgs(2),
		RunE: runInspect,
	}
	addLogFlags(cmd)
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	if path := v.GetString("log-file"); path != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     30,
			Compress:   true,
		})
	}

	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(out, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(out, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("CTEST")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("ctest")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/ctest")
	v.AddConfigPath("/etc/ctest")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func normalizeBasePath(p string) string {
	p = strings.TrimRight(p, "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	client := backend.New(v.GetString("backend-url"), v.GetDuration("backend-timeout"))
	if redisURL := v.GetString("redis-url"); redisURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		cache, err := backend.NewRedisCache(ctx, redisURL)
		cancel()
		if err != nil {
			return fmt.Errorf("connect page cache: %w", err)
		}
		defer cache.Close()
		client.WithCache(cache, v.GetDuration("cache-ttl"))
		slog.Info("page data cache enabled", "ttl", v.GetDuration("cache-ttl"))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	monitoring.Init(reg)

	basePath := normalizeBasePath(v.GetString("base-path"))
	cfg := model.AppConfig{
		BasePath:      basePath,
		PublicURL:     v.GetString("public-url"),
		SecureCookies: v.GetBool("secure-cookies"),
		HintCooldown:  v.GetDuration("hint-cooldown"),
		GenerateRate:  v.GetFloat64("generate-rate"),
		GenerateBurst: v.GetInt("generate-burst"),
	}

	h, err := handler.New(client, db, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}
	defer h.Close()

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(monitoring.Middleware)
	r.Use(appI18n.Middleware(lang))

	r.Method(http.MethodGet, "/metrics", monitoring.Handler(reg))

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Group(func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
	}

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server",
			"addr", addr,
			"backend_url", v.GetString("backend-url"),
			"lang", lang,
			"base_path", basePath,
			"hint_cooldown", cfg.HintCooldown,
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	format := strings.ToLower(v.GetString("format"))
	if format != "json" && format != "xlsx" {
		return fmt.Errorf("unknown format %q (want json or xlsx)", format)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportHistory()
	if err != nil {
		return fmt.Errorf("export history: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if format == "xlsx" {
		return store.WriteXLSX(w, export)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	slog.Debug("export written", "tests", len(export.Tests), "output", outPath)
	return nil
}
