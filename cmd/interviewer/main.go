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

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/interviewer/internal/evaluation"
	"github.com/pavelanni/interviewer/internal/handler"
	appI18n "github.com/pavelanni/interviewer/internal/i18n"
	"github.com/pavelanni/interviewer/internal/interview"
	"github.com/pavelanni/interviewer/internal/llm"
	"github.com/pavelanni/interviewer/internal/llm/prompts"
	"github.com/pavelanni/interviewer/internal/metrics"
	"github.com/pavelanni/interviewer/internal/model"
	"github.com/pavelanni/interviewer/internal/store"
)

func main() {
	// A missing .env file is fine; real environment variables still apply.
	_ = godotenv.Load()

	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "interviewer",
		Short: "Interview practice backend powered by LLMs",
	}

	serve := serveCmd()
	root.AddCommand(serve, userCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `interviewer --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addLogFlags(cmd *cobra.Command) {
	cmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "interviewer.db", "SQLite database path")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.Duration("llm-timeout", 60*time.Second, "Timeout for a single LLM call")
	f.Int("llm-retries", 2, "Retries after a failed LLM call")
	f.Float64("llm-rps", 0, "Maximum LLM calls per second (0 = unlimited)")
	f.Bool("llm-ping", true, "Check the LLM endpoint on startup")
	f.StringP("lang", "l", "en", "Default language for API messages (en, ru)")
	f.String("base-path", "/api", "URL prefix for the API routes")
	f.StringSlice("cors-origins", []string{"*"}, "Allowed CORS origins (repeatable)")
	f.Int("rate-limit", 30, "Per-IP requests per minute on LLM routes (0 = unlimited)")
	f.Bool("secure-cookies", true, "Set Secure flag on session cookies")
	f.String("admin-password", "", "Initial admin password (or set INTERVIEWER_ADMIN_PASSWORD)")
	addLogFlags(cmd)
	return cmd
}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage candidate accounts",
	}

	add := &cobra.Command{
		Use:   "add",
		Short: "Create a user",
		RunE:  runUserAdd,
	}
	f := add.Flags()
	f.String("db", "interviewer.db", "SQLite database path")
	f.StringP("username", "u", "", "Username (required)")
	f.StringP("password", "p", "", "Password (required)")
	f.String("display-name", "", "Display name (defaults to username)")
	f.String("role", string(model.UserRoleCandidate), "Role (candidate, admin)")
	f.String("resume-file", "", "Plain-text resume to attach")
	addLogFlags(add)
	_ = add.MarkFlagRequired("username")
	_ = add.MarkFlagRequired("password")

	resume := &cobra.Command{
		Use:   "resume",
		Short: "Replace a user's resume text",
		RunE:  runUserResume,
	}
	f = resume.Flags()
	f.String("db", "interviewer.db", "SQLite database path")
	f.StringP("username", "u", "", "Username (required)")
	f.StringP("file", "f", "", "Plain-text resume file, - for stdin (required)")
	addLogFlags(resume)
	_ = resume.MarkFlagRequired("username")
	_ = resume.MarkFlagRequired("file")

	cmd.AddCommand(add, resume)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export interview sessions as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "interviewer.db", "SQLite database path")
	f.StringP("type", "t", "", "Only export one interview type (GD, TECHNICAL, HR)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
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
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("INTERVIEWER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("interviewer")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/interviewer")
	v.AddConfigPath("/etc/interviewer")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// normalizeBasePath returns "" or a path with one leading and no trailing slash.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := seedAdmin(ctx, db, v.GetString("admin-password")); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if err := db.CleanupExpiredSessions(ctx); err != nil {
		slog.Warn("failed to clean up expired auth sessions", "error", err)
	}

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}
	metrics.Init()

	catalog, err := prompts.Default()
	if err != nil {
		return fmt.Errorf("load prompts: %w", err)
	}

	llmClient := llm.New(llm.Config{
		BaseURL:           v.GetString("llm-url"),
		APIKey:            v.GetString("llm-key"),
		Model:             v.GetString("llm-model"),
		Timeout:           v.GetDuration("llm-timeout"),
		MaxRetries:        v.GetInt("llm-retries"),
		RequestsPerSecond: v.GetFloat64("llm-rps"),
	})
	if v.GetBool("llm-ping") {
		if err := llmClient.Ping(ctx); err != nil {
			return fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
	}

	svc := interview.NewService(db, db, llmClient, catalog, evaluation.NewParser(nil))
	cfg := model.ServerConfig{
		BasePath:        normalizeBasePath(v.GetString("base-path")),
		SecureCookies:   v.GetBool("secure-cookies"),
		CORSOrigins:     v.GetStringSlice("cors-origins"),
		RateLimitPerMin: v.GetInt("rate-limit"),
	}
	h := handler.New(db, svc, cfg)

	srv := &http.Server{
		Addr:              v.GetString("addr"),
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("starting server",
		"addr", srv.Addr,
		"model", v.GetString("llm-model"),
		"llm_url", v.GetString("llm-url"),
		"llm_timeout", v.GetDuration("llm-timeout"),
		"lang", lang,
		"base_path", cfg.BasePath,
		"rate_limit", cfg.RateLimitPerMin,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func readResume(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read resume %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func runUserAdd(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	role := model.UserRole(v.GetString("role"))
	if role != model.UserRoleCandidate && role != model.UserRoleAdmin {
		return fmt.Errorf("unknown role %q", role)
	}
	resume, err := readResume(v.GetString("resume-file"))
	if err != nil {
		return err
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(v.GetString("password")), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	username := v.GetString("username")
	displayName := v.GetString("display-name")
	if displayName == "" {
		displayName = username
	}

	id, err := db.CreateUser(ctx, model.User{
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		Role:         role,
		Resume:       resume,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d)\n", username, id)
	return nil
}

func runUserResume(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	resume, err := readResume(v.GetString("file"))
	if err != nil {
		return err
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	username := v.GetString("username")
	user, err := db.GetUserByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("user %q: %w", username, model.ErrNotFound)
	}
	if err := db.UpdateUser(ctx, user.ID, store.UserUpdate{Resume: &resume}); err != nil {
		return fmt.Errorf("update resume: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "updated resume for %s (%d characters)\n", username, len([]rune(resume)))
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)
	ctx := cmd.Context()

	round := model.RoundType(strings.ToUpper(v.GetString("type")))
	if round != "" && !round.Valid() {
		return fmt.Errorf("unknown interview type %q", round)
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	results, err := db.ExportInterviews(ctx, round)
	if err != nil {
		return fmt.Errorf("export interviews: %w", err)
	}

	export := model.InterviewExport{
		ExportedAt: time.Now().UTC(),
		RoundType:  round,
		Count:      len(results),
		Interviews: results,
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = cmd.OutOrStdout()
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	slog.Info("exported interviews", "count", len(results), "type", round)
	return nil
}

func seedAdmin(ctx context.Context, db *store.Store, password string) error {
	count, err := db.UserCount(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if password == "" {
		slog.Warn("no users and no admin password set; create accounts with `interviewer user add`")
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}

	_, err = db.CreateUser(ctx, model.User{
		Username:     "admin",
		DisplayName:  "Administrator",
		PasswordHash: string(hash),
		Role:         model.UserRoleAdmin,
		Active:       true,
	})
	if err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}

	slog.Info("seeded default admin user", "username", "admin")
	return nil
}
