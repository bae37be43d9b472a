package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"cache2k25/internal/checkout"
)

// settings come from the environment (optionally a .env file).
type settings struct {
	APIURL        string
	Timeout       time.Duration
	AdminEmail    string
	AdminPassword string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// loadSettings carries the sample admin pair as a development default only.
func loadSettings() settings {
	s := settings{
		APIURL:        getEnv("FESTCTL_API_URL", "http://localhost:5000"),
		Timeout:       30 * time.Second,
		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@vsmcoe.com"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "vsmcoe2025"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
	}
	if d, err := time.ParseDuration(os.Getenv("FESTCTL_TIMEOUT")); err == nil && d > 0 {
		s.Timeout = d
	}
	if n, err := strconv.Atoi(os.Getenv("REDIS_DB")); err == nil {
		s.RedisDB = n
	}
	return s
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

type app struct {
	cfg     settings
	verbose bool
	now     func() time.Time
	policy  checkout.RetryPolicy
}

func (a *app) logger(cmd *cobra.Command) *zerolog.Logger {
	level := zerolog.WarnLevel
	if a.verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen}).
		Level(level).
		With().Timestamp().Logger()
	return &log
}

func (a *app) client() *checkout.APIClient {
	return checkout.NewAPIClient(a.cfg.APIURL, a.cfg.Timeout)
}

// pendingStore is Redis when configured so payments can be resumed from
// another invocation; otherwise drafts live only as long as the process.
func (a *app) pendingStore(ctx context.Context) (checkout.PendingStore, func(), error) {
	if a.cfg.RedisAddr == "" {
		return checkout.NewMemoryStore(), func() {}, nil
	}
	rdb, err := checkout.NewRedisClient(ctx, a.cfg.RedisAddr, a.cfg.RedisPassword, a.cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	return checkout.NewRedisStore(rdb), func() { _ = rdb.Close() }, nil
}

func newRootCmd(cfg settings) *cobra.Command {
	return (&app{cfg: cfg, now: time.Now, policy: checkout.DefaultRetryPolicy()}).rootCmd()
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "festctl",
		Short:         "CACHE2K25 fest registration client",
		Long:          "festctl lists fest events, registers and pays for them, and opens the admin view.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose output")
	root.PersistentFlags().StringVar(&a.cfg.APIURL, "api", a.cfg.APIURL, "Registration server base URL")

	root.AddCommand(newEventsCmd(a))
	root.AddCommand(newRegisterCmd(a))
	root.AddCommand(newResumeCmd(a))
	root.AddCommand(newAdminCmd(a))
	return root
}
