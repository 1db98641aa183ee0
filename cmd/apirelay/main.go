package main

import (
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/okanoue/apirelay"
	"github.com/okanoue/apirelay/cache/engine/memcache"
	"github.com/okanoue/apirelay/httpapi"
	"github.com/okanoue/apirelay/quota"
	"github.com/okanoue/apirelay/upstream"
	"github.com/okanoue/apirelay/userstore"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	addr := envOr("LISTEN_ADDR", ":8080")
	baseURL := envOr("UPSTREAM_BASE_URL", "")
	apiKey := os.Getenv("UPSTREAM_API_KEY")
	usersFile := envOr("USERS_FILE", "users.json")
	dailyLimit := envIntOr("DAILY_LIMIT", quota.DefaultDailyLimit)
	cacheTTL := envDurationOr("CACHE_TTL", time.Hour)

	if baseURL == "" {
		logger.Error("UPSTREAM_BASE_URL is required")
		os.Exit(1)
	}

	clientOpts := []upstream.Option{
		upstream.WithHTTPClient(&http.Client{Timeout: 10 * time.Second}),
	}
	if apiKey != "" {
		clientOpts = append(clientOpts, upstream.WithCredential("apikey", apiKey))
	}
	client, err := upstream.NewHTTPClient(baseURL, clientOpts...)
	if err != nil {
		logger.Error("invalid upstream base URL", slog.Any("error", err))
		os.Exit(1)
	}

	users, err := userstore.New(usersFile)
	if err != nil {
		logger.Error("failed to load user store", slog.String("path", usersFile), slog.Any("error", err))
		os.Exit(1)
	}

	relay := apirelay.New(
		memcache.New(),
		quota.New(dailyLimit),
		client,
		apirelay.WithExpiration(cacheTTL),
		apirelay.WithLogger(logger),
	)

	server := httpapi.NewServer(relay, users,
		httpapi.WithLogger(logger),
		httpapi.WithUpstreamInfo(hostOf(baseURL), apiKey != ""),
	)

	logger.Info("relay listening",
		slog.String("addr", addr),
		slog.Int("dailyLimit", dailyLimit),
		slog.Duration("cacheTTL", cacheTTL),
	)
	if err := http.ListenAndServe(addr, server); err != nil {
		logger.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func hostOf(baseURL string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	return u.Host
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func envIntOr(name string, fallback int) int {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDurationOr(name string, fallback time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
