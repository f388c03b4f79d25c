//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/parla-labs/parla/internal/admin"
	"github.com/parla-labs/parla/internal/api"
	"github.com/parla-labs/parla/internal/auth"
	"github.com/parla-labs/parla/internal/config"
	"github.com/parla-labs/parla/internal/gateway"
	"github.com/parla-labs/parla/internal/providers"
	"github.com/parla-labs/parla/internal/quota"
	"github.com/parla-labs/parla/internal/users"
)

type TestEnv struct {
	Pool        *pgxpool.Pool
	RedisClient *redis.Client
	Server      *httptest.Server
	Store       quota.Store
	UserSvc     *users.Service
	QuotaSvc    *quota.Service

	// ChatReply controls what the stubbed chat provider answers.
	ChatReply func() string
	// TTSFail makes the stubbed TTS provider return 500 while true.
	TTSFail *atomic.Bool
}

var testEnv *TestEnv

func SetupTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if testEnv != nil {
		return testEnv
	}

	ctx := context.Background()

	// Start PostgreSQL container
	pgContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "test",
				"POSTGRES_PASSWORD": "test",
				"POSTGRES_DB":       "parla_test",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() { pgContainer.Terminate(ctx) })

	pgHost, _ := pgContainer.Host(ctx)
	pgPort, _ := pgContainer.MappedPort(ctx, "5432")

	// Start Redis container
	redisContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting redis container: %v", err)
	}
	t.Cleanup(func() { redisContainer.Terminate(ctx) })

	redisHost, _ := redisContainer.Host(ctx)
	redisPort, _ := redisContainer.MappedPort(ctx, "6379")

	// Connect to PostgreSQL
	dsn := fmt.Sprintf("postgres://test:test@%s:%s/parla_test?sslmode=disable", pgHost, pgPort.Port())
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	// Run migrations
	m, err := migrate.New(
		fmt.Sprintf("file://%s", getMigrationsPath()),
		dsn,
	)
	if err != nil {
		t.Fatalf("creating migrator: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("running migrations: %v", err)
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: fmt.Sprintf("%s:%s", redisHost, redisPort.Port()),
	})
	t.Cleanup(func() { redisClient.Close() })

	// Stub providers
	env := &TestEnv{
		ChatReply: func() string { return strings.Repeat("palabra ", 150) },
		TTSFail:   &atomic.Bool{},
	}

	chatStub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": env.ChatReply()}},
			},
		})
	}))
	t.Cleanup(chatStub.Close)

	ttsStub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if env.TTSFail.Load() {
			http.Error(w, "synthesis backend down", http.StatusInternalServerError)
			return
		}
		w.Write([]byte("audio-bytes"))
	}))
	t.Cleanup(ttsStub.Close)

	// Wire services
	userRepo := users.NewRepository(pool)
	userSvc := users.NewService(userRepo, 120)

	jwtManager := auth.NewJWTManager(
		strings.Repeat("a", 32), strings.Repeat("b", 32),
		15*time.Minute, 168*time.Hour,
	)
	authSvc := auth.NewService(jwtManager, redisClient, userSvc)
	authHandler := auth.NewHandler(authSvc, userSvc)

	store := quota.NewStore(pool)
	quotaSvc := quota.NewService(store, nil, 15)

	chatClient := providers.NewChatClient(config.LLMConfig{
		BaseURL: chatStub.URL, Model: "stub", Timeout: 10 * time.Second,
	})
	ttsClient := providers.NewTTSClient(config.TTSConfig{
		BaseURL: ttsStub.URL, Voice: "alloy", Timeout: 10 * time.Second,
	})

	gatewaySvc := gateway.NewService(quotaSvc, chatClient, ttsClient, 500)
	gatewayHandler := gateway.NewHandler(gatewaySvc, quotaSvc, userSvc)
	adminHandler := admin.NewHandler(userSvc, quotaSvc)

	router := api.NewRouter(pool, nil, api.RouterConfig{}, api.HandlerSet{
		Register: authHandler.Register,
		Login:    authHandler.Login,
		Refresh:  authHandler.Refresh,
		Logout:   authHandler.Logout,

		Chat:  gatewayHandler.Chat,
		TTS:   gatewayHandler.TTS,
		Usage: gatewayHandler.Usage,

		SetAllowance: adminHandler.SetAllowance,
		SetTTSLimit:  adminHandler.SetTTSLimit,
		ResetLedger:  adminHandler.ResetLedger,
		GetUserUsage: adminHandler.GetUserUsage,
		ListUsers:    adminHandler.ListUsers,

		AuthMiddleware:  auth.Middleware(authSvc),
		AdminMiddleware: auth.RequireAdmin,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	env.Pool = pool
	env.RedisClient = redisClient
	env.Server = srv
	env.Store = store
	env.UserSvc = userSvc
	env.QuotaSvc = quotaSvc

	testEnv = env
	return env
}

func getMigrationsPath() string {
	_, thisFile, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(thisFile), "..", "..", "migrations")
}

var counter atomic.Int64

func uniqueID() int64 {
	return counter.Add(1)
}

// DoRequest performs an HTTP request against the test server.
func DoRequest(t *testing.T, env *TestEnv, method, path string, body any, token string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, env.Server.URL+path, reader)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("doing request: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// ParseResponse decodes a JSON response body into a generic map.
func ParseResponse(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return result
}

// RegisterUser registers a student and returns nothing; login separately.
func RegisterUser(t *testing.T, env *TestEnv, email, password string) {
	t.Helper()
	resp := DoRequest(t, env, "POST", "/api/v1/auth/register", map[string]string{
		"email": email, "password": password,
	}, "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("registering %s: status %d", email, resp.StatusCode)
	}
}

// LoginUser logs in and returns the access token.
func LoginUser(t *testing.T, env *TestEnv, email, password string) string {
	t.Helper()
	resp := DoRequest(t, env, "POST", "/api/v1/auth/login", map[string]string{
		"email": email, "password": password,
	}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logging in %s: status %d", email, resp.StatusCode)
	}
	result := ParseResponse(t, resp)
	data := result["data"].(map[string]any)
	return data["access_token"].(string)
}
