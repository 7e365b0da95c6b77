package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Bhargav65/Silent-Byte/internal/config"
	"github.com/Bhargav65/Silent-Byte/internal/logging"
	"github.com/Bhargav65/Silent-Byte/internal/registry"
	"github.com/Bhargav65/Silent-Byte/internal/server"
	"github.com/Bhargav65/Silent-Byte/internal/signaling"
	"github.com/Bhargav65/Silent-Byte/internal/store"
)

func main() {
	logging.Init()
	cfg := config.LoadServer()
	ctx := context.Background()

	roomStore, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("store unreachable", "err", err)
		os.Exit(1)
	}
	defer cleanup()

	reg := registry.New(roomStore)
	if err := reg.WarmStart(ctx); err != nil {
		slog.Error("registry warm start failed", "err", err)
		os.Exit(1)
	}

	hub := signaling.NewHub(reg)
	go hub.Run()

	router := server.NewRouter(hub, cfg)

	slog.Info("signaling server listening", "addr", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, router); err != nil {
		slog.Error("server exited", "err", err)
		os.Exit(1)
	}
}

// openStore picks the durable backend: redis when REDIS_URI is set,
// mongo when MONGO_URI is set, in-memory otherwise.
func openStore(ctx context.Context, cfg *config.Server) (store.RoomStore, func(), error) {
	noop := func() {}

	switch {
	case cfg.RedisURI != "":
		opts, err := redis.ParseURL(cfg.RedisURI)
		if err != nil {
			return nil, noop, err
		}
		client := redis.NewClient(opts)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			return nil, noop, err
		}

		slog.Info("room store: redis", "addr", opts.Addr)
		return store.NewRedisStore(client), func() { client.Close() }, nil

	case cfg.MongoURI != "":
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, noop, err
		}

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx, nil); err != nil {
			return nil, noop, err
		}

		slog.Info("room store: mongo", "db", cfg.MongoDB)
		return store.NewMongoStore(client, cfg.MongoDB), func() { client.Disconnect(ctx) }, nil

	default:
		slog.Warn("no REDIS_URI or MONGO_URI set, rooms will not survive restarts")
		return store.NewMemoryStore(), noop, nil
	}
}
