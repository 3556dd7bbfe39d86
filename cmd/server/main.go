package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"idledger/internal/admin"
	"idledger/internal/audit"
	"idledger/internal/authz"
	"idledger/internal/events"
	"idledger/internal/gateway"
	"idledger/internal/keys"
	"idledger/internal/ledger/contract"
	"idledger/internal/ledger/state"
	"idledger/internal/metrics"
	"idledger/internal/offchain"
	"idledger/internal/platform/config"
	"idledger/internal/platform/httpserver"
	"idledger/internal/platform/logger"
	platformredis "idledger/internal/platform/redis"
	httptransport "idledger/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps
// the server lifecycle small. Business logic lives in internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	encKey, err := cfg.EncryptionKey()
	if err != nil {
		log.Error("decode encryption key", "error", err)
		os.Exit(1)
	}
	hmacSecret, err := cfg.HMACSecret()
	if err != nil {
		log.Error("decode HMAC secret", "error", err)
		os.Exit(1)
	}
	keySvc := keys.NewService(keys.WithEncryptionKey(encKey), keys.WithHMACSecret(hmacSecret))
	if err := keySvc.ValidateKeyConfiguration().Err(); err != nil {
		log.Error("key configuration invalid", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Stores: Redis when configured, in-memory otherwise. Postgres, when
	// configured, takes over the off-chain mappings.
	var (
		stateStore    state.Store    = state.NewMemoryStore()
		offchainStore offchain.Store = offchain.NewMemoryStore()
	)
	redisClient, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		stateStore = state.NewRedisStore(redisClient.Client, "idledger")
		offchainStore = offchain.NewRedisStore(redisClient.Client)
		log.Info("redis stores enabled")
	}
	if cfg.Postgres.DSN != "" {
		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			log.Error("postgres open failed", "error", err)
			os.Exit(1)
		}
		if err := db.PingContext(ctx); err != nil {
			log.Error("postgres ping failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		offchainStore = offchain.NewPostgresStore(db)
		log.Info("postgres off-chain store enabled")
	}

	var sink events.Sink
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := events.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("kafka connection failed", "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sink = kafkaSink
		log.Info("kafka event sink enabled", "topic", cfg.Kafka.Topic)
	} else {
		bus := events.NewBus(log)
		go func() {
			for event := range bus.Subscribe() {
				log.Debug("ledger event", "type", event.Type, "asset_id", event.AssetID, "tx_id", event.TxID)
			}
		}()
		sink = bus
	}

	// Roles are provisioned out of band; the default binding covers the
	// bootstrap identity.
	checker := authz.NewRoleChecker(map[string][]authz.Role{
		cfg.IdentityLabel: {authz.RoleIssuer},
	})

	identityContract := contract.New(stateStore, keySvc, checker,
		contract.WithEventSink(sink),
		contract.WithLogger(log),
	)

	wallet, err := gateway.NewFileSystemWallet(cfg.WalletDir)
	if err != nil {
		log.Error("open wallet", "dir", cfg.WalletDir, "error", err)
		os.Exit(1)
	}
	if !wallet.Exists(cfg.IdentityLabel) {
		// Bootstrap a development identity so a fresh checkout starts.
		if err := wallet.Put(gateway.Identity{Label: cfg.IdentityLabel, MSPID: "Org1MSP"}); err != nil {
			log.Error("bootstrap wallet identity", "error", err)
			os.Exit(1)
		}
	}

	client := gateway.NewClient(gateway.InvokerFunc(identityContract.Dispatch), gateway.WithLogger(log))
	if err := client.Connect(gateway.NetworkConfig{
		Network:        cfg.Network,
		Contract:       cfg.Contract,
		RequestTimeout: cfg.RequestTimeout,
		MaxRetries:     cfg.MaxRetries,
	}, wallet, cfg.IdentityLabel); err != nil {
		log.Error("gateway connect failed", "error", err)
		os.Exit(1)
	}
	defer client.Disconnect()

	m := metrics.New()
	auditLog := audit.NewLog(audit.DefaultCapacity)
	adminSvc := admin.NewService(client, keySvc, offchainStore, auditLog,
		admin.WithMetrics(m),
		admin.WithLogger(log),
	)

	verifier := authz.NewTokenVerifier([]byte(cfg.JWTSigningKey), cfg.JWTIssuer)
	router := httptransport.NewRouter(httptransport.RouterConfig{
		Assets:     httptransport.NewAssetHandler(client, keySvc, log, m),
		Admin:      httptransport.NewAdminHandler(adminSvc, keySvc, client, log),
		Verifier:   verifier,
		AdminToken: cfg.AdminToken,
	})

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting idledger", "addr", cfg.Addr, "network", cfg.Network, "contract", cfg.Contract)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
