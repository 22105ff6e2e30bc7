package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/GogiGunia/Toolidol/internal/config"
	"github.com/GogiGunia/Toolidol/internal/facebook"
	"github.com/GogiGunia/Toolidol/internal/httpapi"
	"github.com/GogiGunia/Toolidol/internal/migrate"
	"github.com/GogiGunia/Toolidol/internal/obs"
	"github.com/GogiGunia/Toolidol/internal/protect"
	"github.com/GogiGunia/Toolidol/internal/token"
	"github.com/GogiGunia/Toolidol/internal/user"
)

var version = "0.3.0"

const initialAdminEmail = "admin@toolidol.local"

func main() {
	obs.Init()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var db *sql.DB
	if cfg.PGDSN != "" {
		db, err = sql.Open("pgx", cfg.PGDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)

		if cfg.MigrationsDir != "" {
			mgr := migrate.NewManager(db, cfg.MigrationsDir)
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if err := mgr.Up(ctx); err != nil {
				cancel()
				log.Fatalf("migrate: %v", err)
			}
			cancel()
		}
	}

	tokenCfg, err := cfg.TokenConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	tokens, err := token.NewService(tokenCfg)
	if err != nil {
		log.Fatalf("token service: %v", err)
	}

	var users *user.Service
	var fb *facebook.Service
	if db != nil {
		users = user.NewService(user.NewPGStore(db), tokens)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		if err := users.EnsureInitialAdmin(ctx, initialAdminEmail); err != nil {
			cancel()
			log.Fatalf("bootstrap admin: %v", err)
		}
		cancel()

		if cfg.FacebookAppID != "" && cfg.FacebookAppSecret != "" {
			client, err := facebook.NewClient(facebook.Settings{
				AppID:       cfg.FacebookAppID,
				AppSecret:   cfg.FacebookAppSecret,
				GraphAPIURL: cfg.FacebookGraphAPIURL,
			}, &http.Client{Timeout: 30 * time.Second})
			if err != nil {
				log.Fatalf("facebook client: %v", err)
			}
			protector, err := protect.New([]byte(cfg.DataProtectionKey), facebook.TokenPurpose)
			if err != nil {
				log.Fatalf("data protection: %v", err)
			}
			fb = facebook.NewService(client, facebook.NewGrantStore(db, protector))
		}
	}

	api := httpapi.New(httpapi.Options{
		ReadyProbe: httpapi.ReadyProbe{DB: db},
		Version:    version,
		Tokens:     tokens,
		Users:      users,
		Facebook:   fb,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting toolidol-api %s on %s", version, srv.Addr)

	// graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
