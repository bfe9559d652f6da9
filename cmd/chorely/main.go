package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/chorely/internal/backup"
	"github.com/dukerupert/chorely/internal/chore"
	"github.com/dukerupert/chorely/internal/config"
	"github.com/dukerupert/chorely/internal/database"
	"github.com/dukerupert/chorely/internal/logging"
	"github.com/dukerupert/chorely/internal/media"
	"github.com/dukerupert/chorely/internal/notify"
	"github.com/dukerupert/chorely/internal/push"
	"github.com/dukerupert/chorely/internal/server"
)

func main() {
	configFile := flag.String("config", config.Getenv("CHORELY_CONFIG", ""), "path to a YAML config file")
	genVAPID := flag.Bool("gen-vapid", false, "print a new VAPID key pair and exit")
	backupNow := flag.Bool("backup", false, "take an encrypted database backup and exit")
	listBackups := flag.Bool("list-backups", false, "list stored backups and exit")
	restoreKey := flag.String("restore", "", "restore the named backup to -restore-to and exit")
	restoreTo := flag.String("restore-to", "", "path for the restored database file")
	flag.Parse()

	if *genVAPID {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			fmt.Fprintf(os.Stderr, "generate VAPID keys: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("CHORELY_PUSH_VAPID_PUBLIC_KEY=%s\nCHORELY_PUSH_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	backupCfg := backup.Config{
		Endpoint:      cfg.Media.Endpoint,
		Bucket:        cfg.Media.Bucket,
		Region:        cfg.Media.Region,
		AccessKey:     cfg.Media.AccessKey,
		SecretKey:     cfg.Media.SecretKey,
		Prefix:        cfg.Backup.Prefix,
		Passphrase:    cfg.Backup.Passphrase,
		Interval:      cfg.Backup.Interval,
		RetentionDays: cfg.Backup.RetentionDays,
	}
	if cfg.Backup.Bucket != "" {
		backupCfg.Bucket = cfg.Backup.Bucket
	}
	var backups *backup.Manager
	if backupCfg.Enabled() {
		backups = backup.NewManager(db, backupCfg, logger)
	}

	if *backupNow || *listBackups || *restoreKey != "" {
		if backups == nil {
			slog.Error("backups need object storage credentials and backup.passphrase")
			os.Exit(1)
		}
		if err := runBackupCommand(context.Background(), backups, *backupNow, *listBackups, *restoreKey, *restoreTo); err != nil {
			slog.Error("backup command failed", "error", err)
			os.Exit(1)
		}
		return
	}

	var events notify.Emitter
	if cfg.AMQP.URL != "" {
		publisher, err := notify.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
		if err != nil {
			slog.Error("failed to connect to AMQP broker", "error", err)
			os.Exit(1)
		}
		defer publisher.Close()
		events = publisher
		slog.Info("publishing events to AMQP", "exchange", cfg.AMQP.Exchange)
	}

	srv := server.New(db, server.Options{
		Runner: chore.RunnerConfig{
			Interval:    cfg.Runner.Interval,
			HorizonDays: cfg.Runner.HorizonDays,
			Workers:     cfg.Runner.Workers,
		},
		VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
		PushSubscriber:  cfg.Push.Subscriber,
		Media: media.Config{
			Endpoint:  cfg.Media.Endpoint,
			Bucket:    cfg.Media.Bucket,
			Region:    cfg.Media.Region,
			AccessKey: cfg.Media.AccessKey,
			SecretKey: cfg.Media.SecretKey,
			PublicURL: cfg.Media.PublicURL,
			MaxSize:   cfg.Media.MaxSize,
		},
		Events: events,
	}, logger)

	httpServer := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           srv.Router(),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()
	srv.Start(bgCtx)
	if backups != nil {
		backups.Start(bgCtx)
	}

	go func() {
		slog.Info("chorely starting", "addr", cfg.Server.Address)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	if backups != nil {
		backups.Stop()
	}
	srv.Stop()
}

func runBackupCommand(ctx context.Context, m *backup.Manager, now, list bool, restoreKey, restoreTo string) error {
	switch {
	case now:
		obj, err := m.RunNow(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s\t%d bytes\n", obj.Key, obj.Size)
	case list:
		objects, err := m.List(ctx)
		if err != nil {
			return err
		}
		for _, o := range objects {
			fmt.Printf("%s\t%s\t%d bytes\n", o.CreatedAt.Format(time.RFC3339), o.Key, o.Size)
		}
	default:
		if restoreTo == "" {
			return errors.New("-restore needs -restore-to")
		}
		if err := m.Restore(ctx, restoreKey, restoreTo); err != nil {
			return err
		}
		fmt.Printf("restored %s to %s; stop the server and move it over the live database to finish\n", restoreKey, restoreTo)
	}
	return nil
}
