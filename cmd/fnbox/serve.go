package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fnbox/api"
	"fnbox/config"
	"fnbox/function"
	"fnbox/media"
	"fnbox/sandbox"
	"fnbox/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log := newLogger(cfg.LogFile)
	defer log.Sync()

	st, err := store.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return err
	}
	defer st.Close()

	runner := sandbox.NewRunner(
		sandbox.WithTimeout(cfg.ExecTimeout.Std()),
		sandbox.WithMemoryLimit(cfg.MemoryLimitMB<<20),
		sandbox.WithSampleInterval(cfg.SampleInterval.Std()),
	)
	fnSvc := function.NewService(st, runner, log)

	var storage media.Storage
	if cfg.UseS3() {
		storage, err = media.NewS3Storage(cmd.Context(), media.S3Config{
			Endpoint:  cfg.S3.Endpoint,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Region:    cfg.S3.Region,
			Bucket:    cfg.S3.Bucket,
			UseSSL:    cfg.S3.UseSSL,
		})
		if err != nil {
			return err
		}
		log.Info("media storage: s3", zap.String("endpoint", cfg.S3.Endpoint), zap.String("bucket", cfg.S3.Bucket))
	} else {
		storage, err = media.NewLocalStorage(cfg.UploadDir)
		if err != nil {
			return err
		}
		log.Info("media storage: local", zap.String("dir", cfg.UploadDir))
	}
	mediaSvc := media.NewService(st, storage, log)

	cleaner, err := media.NewCleaner(mediaSvc, cfg.PurgeSchedule, log)
	if err != nil {
		return err
	}
	cleaner.Start()
	defer cleaner.Stop()

	var origins []string
	for _, o := range strings.Split(cfg.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	h := api.New(fnSvc, st, mediaSvc, log)
	srv := &http.Server{
		Addr: cfg.BindAddr + ":" + cfg.Port,
		Handler: h.Router(api.RouterOptions{
			AllowedOrigins: origins,
			JWTSecret:      cfg.JWTSecret,
		}),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
