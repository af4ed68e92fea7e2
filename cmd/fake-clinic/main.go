package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/hackgods/dental-booking/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	logger := logging.New(getEnv("LOG_LEVEL", "info"))

	port := getEnv("FAKE_CLINIC_PORT", "9090")
	days := getInt("FAKE_CLINIC_DAYS", 14)
	maxPending := getInt("FAKE_CLINIC_MAX_PENDING", 3)

	clinic := seedClinic(time.Now(), days, maxPending)
	logger.Info("clinic seeded",
		"specialties", len(clinic.specialties),
		"service_types", len(clinic.services),
		"slots", len(clinic.slots))

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           newRouter(clinic, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("fake clinic listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-rootCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	logger.Info("fake clinic stopped")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
