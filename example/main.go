package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/disasterboard"
	"github.com/jpalmerr/disasterboard/internal/mockapi"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// mock disaster API whose health flips every 30-90 seconds
	backend := mockapi.New(logger)
	go backend.Flap(ctx, 30*time.Second, 90*time.Second)
	go func() {
		if err := http.ListenAndServe(":5055", backend.Handler()); err != nil {
			logger.Error("mock API stopped", "error", err)
		}
	}()
	time.Sleep(100 * time.Millisecond)

	b, err := disasterboard.New(
		disasterboard.WithAPIURL("http://localhost:5055/api"),
		disasterboard.WithPort(8080),
		disasterboard.WithLogger(logger),
		disasterboard.WithViewInterval(disasterboard.ViewAlerts, 20*time.Second),
		disasterboard.WithViewInterval(disasterboard.ViewStatus, 10*time.Second),
		disasterboard.WithRetryDelay(2*time.Second),
		disasterboard.WithLocation(disasterboard.Location{
			Latitude: 19.076, Longitude: 72.8777, Address: "Mumbai, Maharashtra",
		}),
		disasterboard.WithStateCallback(func(s disasterboard.ViewState) {
			if s.Phase == disasterboard.PhaseFailed {
				logger.Warn("view failed", "view", s.View, "retries", s.RetryCount, "error", s.LastError)
			}
		}),
	)
	if err != nil {
		logger.Error("failed to create dashboard", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  Disaster dashboard demo")
	fmt.Println()
	fmt.Println("  Open http://localhost:8080 in your browser")
	fmt.Println("  Mock API on http://localhost:5055/api, health flaps every 30-90s")
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	if err := b.Start(ctx); err != nil {
		logger.Error("dashboard error", "error", err)
		os.Exit(1)
	}
}
