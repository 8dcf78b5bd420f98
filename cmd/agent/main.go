// Агент устройства: входит на сервер, допускает свою сессию и держит
// сторожевой цикл до принудительного выхода или сигнала остановки.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/magabrotheeeer/device-gatekeeper/internal/client"
	"github.com/magabrotheeeer/device-gatekeeper/internal/models"
	"github.com/magabrotheeeer/device-gatekeeper/internal/watchdog"
)

func main() {
	var (
		serverURL       = flag.String("server", "http://localhost:8080", "gatekeeper server URL")
		username        = flag.String("username", "", "account username")
		password        = flag.String("password", "", "account password")
		deviceInfo      = flag.String("device", "", "device description, defaults to OS/arch")
		startupDelay    = flag.Duration("startup-delay", 5*time.Second, "delay before the first session check")
		checkInterval   = flag.Duration("check-interval", 30*time.Second, "session validity poll interval")
		refreshInterval = flag.Duration("refresh-interval", 60*time.Second, "access status refresh interval")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if *username == "" || *password == "" {
		logger.Error("username and password are required")
		os.Exit(1)
	}
	device := *deviceInfo
	if device == "" {
		device = fmt.Sprintf("agent %s/%s", runtime.GOOS, runtime.GOARCH)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := client.New(*serverURL)
	if err := api.Login(ctx, *username, *password); err != nil {
		logger.Error("login failed", slog.Any("err", err))
		os.Exit(1)
	}
	if err := api.Admit(ctx, device); err != nil {
		logger.Error("admission failed", slog.Any("err", err))
		os.Exit(1)
	}
	logger.Info("device admitted", slog.String("device", device))

	evicted := make(chan struct{})
	w := watchdog.New(api, logger, *startupDelay, *checkInterval, *refreshInterval,
		watchdog.WithSignOutHandler(func(notice string) {
			// Выход никогда не бывает молчаливым.
			fmt.Fprintln(os.Stderr, notice)
			close(evicted)
		}),
		watchdog.WithAccessHandler(func(info *models.AccessInfo) {
			logger.Info("access refreshed",
				slog.Bool("subscribed", info.Subscribed),
				slog.Bool("is_trial", info.IsTrial),
				slog.Int("trial_days_remaining", info.TrialDaysRemaining),
				slog.Int("device_slots", info.DeviceSlots))
		}))
	w.Start(ctx)

	select {
	case <-ctx.Done():
		w.Stop()
		// Добровольный выход удаляет свою строку сессии.
		signOutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := api.SignOut(signOutCtx); err != nil {
			logger.Warn("sign out failed", slog.Any("err", err))
		}
		logger.Info("agent stopped gracefully")
	case <-evicted:
		w.Stop()
		os.Exit(1)
	}
}
