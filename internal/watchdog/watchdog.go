// Package watchdog реализует сторожевой цикл на стороне устройства.
//
// Каждое допущенное устройство периодически спрашивает сервер, числится ли
// его сессия среди допущенных. Сервер ничего не пушит: вытеснение
// обнаруживается только опросом, с задержкой не больше интервала проверки.
package watchdog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/device-gatekeeper/internal/lib/sl"
	"github.com/magabrotheeeer/device-gatekeeper/internal/models"
)

// SignedOutElsewhereNotice — сообщение, показываемое пользователю при
// принудительном выходе. Выход никогда не бывает молчаливым.
const SignedOutElsewhereNotice = "signed out elsewhere"

// SessionAPI описывает серверные операции, нужные сторожевому циклу.
type SessionAPI interface {
	// ValidateSession сообщает, действительна ли сессия устройства.
	ValidateSession(ctx context.Context) (bool, error)
	// SignOut удаляет сессию устройства на сервере.
	SignOut(ctx context.Context) error
	// AccessStatus возвращает свежую сводку доступа.
	AccessStatus(ctx context.Context) (*models.AccessInfo, error)
}

// Watchdog опрашивает сервер и принудительно завершает сессию, когда она
// вытеснена другим устройством.
type Watchdog struct {
	api SessionAPI
	log *slog.Logger

	startupDelay    time.Duration
	checkInterval   time.Duration
	refreshInterval time.Duration

	// onSignOut вызывается ровно один раз при принудительном выходе, до
	// остановки таймеров. Получает сообщение для пользователя.
	onSignOut func(notice string)
	// onAccess вызывается после каждого успешного обновления сводки доступа.
	onAccess func(info *models.AccessInfo)

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

// Option настраивает Watchdog.
type Option func(*Watchdog)

// WithSignOutHandler задает обработчик принудительного выхода.
func WithSignOutHandler(fn func(notice string)) Option {
	return func(w *Watchdog) { w.onSignOut = fn }
}

// WithAccessHandler задает обработчик обновления сводки доступа.
func WithAccessHandler(fn func(info *models.AccessInfo)) Option {
	return func(w *Watchdog) { w.onAccess = fn }
}

// New создает сторожевой цикл. startupDelay — пауза перед первой проверкой,
// checkInterval — период проверки действительности сессии, refreshInterval —
// период обновления сводки доступа.
func New(api SessionAPI, log *slog.Logger,
	startupDelay, checkInterval, refreshInterval time.Duration, opts ...Option) *Watchdog {
	w := &Watchdog{
		api:             api,
		log:             log,
		startupDelay:    startupDelay,
		checkInterval:   checkInterval,
		refreshInterval: refreshInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start запускает цикл в фоне. Повторный запуск без Stop игнорируется.
func (w *Watchdog) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	w.stopped = false
	go w.run(runCtx)
}

// Stop останавливает цикл и дожидается его завершения.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	done := w.done
	w.cancel = nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (w *Watchdog) run(ctx context.Context) {
	defer close(w.done)

	// Пауза перед первой проверкой: допуск мог ещё не завершиться на сервере.
	startup := time.NewTimer(w.startupDelay)
	defer startup.Stop()
	select {
	case <-ctx.Done():
		return
	case <-startup.C:
	}

	if !w.checkOnce(ctx) {
		return
	}

	check := time.NewTicker(w.checkInterval)
	defer check.Stop()
	refresh := time.NewTicker(w.refreshInterval)
	defer refresh.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-check.C:
			if !w.checkOnce(ctx) {
				return
			}
		case <-refresh.C:
			w.refreshAccess(ctx)
		}
	}
}

// checkOnce возвращает false, когда цикл должен остановиться.
func (w *Watchdog) checkOnce(ctx context.Context) bool {
	valid, err := w.api.ValidateSession(ctx)
	if err != nil {
		// Сбой сети или сервера не выбрасывает устройство.
		w.log.Warn("session check failed, keeping session", sl.Err(err))
		return true
	}
	if valid {
		return true
	}

	w.forceSignOut(ctx)
	return false
}

func (w *Watchdog) forceSignOut(ctx context.Context) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	w.mu.Unlock()

	w.log.Info("session evicted, signing out")

	// Удаление своей строки на сервере необязательно: её уже мог удалить
	// контроллер допуска.
	if err := w.api.SignOut(ctx); err != nil {
		w.log.Warn("remote sign out failed", sl.Err(err))
	}
	if w.onSignOut != nil {
		w.onSignOut(SignedOutElsewhereNotice)
	}
}

func (w *Watchdog) refreshAccess(ctx context.Context) {
	info, err := w.api.AccessStatus(ctx)
	if err != nil {
		w.log.Warn("access refresh failed", sl.Err(err))
		return
	}
	if w.onAccess != nil {
		w.onAccess(info)
	}
}
