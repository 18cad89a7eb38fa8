package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"imagelab/internal/counter"
	"imagelab/internal/dispatch"
	"imagelab/internal/domain/jsoncfg"
	"imagelab/internal/infra"
	"imagelab/internal/middleware"

	"github.com/rs/zerolog"
)

// DefaultNotifyTimeout bounds one Telegram delivery.
const DefaultNotifyTimeout = 30 * time.Second

// Comparer runs one comparison batch.
type Comparer interface {
	Run(ctx context.Context, sub dispatch.Submission) (*dispatch.Batch, error)
}

// DocumentSender delivers a rendered artifact to an external channel.
type DocumentSender interface {
	SendDocument(ctx context.Context, caption, filename string, data []byte) error
}

// VisitCounter tracks unique visitor sessions.
type VisitCounter interface {
	RecordVisit(ctx context.Context) (counter.Stats, error)
	Snapshot() counter.Stats
}

// ProviderSet reports which provider keys have a registered adapter.
type ProviderSet interface {
	Has(key string) bool
}

type App struct {
	Catalog    *jsoncfg.Catalog
	Providers  ProviderSet
	Dispatcher Comparer
	Counter    VisitCounter
	// Notifier is optional; nil disables delivery.
	Notifier      DocumentSender
	NotifyTimeout time.Duration
	Logger        *infra.Logger

	notifications sync.WaitGroup
}

// WaitNotifications blocks until background deliveries finish or ctx ends.
func (a *App) WaitNotifications(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.notifications.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// error writes {"error": errCode, "message": ...} with the message localized
// for the request.
func (a *App) error(w http.ResponseWriter, r *http.Request, code int, errCode, key string, args ...any) {
	a.json(w, code, map[string]string{"error": errCode, "message": middleware.Localize(r.Context(), key, args...)})
}

// reject answers a requestError with 400; anything else is a 500.
func (a *App) reject(w http.ResponseWriter, r *http.Request, err error) {
	var re *requestError
	if errors.As(err, &re) {
		a.error(w, r, http.StatusBadRequest, re.code, re.key, re.args...)
		return
	}
	a.error(w, r, http.StatusInternalServerError, "internal", middleware.MsgComparisonFailed)
}

// log prefers the request-scoped logger installed by middleware.Logger.
func (a *App) log(r *http.Request) *zerolog.Logger {
	if l := zerolog.Ctx(r.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	if a.Logger != nil {
		return a.Logger
	}
	return infra.Nop()
}
