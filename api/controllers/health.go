package controllers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/groupbuy-backend/api/responses"
	"github.com/angelmondragon/groupbuy-backend/pkg/config"
	"github.com/angelmondragon/groupbuy-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/groupbuy-backend/pkg/errors"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
)

const (
	envHeader    = "X-GroupBuy-Env"
	readyTimeout = 2 * time.Second
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings every named dependency concurrently. Nil entries are
// reported as disabled and do not fail the check.
func HealthReady(cfg *config.Config, logg *logger.Logger, deps map[string]db.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(envHeader, cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		var mu sync.Mutex
		checks := make(map[string]string, len(deps))
		g, gctx := errgroup.WithContext(ctx)
		for name, dep := range deps {
			name, dep := name, dep
			if dep == nil {
				mu.Lock()
				checks[name] = "disabled"
				mu.Unlock()
				continue
			}
			g.Go(func() error {
				err := dep.Ping(gctx)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					checks[name] = "down"
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable")
				}
				checks[name] = "ok"
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.As(err).WithDetails(map[string]any{"checks": checks}))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
