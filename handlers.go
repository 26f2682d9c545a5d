package blogsync

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// handleWebhook runs one sync pass and reports a plain-text summary. Failures
// only expose the coarse label of the failed stage; the detail is logged and
// recorded in sync_runs.
func (a *App) handleWebhook(c echo.Context) error {
	if !a.limiter.Allow(c.RealIP()) {
		return c.String(http.StatusTooManyRequests, "Too many webhook deliveries. Try again later.")
	}
	res, err := a.Runner.Run(c.Request().Context())
	if err != nil {
		if errors.Is(err, ErrSyncInProgress) {
			return c.String(http.StatusConflict, "Sync already in progress")
		}
		a.logger.Printf("webhook sync failed: %v", err)
		return c.String(http.StatusInternalServerError, StageOf(err).Label())
	}
	return c.String(http.StatusOK, fmt.Sprintf("Synced %d files. Deleted %d removed entries.", res.Synced, res.Deleted))
}

func (a *App) handleEntries(c echo.Context) error {
	entries, err := a.Cache.ListEntries(c.Request().Context(), c.QueryParam("tag"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}

func (a *App) handleEntry(c echo.Context) error {
	entry, err := a.Cache.GetEntry(c.Request().Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "entry not found")
		}
		return err
	}
	return c.JSON(http.StatusOK, entry)
}

func (a *App) handleRuns(c echo.Context) error {
	limit := 20
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 500")
		}
		limit = n
	}
	runs, err := a.Store.ListRuns(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	if runs == nil {
		runs = []SyncRun{}
	}
	return c.JSON(http.StatusOK, runs)
}

func (a *App) handleFeed(c echo.Context) error {
	entries, err := a.Cache.ListEntries(c.Request().Context(), "")
	if err != nil {
		return err
	}
	return a.renderRSS(c, entries)
}

func (a *App) handleSitemap(c echo.Context) error {
	entries, err := a.Cache.ListEntries(c.Request().Context(), "")
	if err != nil {
		return err
	}
	return a.renderSitemap(c, entries)
}

func (a *App) handleHealth(c echo.Context) error {
	if err := a.Store.Ping(c.Request().Context()); err != nil {
		return c.String(http.StatusServiceUnavailable, "database unavailable")
	}
	return c.String(http.StatusOK, "ok")
}

func (a *App) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	he, ok := err.(*echo.HTTPError)
	code := http.StatusInternalServerError
	if ok {
		code = he.Code
	}
	if code >= 500 {
		c.Logger().Errorf("server error: %v", err)
		_ = c.String(code, "Server error")
		return
	}
	a.Echo.DefaultHTTPErrorHandler(err, c)
}
