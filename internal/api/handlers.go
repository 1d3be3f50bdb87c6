package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Fleurer/meme/internal/config"
	"github.com/Fleurer/meme/internal/events"
	"github.com/Fleurer/meme/internal/merrors"
	"github.com/Fleurer/meme/internal/repo"
)

// Handlers holds every HTTP handler's dependencies. All state access goes
// through Server's mutex via the commit/read helpers passed in at
// construction — Handlers itself holds no lock.
type Handlers struct {
	cfg    config.ServerConfig
	hub    *Hub
	commit func(ev *events.Event) (uint64, error)
	read   func(fn func(*repo.Repository))
	logger *slog.Logger
}

// NewHandlers wires up the handler set. commit and read are Server's
// locking wrappers around r.Commit and read-only access, respectively.
func NewHandlers(cfg config.ServerConfig, hub *Hub, commit func(*events.Event) (uint64, error), read func(func(*repo.Repository)), logger *slog.Logger) *Handlers {
	return &Handlers{cfg: cfg, hub: hub, commit: commit, read: read, logger: logger.With("component", "api-handlers")}
}

// HandleHealth reports liveness.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleSnapshot returns the full read-model snapshot.
func (h *Handlers) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	var snap snapshotView
	h.read(func(repository *repo.Repository) {
		snap = BuildSnapshot(repository)
	})
	writeJSON(w, http.StatusOK, snap)
}

// HandleCreateAccount handles POST /accounts.
func (h *Handlers) HandleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ID == "" {
		writeError(w, &merrors.ValidationError{Field: "id", Reason: "must not be empty"})
		return
	}
	var ev *events.Event
	h.read(func(repository *repo.Repository) {
		ev = events.BuildAccountCreated(repository, req.ID)
	})
	h.commitAndRespond(w, ev, "account "+req.ID+" created")
}

// HandleDeleteAccount handles DELETE /accounts/{id}.
func (h *Handlers) HandleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var ev *events.Event
	h.read(func(repository *repo.Repository) {
		ev = events.BuildAccountCanceled(repository, id)
	})
	h.commitAndRespond(w, ev, "account "+id+" canceled")
}

// HandleGetAccount handles GET /accounts/{id}.
func (h *Handlers) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var view accountView
	var lookupErr error
	h.read(func(repository *repo.Repository) {
		acc, err := repository.FindAccount(id)
		if err != nil {
			lookupErr = err
			return
		}
		view = newAccountView(acc)
	})
	if lookupErr != nil {
		writeError(w, lookupErr)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleCredit handles POST /accounts/{id}/credit.
func (h *Handlers) HandleCredit(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")
	var req balanceChangeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var ev *events.Event
	var buildErr error
	h.read(func(repository *repo.Repository) {
		ev, buildErr = events.BuildAccountCredited(repository, req.ID, accountID, req.CoinType, req.Amount)
	})
	if buildErr != nil {
		writeError(w, buildErr)
		return
	}
	h.commitAndRespond(w, ev, "account "+accountID+" credited "+req.CoinType)
}

// HandleDebit handles POST /accounts/{id}/debit.
func (h *Handlers) HandleDebit(w http.ResponseWriter, r *http.Request) {
	accountID := r.PathValue("id")
	var req balanceChangeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	var ev *events.Event
	var buildErr error
	h.read(func(repository *repo.Repository) {
		ev, buildErr = events.BuildAccountDebited(repository, req.ID, accountID, req.CoinType, req.Amount)
	})
	if buildErr != nil {
		writeError(w, buildErr)
		return
	}
	h.commitAndRespond(w, ev, "account "+accountID+" debited "+req.CoinType)
}

// HandleCreateExchange handles POST /exchanges.
func (h *Handlers) HandleCreateExchange(w http.ResponseWriter, r *http.Request) {
	var req createExchangeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.CoinType == "" || req.PriceType == "" {
		writeError(w, &merrors.ValidationError{Field: "coin_type/price_type", Reason: "must not be empty"})
		return
	}
	var ev *events.Event
	h.read(func(repository *repo.Repository) {
		ev = events.BuildExchangeCreated(repository, req.CoinType, req.PriceType)
	})
	h.commitAndRespond(w, ev, "exchange "+req.CoinType+"-"+req.PriceType+" created")
}

// HandleGetExchange handles GET /exchanges/{id}.
func (h *Handlers) HandleGetExchange(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var view exchangeView
	var lookupErr error
	h.read(func(repository *repo.Repository) {
		ex, err := repository.FindExchange(id)
		if err != nil {
			lookupErr = err
			return
		}
		view = newExchangeView(ex)
	})
	if lookupErr != nil {
		writeError(w, lookupErr)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleMatch handles POST /exchanges/{id}/match: peeks the book and, if
// a cross exists, builds and commits the resulting OrderDealt.
func (h *Handlers) HandleMatch(w http.ResponseWriter, r *http.Request) {
	exchangeID := r.PathValue("id")
	var ev *events.Event
	var matched bool
	var err error
	h.read(func(repository *repo.Repository) {
		ev, matched, err = events.BuildOrderDealt(repository, exchangeID, time.Now())
	})
	if err != nil {
		writeError(w, err)
		return
	}
	if !matched {
		writeJSON(w, http.StatusOK, matchResponse{Matched: false})
		return
	}
	rev, err := h.commit(ev)
	if err != nil {
		writeError(w, err)
		return
	}
	h.hub.BroadcastEvent(newCommittedEvent(ev, rev, "order matched on "+exchangeID))
	writeJSON(w, http.StatusOK, matchResponse{Matched: true, Revision: rev})
}

// HandleCreateOrder handles POST /orders.
func (h *Handlers) HandleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	variant := variantOf(req.Variant)
	if !variant.IsValid() {
		writeError(w, &merrors.ValidationError{Field: "variant", Reason: "must be bid or ask"})
		return
	}
	var ev *events.Event
	var buildErr error
	h.read(func(repository *repo.Repository) {
		ev, buildErr = events.BuildOrderCreated(repository, req.ID, variant, req.AccountID, req.CoinType, req.PriceType, req.Price, req.Amount, req.FeeRate, time.Now())
	})
	if buildErr != nil {
		writeError(w, buildErr)
		return
	}
	h.commitAndRespond(w, ev, "order "+req.ID+" created")
}

// HandleDeleteOrder handles DELETE /orders/{id}.
func (h *Handlers) HandleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var ev *events.Event
	var buildErr error
	h.read(func(repository *repo.Repository) {
		ev, buildErr = events.BuildOrderCanceled(repository, id)
	})
	if buildErr != nil {
		writeError(w, buildErr)
		return
	}
	h.commitAndRespond(w, ev, "order "+id+" canceled")
}

// HandleGetOrder handles GET /orders/{id}.
func (h *Handlers) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var view orderView
	var lookupErr error
	h.read(func(repository *repo.Repository) {
		order, err := repository.FindOrder(id)
		if err != nil {
			lookupErr = err
			return
		}
		view = newOrderView(order)
	})
	if lookupErr != nil {
		writeError(w, lookupErr)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleStream upgrades the connection and registers a new stream client.
func (h *Handlers) HandleStream(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(req *http.Request) bool {
			return isOriginAllowed(req.Header.Get("Origin"), h.cfg, req.Host)
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	NewClient(h.hub, conn)
}

// commitAndRespond commits ev, broadcasts it on success, and writes the
// resulting revision or the mapped error.
func (h *Handlers) commitAndRespond(w http.ResponseWriter, ev *events.Event, summary string) {
	rev, err := h.commit(ev)
	if err != nil {
		writeError(w, err)
		return
	}
	h.hub.BroadcastEvent(newCommittedEvent(ev, rev, summary))
	writeJSON(w, http.StatusOK, map[string]uint64{"revision": rev})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps a merrors taxonomy error to its HTTP status, per the
// façade's error contract: NotFoundError -> 404, ValidationError -> 400,
// BalanceError/CancelError/RevisionError -> 409, ConflictedError -> 409
// with Retry-After: 0 (a bloom false positive means retry with a fresh
// id), DealError -> 500 since it signals an apply-ordering bug rather
// than a bad request.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var (
		notFound   *merrors.NotFoundError
		validation *merrors.ValidationError
		balance    *merrors.BalanceError
		cancel     *merrors.CancelError
		conflicted *merrors.ConflictedError
		revision   *merrors.RevisionError
		deal       *merrors.DealError
	)
	switch {
	case errors.As(err, &notFound):
		status = http.StatusNotFound
	case errors.As(err, &validation):
		status = http.StatusBadRequest
	case errors.As(err, &balance):
		status = http.StatusConflict
	case errors.As(err, &cancel):
		status = http.StatusConflict
	case errors.As(err, &revision):
		status = http.StatusConflict
	case errors.As(err, &conflicted):
		w.Header().Set("Retry-After", "0")
		status = http.StatusConflict
	case errors.As(err, &deal):
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func isOriginAllowed(origin string, cfg config.ServerConfig, reqHost string) bool {
	if origin == "" {
		// Non-browser clients often omit Origin; keep this path functional.
		return true
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}

	normalized := normalizeOrigin(originURL.Scheme, originURL.Host)
	if normalized == "" {
		return false
	}

	if len(cfg.AllowedOrigins) > 0 {
		for _, allowed := range cfg.AllowedOrigins {
			u, err := url.Parse(allowed)
			if err != nil {
				continue
			}
			if normalized == normalizeOrigin(u.Scheme, u.Host) {
				return true
			}
		}
		return false
	}

	host := strings.ToLower(originURL.Hostname())
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}

	reqHostname := normalizeHost(reqHost)
	return reqHostname != "" && host == reqHostname
}

func normalizeOrigin(scheme, host string) string {
	if scheme == "" || host == "" {
		return ""
	}
	return strings.ToLower(scheme) + "://" + strings.ToLower(host)
}

func normalizeHost(hostport string) string {
	hostport = strings.TrimSpace(hostport)
	if hostport == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(hostport); err == nil {
		return strings.ToLower(host)
	}
	return strings.ToLower(hostport)
}
