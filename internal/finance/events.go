package finance

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/assistente-financeiro/assistente-financeiro/internal/platform/httpx"
	"github.com/assistente-financeiro/assistente-financeiro/internal/shared"
	"github.com/assistente-financeiro/assistente-financeiro/internal/storage"
)

// keepAlive is the interval between SSE comment frames.
const keepAlive = 25 * time.Second

// Events streams changes to the caller's partition as server-sent events, so other tabs and
// devices can re-read a collection after someone else wrote it.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	store, ok := h.store(w, r)
	if !ok {
		return
	}
	watcher, ok := store.store.(storage.Watcher)
	if !ok {
		httpx.Problem(w, http.StatusNotImplemented, "Not Implemented", storage.ErrWatchUnsupported.Error())
		return
	}
	changes, err := watcher.Watch(r.Context())
	if err != nil {
		if errors.Is(err, storage.ErrWatchUnsupported) {
			httpx.Problem(w, http.StatusNotImplemented, "Not Implemented", err.Error())
			return
		}
		h.fail(w, "watch partition", err)
		return
	}

	var session <-chan storage.Change
	if p := shared.ProfileFromContext(r.Context()); p != nil {
		if ch, err := p.Store.Watch(r.Context()); err == nil {
			session = ch
		}
	}

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		return
	}

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case c, ok := <-changes:
			if !ok {
				return
			}
			if err := writeEvent(w, "collection", c); err != nil {
				return
			}
		case c, ok := <-session:
			if !ok {
				session = nil
				continue
			}
			if c.Key != shared.CurrentUserKey {
				continue
			}
			if err := writeEvent(w, "session", c); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, event string, c storage.Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
