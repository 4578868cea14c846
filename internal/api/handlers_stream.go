package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/masquerade-labs/masquerade/internal/apperr"
	"github.com/masquerade-labs/masquerade/internal/domain"
)

// streamFlags handles `GET /stream/{app}/{env}/` (spec §4.4 "Flag
// stream"): it subscribes to the Tiered Store's invalidation topic,
// emits a full snapshot immediately, and re-emits one on every
// subsequent notification that matches this scope. The event payload is
// the literal text the spec mandates, not the conventional SSE framing
// ("event:data\ndata:<json>\n\n", no space after the colons).
func (h *handlers) streamFlags(w http.ResponseWriter, r *http.Request) {
	path, err := h.flagScope(r)
	if err != nil {
		RespondError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		RespondError(w, apperr.New(apperr.BackingStoreFailure, "streaming unsupported by response writer"))
		return
	}

	ctx := r.Context()
	sub, err := h.app.Flags.Subscribe(ctx)
	if err != nil {
		RespondError(w, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := h.writeFlagSnapshot(ctx, w, path); err != nil {
		h.app.Log.Warn("stream: initial snapshot failed", zap.Error(err))
		return
	}
	flusher.Flush()

	for {
		select {
		case <-ctx.Done():
			return
		case key, ok := <-sub.Messages():
			if !ok {
				return
			}
			if !h.app.Flags.Matches(path, key) {
				continue
			}
			if err := h.writeFlagSnapshot(ctx, w, path); err != nil {
				h.app.Log.Warn("stream: snapshot failed", zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

func (h *handlers) writeFlagSnapshot(ctx context.Context, w http.ResponseWriter, path domain.FlagPath) error {
	all, err := h.app.Flags.GetAll(ctx, path)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(sortedFlags(all))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event:data\ndata:%s\n\n", payload)
	return err
}
