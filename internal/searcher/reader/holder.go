package reader

import (
	"net/http"
	"sync"
	"sync/atomic"

	apperrors "github.com/Adithya-Monish-Kumar-K/posindex/pkg/errors"
)

// Holder publishes the current Reader to concurrent lookups and swaps in a
// fresh one when the index is rebuilt. In-flight lookups keep using the
// Reader they started with.
type Holder struct {
	opts    Options
	current atomic.Pointer[Reader]
	mu      sync.Mutex
}

func NewHolder(opts Options) *Holder {
	return &Holder{opts: opts}
}

// Load returns the current Reader or an error if no index has loaded yet.
func (h *Holder) Load() (*Reader, error) {
	r := h.current.Load()
	if r == nil {
		return nil, apperrors.New(apperrors.ErrInternal, http.StatusServiceUnavailable, "index not loaded")
	}
	return r, nil
}

// Reload opens the index from disk and swaps it in. On failure the
// previous Reader stays in place. changed reports whether the checksum
// differs from the Reader it replaced.
func (h *Holder) Reload() (r *Reader, changed bool, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, err = Open(h.opts)
	if err != nil {
		return nil, false, err
	}
	prev := h.current.Swap(r)
	return r, prev == nil || prev.Checksum() != r.Checksum(), nil
}
