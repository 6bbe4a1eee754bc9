// Package rtss reads the frame rate RivaTuner Statistics Server publishes
// in its shared memory region. Only the handful of fields needed for a
// frame rate are decoded; see LayoutV2.
package rtss

import (
	"errors"
	"log/slog"

	"github.com/hwmonitor/bridge/internal/domain"
)

// Reader owns the mapping for the life of the process. It is opened on the
// first ReadFPS and dropped only by Close or when the contents look corrupt.
// A Reader is not safe for concurrent use.
type Reader struct {
	name   string
	open   Opener
	logger *slog.Logger

	region Region
	warned bool
}

// NewReader creates a Reader for the named region. A nil open uses OpenRegion.
func NewReader(name string, open Opener, logger *slog.Logger) *Reader {
	if name == "" {
		name = DefaultRegionName
	}
	if open == nil {
		open = OpenRegion
	}
	return &Reader{name: name, open: open, logger: logger}
}

// ReadFPS returns the highest frame rate of any application RTSS tracks,
// or 0 when RTSS is not running or its data cannot be trusted.
func (r *Reader) ReadFPS() (fps int) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("rtss read panicked, dropping mapping", "region", r.name, "panic", rec)
			r.drop()
			fps = 0
		}
	}()

	if r.region == nil {
		region, err := r.open(r.name)
		if err != nil {
			if !r.warned {
				r.logger.Info("rtss shared memory not available", "region", r.name, "err", err)
				r.warned = true
			}
			return 0
		}
		r.region = region
		r.warned = false
		r.logger.Info("rtss shared memory mapped", "region", r.name, "size", len(region.Bytes()))
	}

	fps, err := Decode(r.region.Bytes())
	switch {
	case err == nil:
		return fps
	case errors.Is(err, domain.ErrBadSignature):
		r.logger.Debug("rtss signature mismatch", "region", r.name, "err", err)
		return 0
	default:
		r.logger.Warn("rtss region looks corrupt, dropping mapping", "region", r.name, "err", err)
		r.drop()
		return 0
	}
}

// Available reports whether the region is currently mapped.
func (r *Reader) Available() bool {
	return r.region != nil
}

// Close releases the mapping. The next ReadFPS maps it again.
func (r *Reader) Close() error {
	if r.region == nil {
		return nil
	}
	err := r.region.Close()
	r.region = nil
	return err
}

func (r *Reader) drop() {
	if err := r.Close(); err != nil {
		r.logger.Warn("rtss unmap failed", "region", r.name, "err", err)
	}
}
