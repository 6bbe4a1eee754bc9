package rtss

import (
	"fmt"
	"math"

	"github.com/hwmonitor/bridge/internal/domain"
)

// Decode computes the highest frame rate across all tracked applications
// in a mapped RTSS region. It never reads outside buf.
//
// ErrBadSignature is returned when the tag does not match; the caller may
// keep the region. ErrLayoutBounds means the header points outside buf and
// the mapping should be treated as corrupt.
func Decode(buf []byte) (int, error) {
	return LayoutV2.Decode(buf)
}

func (l Layout) Decode(buf []byte) (int, error) {
	if len(buf) < l.headerSize() {
		return 0, fmt.Errorf("%w: region is %d bytes", domain.ErrLayoutBounds, len(buf))
	}

	sig, _ := l.Signature.read(buf, 0)
	if sig != Signature {
		return 0, fmt.Errorf("%w: got %#08x", domain.ErrBadSignature, sig)
	}

	entrySize, _ := l.EntrySize.read(buf, 0)
	arrayOffset, _ := l.ArrayOffset.read(buf, 0)
	count, _ := l.ArrayCount.read(buf, 0)
	if count == 0 || entrySize == 0 {
		return 0, nil
	}
	if int(entrySize) < l.minEntrySize() {
		return 0, fmt.Errorf("%w: entry size %d", domain.ErrLayoutBounds, entrySize)
	}

	end := uint64(arrayOffset) + uint64(count)*uint64(entrySize)
	if end > uint64(len(buf)) {
		return 0, fmt.Errorf("%w: %d entries of %d bytes at %d exceed %d bytes",
			domain.ErrLayoutBounds, count, entrySize, arrayOffset, len(buf))
	}

	best := 0
	for i := 0; i < int(count); i++ {
		base := int(arrayOffset) + i*int(entrySize)

		pid, ok := l.ProcessID.read(buf, base)
		if !ok {
			return 0, fmt.Errorf("%w: entry %d", domain.ErrLayoutBounds, i)
		}
		if pid == 0 {
			continue
		}

		t0, ok0 := l.Time0.read(buf, base)
		t1, ok1 := l.Time1.read(buf, base)
		frames, ok2 := l.FrameCount.read(buf, base)
		if !ok0 || !ok1 || !ok2 {
			return 0, fmt.Errorf("%w: entry %d", domain.ErrLayoutBounds, i)
		}

		if fps := entryFPS(t0, t1, frames); fps > best {
			best = fps
		}
	}
	return best, nil
}

// entryFPS returns 0 for an empty or inverted window.
func entryFPS(time0, time1, frames uint32) int {
	dt := int64(time1) - int64(time0)
	if dt <= 0 || frames == 0 {
		return 0
	}
	return int(math.Round(float64(frames) * 1000 / float64(dt)))
}
