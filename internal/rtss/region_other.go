//go:build !windows && !unix

package rtss

import (
	"fmt"

	"github.com/hwmonitor/bridge/internal/domain"
)

func OpenRegion(name string) (Region, error) {
	return nil, fmt.Errorf("%w: %s: not supported on this platform", domain.ErrRegionUnavailable, name)
}
