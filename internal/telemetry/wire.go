package telemetry

import (
	"encoding/json"
	"fmt"

	"github.com/hwmonitor/bridge/internal/domain"
)

// RecordDelimiter terminates every record on the wire.
const RecordDelimiter = '\n'

// Encode renders f as one compact JSON object followed by RecordDelimiter.
func Encode(f domain.Frame) ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("marshal frame: %w", err)
	}
	return append(data, RecordDelimiter), nil
}
