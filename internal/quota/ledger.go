package quota

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Ledger is the on-disk form of the daily call history.
type Ledger struct {
	Calls     []time.Time `json:"calls"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// LoadLedger reads the ledger file. A missing file yields an empty ledger.
func LoadLedger(filePath string) (*Ledger, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Ledger{}, nil
		}
		return nil, fmt.Errorf("read quota ledger: %w", err)
	}
	var l Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decode quota ledger: %w", err)
	}
	return &l, nil
}

// SaveLedger writes the gate's current day window to filePath.
func SaveLedger(filePath string, g *Gate) error {
	l := Ledger{Calls: g.Snapshot(), UpdatedAt: g.clock.Now()}
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("encode quota ledger: %w", err)
	}
	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create ledger dir: %w", err)
		}
	}
	return os.WriteFile(filePath, data, 0o644)
}
