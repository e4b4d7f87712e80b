package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/streetlight/gwnode/internal/ctlerr"
)

// GatewayStore is the §4.B persistent config store for the gateway,
// backed by a single JSON file. Save removes the file before writing the
// new contents, so a process crash mid-save leaves either no file or a
// file cut short, and the next Load reports ErrNotFound for both, which
// the caller treats as an unprovisioned boot rather than a corrupt one.
type GatewayStore struct {
	path string
}

// NewGatewayStore returns a store rooted at path (e.g. /gateway_config.json).
func NewGatewayStore(path string) *GatewayStore {
	return &GatewayStore{path: path}
}

// Load reads and parses the config file. A missing file is reported as
// ctlerr.ErrNotFound, not wrapped further, so callers can errors.Is it
// directly to trigger bootstrap. A file that does not parse (a save cut
// short) is reported as a wrapped ctlerr.ErrNotFound for the same reason.
func (s *GatewayStore) Load() (*GatewayConfig, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ctlerr.ErrNotFound
		}
		return nil, fmt.Errorf("%w: reading %s: %v", ctlerr.ErrStoreIO, s.path, err)
	}

	var cfg GatewayConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ctlerr.ErrNotFound, s.path, err)
	}
	return &cfg, nil
}

// Save validates the invariants on cfg, then performs the remove-then-
// write sequence: unlink the existing file (ignoring NotExist), write
// the new bytes. If the process dies between the unlink and the write,
// the next Load sees ErrNotFound and the gateway re-enters bootstrap
// rather than operating on a half-written file.
func (s *GatewayStore) Save(cfg *GatewayConfig) error {
	if err := validateGatewayConfig(cfg); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshaling config: %v", ctlerr.ErrStoreIO, err)
	}

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: removing %s: %v", ctlerr.ErrStoreIO, s.path, err)
	}

	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ctlerr.ErrStoreIO, s.path, err)
	}
	return nil
}

func validateGatewayConfig(cfg *GatewayConfig) error {
	if cfg.GatewayId == "" {
		return fmt.Errorf("%w: gatewayId must be non-empty", ctlerr.ErrConfigRejected)
	}
	if len(cfg.Nodes) > maxNodes {
		return fmt.Errorf("%w: node sequence length %d exceeds %d", ctlerr.ErrConfigRejected, len(cfg.Nodes), maxNodes)
	}
	return nil
}

// ApplyIfNewer implements the §4.G idempotence rule: a config whose
// ConfigVersion is not strictly greater than the currently persisted one
// is a no-op. It returns the config that is now in force (the existing
// one on a no-op, or next on success) and whether a write occurred.
func (s *GatewayStore) ApplyIfNewer(next *GatewayConfig) (*GatewayConfig, bool, error) {
	current, err := s.Load()
	if err != nil && !errors.Is(err, ctlerr.ErrNotFound) {
		return nil, false, err
	}
	if current != nil && next.ConfigVersion <= current.ConfigVersion {
		return current, false, nil
	}
	if err := s.Save(next); err != nil {
		return current, false, err
	}
	return next, true, nil
}

// UpsertNode inserts or replaces a NodeInfo record by NodeId, enforcing
// the §3 bound on the node sequence length, then persists via Save.
func (s *GatewayStore) UpsertNode(cfg *GatewayConfig, info NodeInfo) error {
	for i := range cfg.Nodes {
		if cfg.Nodes[i].NodeId == info.NodeId {
			cfg.Nodes[i] = info
			return s.Save(cfg)
		}
	}
	if len(cfg.Nodes) >= maxNodes {
		return fmt.Errorf("%w: node sequence length would exceed %d", ctlerr.ErrConfigRejected, maxNodes)
	}
	cfg.Nodes = append(cfg.Nodes, info)
	return s.Save(cfg)
}
