package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// projectConfig holds the top-level configuration loaded from setting.json.
type projectConfig struct {
	Log   logConfig `json:"log"`
	Tunnel *Tunnel   `json:"tunnel"`
}

type logConfig struct {
	Level   string `json:"level"`
	Path    string `json:"path"`
	Version string `json:"version"`
	Date    string `json:"date"`
}

// Tunnel describes one endpoint of the QUIC-multiplexed SDN tunnel: which
// side it plays, where it listens for local legacy traffic, and where the
// QUIC peer is.
type Tunnel struct {
	Name string `json:"name"`
	// Role is "client" or "server" (spec.md §6 CLI).
	Role string `json:"role"`
	// Mode is "openflow", "ovsdb", or "mix" (spec.md §4.7, §6 CLI modes 1/2/3).
	Mode string `json:"mode"`

	QuicAddr string `json:"quicAddr"`
	QuicPort uint16 `json:"quicPort"`
	LocalAddr string `json:"localAddr"`
	LocalPort uint16 `json:"localPort"`

	CertFile string `json:"certFile"`
	KeyFile  string `json:"keyFile"`
	CAFile   string `json:"caFile"`

	IdleTimeoutSeconds uint64 `json:"idleTimeoutSeconds"`

	TransportParamsFile string `json:"transportParamsFile"`
	SessionFile         string `json:"sessionFile"`
}

// GlobalCfg points at the currently-effective configuration.
var GlobalCfg *projectConfig

func init() {
	path := os.Getenv("QUICSDN_CONFIG")
	if path == "" {
		path = "config/setting.json"
	}
	buf, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("failed to load setting.json: %s\n", err.Error())
		GlobalCfg = &projectConfig{}
		return
	}
	var cfg projectConfig
	if err := json.Unmarshal(buf, &cfg); err != nil {
		fmt.Printf("failed to load setting.json: %s\n", err.Error())
		GlobalCfg = &projectConfig{}
		return
	}
	if cfg.Tunnel == nil {
		fmt.Printf("empty tunnel config\n")
	} else if err := cfg.Tunnel.verify(); err != nil {
		fmt.Printf("verify tunnel config failed: %s\n", err.Error())
	}
	GlobalCfg = &cfg
}

// Reload reads path and, if valid, replaces GlobalCfg.
func Reload(path string) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var cfg projectConfig
	if err := json.Unmarshal(buf, &cfg); err != nil {
		return err
	}
	if cfg.Tunnel == nil {
		return fmt.Errorf("empty tunnel config")
	}
	if err := cfg.Tunnel.verify(); err != nil {
		return err
	}
	GlobalCfg = &cfg
	return nil
}

func (t *Tunnel) verify() error {
	if t.Name == "" {
		return fmt.Errorf("empty name")
	}
	if t.Role != "client" && t.Role != "server" {
		return fmt.Errorf("invalid role %q, want client or server", t.Role)
	}
	switch t.Mode {
	case "openflow", "ovsdb", "mix":
	default:
		return fmt.Errorf("invalid mode %q, want openflow, ovsdb or mix", t.Mode)
	}
	if t.QuicAddr == "" || t.QuicPort == 0 {
		return fmt.Errorf("invalid quic address")
	}
	if t.LocalAddr == "" || t.LocalPort == 0 {
		return fmt.Errorf("invalid local address")
	}
	if t.IdleTimeoutSeconds == 0 {
		t.IdleTimeoutSeconds = 30
	}
	return nil
}
