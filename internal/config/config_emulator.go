package config

import (
	"fmt"
	"time"
)

const (
	defaultEmulatorAddress = "localhost:9000"
	defaultKeepAlive       = 30 * time.Second
)

// EmulatorConfig holds the settings of the local emulator of the remote store.
type EmulatorConfig struct {
	Address   string
	AuthToken string
	KeepAlive time.Duration
}

// GetEmulatorConfig builds the emulator view of the merged configuration.
func GetEmulatorConfig(args []string) (*EmulatorConfig, error) {
	cfg, err := GetStructuredConfig(args)
	if err != nil {
		return nil, fmt.Errorf("error get structured config: %w", err)
	}

	emuCfg := &EmulatorConfig{
		Address:   withDefault(cfg.Server.Address, defaultEmulatorAddress),
		AuthToken: cfg.Server.AuthToken,
		KeepAlive: withDefault(cfg.Server.KeepAlive, defaultKeepAlive),
	}

	return emuCfg, emuCfg.validate()
}
