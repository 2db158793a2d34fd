package config

import (
	"fmt"
	"strings"
)

// validate checks mandatory fields, returning a ConfigInvalid-shaped error
// (spec §7) that causes the caller to refuse to start (exit code 1).
func validate(cfg *Config) error {
	if cfg.Gateway.Callsign == "" {
		return fmt.Errorf("gateway.callsign is required")
	}

	validGatewayTypes := map[string]bool{"repeater": true, "hotspot": true}
	if cfg.Gateway.Type != "" && !validGatewayTypes[cfg.Gateway.Type] {
		return fmt.Errorf("gateway.type must be repeater or hotspot, got %q", cfg.Gateway.Type)
	}

	seenModules := make(map[string]bool)
	for i, rpt := range cfg.Repeaters {
		if rpt.Callsign == "" {
			return fmt.Errorf("repeaters[%d]: callsign is required", i)
		}
		if len(rpt.Band) != 1 {
			return fmt.Errorf("repeaters[%d]: band must be a single module letter", i)
		}
		key := rpt.Callsign + rpt.Band
		if seenModules[key] {
			return fmt.Errorf("repeaters[%d]: duplicate module %s%s", i, rpt.Callsign, rpt.Band)
		}
		seenModules[key] = true

		if rpt.Port <= 0 || rpt.Port > 65535 {
			return fmt.Errorf("repeaters[%d]: port must be between 1 and 65535", i)
		}

		rt := strings.ToUpper(rpt.Type)
		if rt != "" && rt != "HB" && rt != "ICOM" {
			return fmt.Errorf("repeaters[%d]: type must be hb or icom", i)
		}

		if !validReflectorReconnect(rpt.ReflectorReconnect) {
			return fmt.Errorf("repeaters[%d]: reflector_reconnect must be never, fixed, or 5..180 minutes", i)
		}
	}

	if cfg.APRS.Enabled && cfg.APRS.Hostname == "" {
		return fmt.Errorf("aprs.hostname is required when aprs is enabled")
	}

	for i, peer := range cfg.IRCDDB {
		if peer.Hostname == "" {
			return fmt.Errorf("ircddb[%d]: hostname is required", i)
		}
	}

	for _, fam := range []struct {
		name string
		cfg  ReflectorFamilyConfig
	}{
		{"dextra", cfg.Reflector.DExtra},
		{"dcs", cfg.Reflector.DCS},
		{"dplus", cfg.Reflector.DPlus},
		{"xlx", cfg.Reflector.XLX},
	} {
		if fam.cfg.Enabled && (fam.cfg.MaxDongles < 1 || fam.cfg.MaxDongles > 5) {
			return fmt.Errorf("reflectors.%s.max_dongles must be between 1 and 5", fam.name)
		}
	}

	if cfg.Metrics.Enabled && (cfg.Metrics.Port <= 0 || cfg.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be between 1 and 65535")
	}

	return nil
}

// validReflectorReconnect checks the reflector_reconnect grammar from
// spec §6: "never", "fixed", or an integer 5..180 (minutes).
func validReflectorReconnect(v string) bool {
	if v == "" || v == "never" || v == "fixed" {
		return true
	}

	minutes := 0
	if _, err := fmt.Sscanf(v, "%d", &minutes); err != nil {
		return false
	}
	return minutes >= 5 && minutes <= 180
}
