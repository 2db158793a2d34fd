package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestLoad_UsesDefaults_WhenNoFile(t *testing.T) {
	viper.Reset()
	viper.Set("gateway.callsign", "W1AW")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Gateway.Type != "repeater" {
		t.Errorf("expected Gateway.Type default repeater, got %q", cfg.Gateway.Type)
	}
	if len(cfg.IRCDDB) != 1 || cfg.IRCDDB[0].Hostname != "ircv4.openquad.net" {
		t.Errorf("expected default ircddb server, got %+v", cfg.IRCDDB)
	}
	if !cfg.APRS.Enabled || cfg.APRS.Hostname != "rotate.aprs2.net" || cfg.APRS.Port != 14580 {
		t.Errorf("expected APRS defaults, got %+v", cfg.APRS)
	}
	if !cfg.Reflector.DExtra.Enabled || cfg.Reflector.DExtra.MaxDongles != 5 {
		t.Errorf("expected dextra defaults, got %+v", cfg.Reflector.DExtra)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected Logging.Level default info, got %q", cfg.Logging.Level)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Port != 9090 {
		t.Errorf("expected Metrics defaults, got %+v", cfg.Metrics)
	}
	if cfg.Database.Path != "data/dstargw.db" {
		t.Errorf("expected Database.Path default, got %q", cfg.Database.Path)
	}
}

func TestValidate_Errors(t *testing.T) {
	t.Run("missing gateway callsign", func(t *testing.T) {
		cfg := &Config{}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for missing gateway.callsign")
		}
	})

	t.Run("invalid gateway type", func(t *testing.T) {
		cfg := &Config{Gateway: GatewayConfig{Callsign: "W1AW", Type: "mobile"}}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for invalid gateway.type")
		}
	})

	t.Run("repeater missing callsign", func(t *testing.T) {
		cfg := &Config{
			Gateway:   GatewayConfig{Callsign: "W1AW"},
			Repeaters: []RepeaterConfig{{Band: "B", Port: 20010}},
		}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for repeater missing callsign")
		}
	})

	t.Run("repeater bad band", func(t *testing.T) {
		cfg := &Config{
			Gateway:   GatewayConfig{Callsign: "W1AW"},
			Repeaters: []RepeaterConfig{{Callsign: "W1AW", Band: "BB", Port: 20010}},
		}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for multi-letter band")
		}
	})

	t.Run("duplicate module", func(t *testing.T) {
		cfg := &Config{
			Gateway: GatewayConfig{Callsign: "W1AW"},
			Repeaters: []RepeaterConfig{
				{Callsign: "W1AW", Band: "B", Port: 20010},
				{Callsign: "W1AW", Band: "B", Port: 20011},
			},
		}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for duplicate module")
		}
	})

	t.Run("repeater port out of range", func(t *testing.T) {
		cfg := &Config{
			Gateway:   GatewayConfig{Callsign: "W1AW"},
			Repeaters: []RepeaterConfig{{Callsign: "W1AW", Band: "B", Port: 70000}},
		}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for out-of-range port")
		}
	})

	t.Run("repeater bad type", func(t *testing.T) {
		cfg := &Config{
			Gateway:   GatewayConfig{Callsign: "W1AW"},
			Repeaters: []RepeaterConfig{{Callsign: "W1AW", Band: "B", Port: 20010, Type: "yaesu"}},
		}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for invalid repeater.type")
		}
	})

	t.Run("bad reflector_reconnect", func(t *testing.T) {
		cfg := &Config{
			Gateway:   GatewayConfig{Callsign: "W1AW"},
			Repeaters: []RepeaterConfig{{Callsign: "W1AW", Band: "B", Port: 20010, ReflectorReconnect: "soon"}},
		}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for invalid reflector_reconnect")
		}
	})

	t.Run("reflector_reconnect minutes out of range", func(t *testing.T) {
		cfg := &Config{
			Gateway:   GatewayConfig{Callsign: "W1AW"},
			Repeaters: []RepeaterConfig{{Callsign: "W1AW", Band: "B", Port: 20010, ReflectorReconnect: "3"}},
		}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for reflector_reconnect below 5 minutes")
		}
	})

	t.Run("aprs enabled without hostname", func(t *testing.T) {
		cfg := &Config{
			Gateway: GatewayConfig{Callsign: "W1AW"},
			APRS:    APRSConfig{Enabled: true},
		}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for aprs enabled without hostname")
		}
	})

	t.Run("ircddb missing hostname", func(t *testing.T) {
		cfg := &Config{
			Gateway: GatewayConfig{Callsign: "W1AW"},
			IRCDDB:  []IRCDDBConfig{{Username: "x"}},
		}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for ircddb entry missing hostname")
		}
	})

	t.Run("reflector family bad max_dongles", func(t *testing.T) {
		cfg := &Config{
			Gateway: GatewayConfig{Callsign: "W1AW"},
			Reflector: ReflectorFamilyGroup{
				DCS: ReflectorFamilyConfig{Enabled: true, MaxDongles: 0},
			},
		}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for dcs.max_dongles out of range")
		}
	})

	t.Run("metrics enabled with bad port", func(t *testing.T) {
		cfg := &Config{
			Gateway: GatewayConfig{Callsign: "W1AW"},
			Metrics: MetricsConfig{Enabled: true, Port: -1},
		}
		if err := validate(cfg); err == nil {
			t.Fatal("expected error for invalid metrics.port")
		}
	})

	t.Run("valid minimal config", func(t *testing.T) {
		cfg := &Config{
			Gateway:   GatewayConfig{Callsign: "W1AW", Type: "hotspot"},
			Repeaters: []RepeaterConfig{{Callsign: "W1AW", Band: "B", Port: 20010, ReflectorReconnect: "never"}},
		}
		if err := validate(cfg); err != nil {
			t.Fatalf("expected no error for valid config, got: %v", err)
		}
	})
}

func TestValidReflectorReconnect(t *testing.T) {
	cases := map[string]bool{
		"":       true,
		"never":  true,
		"fixed":  true,
		"5":      true,
		"180":    true,
		"4":      false,
		"181":    false,
		"abc":    false,
		"-5":     false,
	}
	for in, want := range cases {
		if got := validReflectorReconnect(in); got != want {
			t.Errorf("validReflectorReconnect(%q) = %v, want %v", in, got, want)
		}
	}
}
