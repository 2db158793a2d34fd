package ircddb

import (
	"testing"
	"time"

	"github.com/dstargw/core/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error"})
}

func TestElectServerPrefersExactMatch(t *testing.T) {
	users := []User{
		{Nick: "s-A1ABC", Op: true},
		{Nick: "s-B2DEF", Op: true},
		{Nick: "plainuser", Op: true},
	}
	got := electServer(users, "s-B2DEF")
	if got != "s-B2DEF" {
		t.Fatalf("want exact match s-B2DEF, got %s", got)
	}
}

func TestElectServerPrefixFallback(t *testing.T) {
	users := []User{
		{Nick: "s-A1ABCxyz", Op: true},
	}
	got := electServer(users, "s-A1ABC99")
	if got != "s-A1ABCxyz" {
		t.Fatalf("want prefix match, got %s", got)
	}
}

func TestElectServerIgnoresNonOps(t *testing.T) {
	users := []User{
		{Nick: "s-notop", Op: false},
	}
	if got := electServer(users, ""); got != "" {
		t.Fatalf("want no candidate, got %s", got)
	}
}

func TestParseDDBCommand(t *testing.T) {
	cmd, ok := parseDDBCommand("UPDATE 2023-06-01 12:00:00 G4KLX_B G4KLX_G")
	if !ok {
		t.Fatal("expected to parse")
	}
	if cmd.kind != "UPDATE" || len(cmd.fields) != 4 {
		t.Fatalf("got %+v", cmd)
	}
}

func TestParseDDBCommandRejectsUnknownKind(t *testing.T) {
	if _, ok := parseDDBCommand("PRIVMSG not a ddb command"); ok {
		t.Fatal("expected unknown keyword to be rejected")
	}
}

func TestParseDateTimeRoundTrip(t *testing.T) {
	now := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	date, clock := formatDateTime(now)
	got, ok := parseDateTime(date, clock)
	if !ok || !got.Equal(now) {
		t.Fatalf("round trip failed: got %v", got)
	}
}

func TestApplyUpdateRepeaterBinding(t *testing.T) {
	c := New(Config{Nick: "dstargw"}, testLogger())
	date, clock := formatDateTime(time.Now())
	c.applyUpdate(ddbCommand{kind: "UPDATE", fields: []string{date, clock, "G4KLX_B", "G4KLX_G"}})

	r, ok := c.repeaters.find(padKey("G4KLX  B"))
	if !ok {
		t.Fatal("expected repeater binding to be stored")
	}
	if r.ZoneCall != padKey("G4KLX  G") {
		t.Fatalf("got zone call %q", r.ZoneCall)
	}
}

func TestApplyUpdateUserRoute(t *testing.T) {
	c := New(Config{Nick: "dstargw"}, testLogger())
	date, clock := formatDateTime(time.Now())
	c.applyUpdate(ddbCommand{kind: "UPDATE", fields: []string{"1", date, clock, "G1ABC", "G4KLX_B"}})

	rpt, ok := c.repeaters.findUserRoute(padKey("G1ABC"))
	if !ok {
		t.Fatal("expected user route to be stored")
	}
	if rpt != padKey("G4KLX  B") {
		t.Fatalf("got repeater call %q", rpt)
	}
}

// TestApplyUpdateFromWireLineScenario feeds the exact ircDDB line from
// spec §8 scenario 5 through the real IRC line parser and asserts the
// resulting repeater-table state.
func TestApplyUpdateFromWireLineScenario(t *testing.T) {
	c := New(Config{Nick: "dstargw", Channel: "#dstar"}, testLogger())

	l, ok := parseIRCLine(":s-x!~u@h PRIVMSG #dstar :UPDATE 2023-06-01 12:00:00 G4KLX_B G4KLX_G")
	if !ok {
		t.Fatal("expected IRC line to parse")
	}
	c.onPrivmsg(l)

	r, ok := c.repeaters.find(padKey("G4KLX  B"))
	if !ok {
		t.Fatal("expected repeater table to contain G4KLX  B")
	}
	if r.ZoneCall != padKey("G4KLX  G") {
		t.Fatalf("got zone call %q", r.ZoneCall)
	}
	want := time.Date(2023, 6, 1, 12, 0, 0, 0, time.UTC)
	if !r.LastChanged.Equal(want) {
		t.Fatalf("got lastChanged %v, want %v", r.LastChanged, want)
	}
	if c.repeaters.getMaxTime().Before(want) {
		t.Fatalf("maxTime %v did not advance to %v", c.repeaters.getMaxTime(), want)
	}
}

func TestIsReflectorCallsign(t *testing.T) {
	cases := map[string]bool{
		"XRF001 G": true,
		"REF030 G": true,
		"DCS123 G": true,
		"XLX456 G": true,
		"G4KLX  G": false,
	}
	for in, want := range cases {
		if got := isReflectorCallsign(in); got != want {
			t.Errorf("isReflectorCallsign(%q) = %v, want %v", in, got, want)
		}
	}
}

