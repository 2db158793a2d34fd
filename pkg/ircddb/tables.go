package ircddb

import (
	"strings"
	"sync"
	"time"
)

// User is one ircDDB IRC participant (spec §3 "ircDDB user/repeater
// records").
type User struct {
	Nick string
	Host string
	Op   bool
	USN  int // user serial number, advances on each NICK change; a JOIN stores 0
}

// Repeater is one repeater→gateway mapping absorbed from the UPDATE
// stream (spec §3, §4.7 "Update language").
type Repeater struct {
	AreaCall    string // repeater callsign+module, e.g. "G4KLX  B"
	ZoneCall    string // owning gateway callsign, e.g. "G4KLX  G"
	LastChanged time.Time
}

// userTable is the mutex-guarded nick→User map (spec §5: "each protected
// by their own mutex; all public methods acquire exactly one mutex").
type userTable struct {
	mu    sync.RWMutex
	users map[string]User
}

func newUserTable() *userTable { return &userTable{users: make(map[string]User)} }

func (t *userTable) put(u User) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.users[u.Nick] = u
}

func (t *userTable) remove(nick string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.users, nick)
}

func (t *userTable) get(nick string) (User, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	u, ok := t.users[nick]
	return u, ok
}

func (t *userTable) snapshot() []User {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]User, 0, len(t.users))
	for _, u := range t.users {
		out = append(out, u)
	}
	return out
}

// repeaterTable is the mutex-guarded areaCall→Repeater map plus the
// monotonic maxTime high-water mark used to seed SENDLIST requests after
// reconnection (spec §3, §4.7, §8 invariant).
type repeaterTable struct {
	mu         sync.RWMutex
	repeaters  map[string]Repeater
	usersToRpt map[string]string // userCall -> repeaterCall, from the second UPDATE form
	maxTime    time.Time
}

func newRepeaterTable() *repeaterTable {
	return &repeaterTable{
		repeaters:  make(map[string]Repeater),
		usersToRpt: make(map[string]string),
	}
}

func (t *repeaterTable) putRepeater(r Repeater) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.repeaters[r.AreaCall] = r
	if r.LastChanged.After(t.maxTime) {
		t.maxTime = r.LastChanged
	}
}

func (t *repeaterTable) putUserRoute(userCall, repeaterCall string, lastChanged time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.usersToRpt[userCall] = repeaterCall
	if lastChanged.After(t.maxTime) {
		t.maxTime = lastChanged
	}
}

func (t *repeaterTable) find(areaCall string) (Repeater, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.repeaters[areaCall]
	return r, ok
}

func (t *repeaterTable) findUserRoute(userCall string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	r, ok := t.usersToRpt[userCall]
	return r, ok
}

func (t *repeaterTable) getMaxTime() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.maxTime
}

// moduleTable holds per-module metadata staged for periodic publication
// (spec §4.7 rptrQTH/rptrQRG/kickWatchdog).
type moduleTable struct {
	mu      sync.Mutex
	modules map[string]moduleState
}

type moduleState struct {
	qth           string
	qrg           string
	qthDirty      bool
	qrgDirty      bool
	lastWatchdog  time.Time
	watchdogDirty bool
}

func newModuleTable() *moduleTable { return &moduleTable{modules: make(map[string]moduleState)} }

func (t *moduleTable) stageQTH(module, qth string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.modules[module]
	s.qth = qth
	s.qthDirty = true
	t.modules[module] = s
}

func (t *moduleTable) stageQRG(module, qrg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.modules[module]
	s.qrg = qrg
	s.qrgDirty = true
	t.modules[module] = s
}

func (t *moduleTable) kickWatchdog(module string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.modules[module]
	s.lastWatchdog = time.Now()
	s.watchdogDirty = true
	t.modules[module] = s
}

// drainDirty returns and clears every module's pending QTH/QRG/watchdog
// updates, for the standby-state publisher to flush.
func (t *moduleTable) drainDirty() map[string]moduleState {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]moduleState)
	for module, s := range t.modules {
		if s.qthDirty || s.qrgDirty || s.watchdogDirty {
			out[module] = s
			s.qthDirty, s.qrgDirty, s.watchdogDirty = false, false, false
			t.modules[module] = s
		}
	}
	return out
}

// padKey normalizes a callsign to the 8-char space-padded form used as a
// table key: positions 0-6 the station, position 7 the module letter
// (spec §3 "Callsign"). The wire protocol escapes the padding spaces
// between station and module as underscores (e.g. "G4KLX_B"); padKey
// accepts either that escaped form or an already space-padded one and
// produces the same canonical key from both.
func padKey(s string) string {
	s = strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(s, "_", " ")))
	fields := strings.Fields(s)
	switch len(fields) {
	case 0:
		return strings.Repeat(" ", 8)
	case 1:
		base := fields[0]
		if len(base) >= 8 {
			return base[:8]
		}
		return base + strings.Repeat(" ", 8-len(base))
	default:
		module := fields[len(fields)-1]
		if len(module) > 1 {
			module = module[:1]
		}
		base := fields[0]
		if len(base) > 7 {
			base = base[:7]
		}
		return base + strings.Repeat(" ", 7-len(base)) + module
	}
}

// escapeCallsign renders a padKey'd callsign as a single wire token,
// collapsing the padding between station and module into one underscore
// (original_source/IRCDDBApp.cpp replaces each padding space with an
// underscore before sending; this client's padKey never produces more
// than one padding run, so one underscore suffices), e.g.
// "G4KLX  B" -> "G4KLX_B".
func escapeCallsign(key string) string {
	return strings.Join(strings.Fields(key), "_")
}
