package gateway

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dstargw/core/pkg/logger"
	"github.com/dstargw/core/pkg/reflector"
)

// hostFiles maps each reflector family to its host-file name (spec
// §4.5). XLX entries are stored with ProtocolDCS because XLX reflectors
// speak DCS on the radio side.
var hostFiles = []struct {
	name     string
	protocol reflector.Protocol
}{
	{"DExtra_hosts.txt", reflector.ProtocolDExtra},
	{"DCS_hosts.txt", reflector.ProtocolDCS},
	{"DPlus_hosts.txt", reflector.ProtocolDPlus},
	{"XLXHosts.txt", reflector.ProtocolDCS},
}

// DefaultRefreshCooldown is the minimum interval between downloaded
// host-file refreshes (spec §4.5: "default 24 h").
const DefaultRefreshCooldown = 24 * time.Hour

// HostsManager owns the gateway Cache and refreshes it from the
// internet/custom host-file directories (spec §4.5).
type HostsManager struct {
	cache       *Cache
	internetDir string
	customDir   string
	log         *logger.Logger

	mu          sync.Mutex
	refreshing  bool
	lastRefresh time.Time
	cooldown    time.Duration

	httpClient *http.Client
}

// NewHostsManager returns a manager backed by cache, reading the
// internet/custom directory pair from baseDir/internet and
// baseDir/custom.
func NewHostsManager(cache *Cache, baseDir string, log *logger.Logger) *HostsManager {
	return &HostsManager{
		cache:       cache,
		internetDir: filepath.Join(baseDir, "internet"),
		customDir:   filepath.Join(baseDir, "custom"),
		log:         log.WithComponent("gateway.hosts"),
		cooldown:    DefaultRefreshCooldown,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// SetCooldown overrides the default refresh cooldown (for tests and
// operators who want a tighter poll interval).
func (m *HostsManager) SetCooldown(d time.Duration) { m.cooldown = d }

// UpdateHosts performs one synchronous ingestion pass: every file in
// hostFiles is loaded from the internet directory, then the custom
// directory is overlaid on top with entries marked Locked (spec §4.5
// ingestion order). Files are loaded whether or not their protocol is
// enabled in the configuration; a missing file is skipped.
func (m *HostsManager) UpdateHosts() error {
	m.cache.Clear()

	for _, hf := range hostFiles {
		if err := m.loadFile(filepath.Join(m.internetDir, hf.name), hf.protocol, false); err != nil && !os.IsNotExist(err) {
			m.log.Warn("failed to load internet host file", logger.String("file", hf.name), logger.Error(err))
		}
	}
	for _, hf := range hostFiles {
		if err := m.loadFile(filepath.Join(m.customDir, hf.name), hf.protocol, true); err != nil && !os.IsNotExist(err) {
			m.log.Warn("failed to load custom host file", logger.String("file", hf.name), logger.Error(err))
		}
	}

	return nil
}

func (m *HostsManager) loadFile(path string, protocol reflector.Protocol, locked bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		rec, ok := parseHostLine(scanner.Text(), protocol, locked)
		if !ok {
			continue
		}
		m.cache.Insert(rec)
	}
	return scanner.Err()
}

// parseHostLine parses one "CALLSIGN ADDRESS [# comment]" line (spec
// §4.5, §6 "Host-file format"). Blank lines and comment-only lines yield
// ok=false.
func parseHostLine(line string, protocol reflector.Protocol, locked bool) (Record, bool) {
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return Record{}, false
	}

	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Record{}, false
	}

	callsign := upper(strings.TrimSpace(fields[0]))
	address := fields[1]
	port := reflectorPort(protocol)

	padded := string(trimOrPad(callsign, 7)) + "G"

	return Record{
		Callsign: padded,
		Address:  address,
		Port:     port,
		Protocol: protocol,
		Locked:   locked,
	}, true
}

func trimOrPad(s string, width int) []byte {
	b := make([]byte, width)
	for i := range b {
		b[i] = ' '
	}
	copy(b, s)
	if len(s) > width {
		copy(b, s[:width])
	}
	return b
}

// reflectorPort returns the conventional UDP port for each reflector
// family's host entries (spec §6 configuration surface names per-protocol
// ports only at the repeater/handler level; the hosts file itself carries
// no port column, so each family's default wire port applies).
func reflectorPort(protocol reflector.Protocol) int {
	switch protocol {
	case reflector.ProtocolDExtra:
		return 30001
	case reflector.ProtocolDCS:
		return 30051
	case reflector.ProtocolDPlus:
		return 20001
	default:
		return 0
	}
}

// RefreshAsync downloads each url in urls into the internet directory and
// re-runs UpdateHosts, guarded by a single-flight lock and the configured
// cooldown (spec §4.5: "a single-flight guard ... prevents concurrent
// refreshes within the configured cool-down").
func (m *HostsManager) RefreshAsync(urls map[reflector.Protocol]string) {
	m.mu.Lock()
	if m.refreshing || time.Since(m.lastRefresh) < m.cooldown {
		m.mu.Unlock()
		return
	}
	m.refreshing = true
	m.mu.Unlock()

	go func() {
		defer func() {
			m.mu.Lock()
			m.refreshing = false
			m.lastRefresh = time.Now()
			m.mu.Unlock()
		}()

		if err := os.MkdirAll(m.internetDir, 0o755); err != nil {
			m.log.Warn("failed to create internet host directory", logger.Error(err))
			return
		}

		for _, hf := range hostFiles {
			url, ok := urls[hf.protocol]
			if !ok || url == "" {
				continue
			}
			if err := m.download(url, filepath.Join(m.internetDir, hf.name)); err != nil {
				m.log.Warn("failed to download host file", logger.String("url", url), logger.Error(err))
			}
		}

		if err := m.UpdateHosts(); err != nil {
			m.log.Warn("failed to re-ingest host files after refresh", logger.Error(err))
		}
	}()
}

func (m *HostsManager) download(url, dest string) error {
	resp, err := m.httpClient.Get(url)
	if err != nil {
		return fmt.Errorf("gateway: download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway: download %s: status %s", url, resp.Status)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("gateway: write %s: %w", dest, err)
	}
	defer f.Close()

	_, err = io.Copy(f, resp.Body)
	return err
}
