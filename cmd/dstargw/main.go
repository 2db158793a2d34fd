package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dstargw/core/pkg/aprs"
	"github.com/dstargw/core/pkg/clockbus"
	"github.com/dstargw/core/pkg/config"
	"github.com/dstargw/core/pkg/database"
	"github.com/dstargw/core/pkg/gateway"
	"github.com/dstargw/core/pkg/ircddb"
	"github.com/dstargw/core/pkg/localrepeater"
	"github.com/dstargw/core/pkg/logger"
	"github.com/dstargw/core/pkg/metrics"
	"github.com/dstargw/core/pkg/reflector"
	"github.com/dstargw/core/pkg/reflectorpool"
	"github.com/dstargw/core/pkg/scheduler"
)

var (
	version   = "dev"
	gitCommit = "unknown"
	buildTime = "unknown"
)

// Exit codes per the gateway's external contract: 0 clean shutdown, 1
// config load/validation failure, 2 fatal startup failure (port bind,
// database), 3 unexpected crash.
const (
	exitOK              = 0
	exitConfigInvalid   = 1
	exitFatal           = 2
	exitUnexpectedCrash = 3
)

func main() {
	os.Exit(run())
}

func run() (code int) {
	log := logger.New(logger.Config{Level: "info", Format: "text"})
	defer func() {
		if r := recover(); r != nil {
			log.Error("unexpected crash", logger.String("panic", fmt.Sprint(r)))
			code = exitUnexpectedCrash
		}
	}()

	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	validateOnly := flag.Bool("validate", false, "Validate configuration and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("dstargw %s\n", version)
		fmt.Printf("Git Commit: %s\n", gitCommit)
		fmt.Printf("Built: %s\n", buildTime)
		return exitOK
	}

	log.Info("starting dstargw", logger.String("version", version), logger.String("commit", gitCommit))

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Error("failed to load configuration", logger.Error(err))
		return exitConfigInvalid
	}

	if *validateOnly {
		log.Info("configuration is valid")
		return exitOK
	}

	log = logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	log.Debug("debug logging enabled")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup

	metricsCollector := metrics.NewCollector()

	db, err := database.NewDB(database.Config{Path: cfg.Database.Path}, log.WithComponent("database"))
	if err != nil {
		log.Error("failed to initialize database", logger.Error(err))
		return exitFatal
	}
	defer db.Close()
	linkRepo := database.NewLinkSessionRepository(db.GetDB())

	if cfg.Metrics.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			metricsServer := metrics.NewPrometheusServer(
				metrics.PrometheusConfig{Enabled: true, Port: cfg.Metrics.Port, Path: cfg.Metrics.Path},
				metricsCollector,
				log.WithComponent("metrics"),
			)
			if err := metricsServer.Start(ctx); err != nil && err != context.Canceled {
				log.Error("prometheus metrics server error", logger.Error(err))
			}
		}()
		log.Info("prometheus metrics server started", logger.Int("port", cfg.Metrics.Port), logger.String("path", cfg.Metrics.Path))
	}

	gatewayCache := gateway.NewCache()
	hostsManager := gateway.NewHostsManager(gatewayCache, "data/hosts", log.WithComponent("gateway"))
	if err := hostsManager.UpdateHosts(); err != nil {
		log.Warn("initial hosts-file ingestion failed", logger.Error(err))
	}
	log.Info("gateway cache ready", logger.Int("records", gatewayCache.Len()))

	hostfileURLs := map[reflector.Protocol]string{}
	if cfg.Reflector.DExtra.HostfileURL != "" {
		hostfileURLs[reflector.ProtocolDExtra] = cfg.Reflector.DExtra.HostfileURL
	}
	if cfg.Reflector.DCS.HostfileURL != "" {
		hostfileURLs[reflector.ProtocolDCS] = cfg.Reflector.DCS.HostfileURL
	}
	if cfg.Reflector.DPlus.HostfileURL != "" {
		hostfileURLs[reflector.ProtocolDPlus] = cfg.Reflector.DPlus.HostfileURL
	}

	sched, err := scheduler.New(log.WithComponent("scheduler"))
	if err != nil {
		log.Error("failed to initialize scheduler", logger.Error(err))
		return exitFatal
	}
	sched.Start()
	defer sched.Stop()

	if len(hostfileURLs) > 0 {
		if err := sched.EveryInterval("gateway-hosts-refresh", time.Hour, func() {
			hostsManager.RefreshAsync(hostfileURLs)
			metricsCollector.HostsLastRefresh.SetToCurrentTime()
		}); err != nil {
			log.Warn("failed to schedule hosts-file refresh", logger.Error(err))
		}
	}

	pools := buildReflectorPools(cfg, log)
	defer func() {
		for _, p := range pools {
			p.CloseAll()
		}
	}()

	bus := clockbus.NewBus()
	for _, p := range pools {
		bus.Register(p)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		bus.Run(ctx, 10*time.Millisecond)
	}()

	if cfg.APRS.Enabled {
		call, ssid := splitCallsignSSID(cfg.Gateway.Callsign)
		aprsClient := aprs.New(aprs.Config{
			Hostname: cfg.APRS.Hostname,
			Port:     cfg.APRS.Port,
			Callsign: call,
			SSID:     ssid,
			Passcode: cfg.APRS.Password,
			Product:  "dstargw " + version,
		}, log.WithComponent("aprs"))

		wg.Add(1)
		go func() {
			defer wg.Done()
			aprsClient.Start(ctx)
		}()
		log.Info("aprs-is client started", logger.String("hostname", cfg.APRS.Hostname))
	}

	for i, peerCfg := range cfg.IRCDDB {
		nick := "dstargw" + strings.TrimSpace(strings.ToLower(strings.ReplaceAll(cfg.Gateway.Callsign, "/", "")))
		if i > 0 {
			nick = fmt.Sprintf("%s%d", nick, i)
		}
		client := ircddb.New(ircddb.Config{
			Hostname: peerCfg.Hostname,
			Port:     9007,
			Nick:     nick,
			Password: peerCfg.Password,
			Channel:  "#dstar",
		}, log.WithComponent("ircddb"))

		wg.Add(1)
		go func(c *ircddb.Client) {
			defer wg.Done()
			c.Run(ctx)
		}(client)
		log.Info("ircddb client started", logger.String("hostname", peerCfg.Hostname))

		if err := sched.EveryInterval(fmt.Sprintf("ircddb-publish-%d", i), 30*time.Second, client.PublishPending); err != nil {
			log.Warn("failed to schedule ircddb publish job", logger.Error(err))
		}
	}

	for _, rptCfg := range cfg.Repeaters {
		rpt := localrepeater.New(rptCfg, gatewayCache, pools, linkRepo, metricsCollector, log)
		wg.Add(1)
		go func(rc config.RepeaterConfig, r *localrepeater.Repeater) {
			defer wg.Done()
			if err := r.Start(ctx); err != nil && err != context.Canceled {
				log.Error("local repeater port error", logger.String("callsign", rc.Callsign), logger.Error(err))
			}
		}(rptCfg, rpt)
		log.Info("local repeater port configured",
			logger.String("callsign", rptCfg.Callsign),
			logger.String("band", rptCfg.Band),
			logger.Int("port", rptCfg.Port))
	}

	log.Info("dstargw initialized", logger.String("gateway", cfg.Gateway.Callsign))

	sig := <-sigChan
	log.Info("received shutdown signal", logger.String("signal", sig.String()))

	cancel()
	wg.Wait()

	log.Info("dstargw stopped")
	return exitOK
}

// buildReflectorPools constructs one reflectorpool.Pool per enabled
// reflector family, each bound to its own local UDP port range. XLX rides
// on the DCS protocol's pool (spec §4.5: XLX reflectors speak DCS on the
// radio side).
func buildReflectorPools(cfg *config.Config, log *logger.Logger) map[reflector.Protocol]*reflectorpool.Pool {
	bindAddr := net.ParseIP(cfg.Gateway.Address)
	if bindAddr == nil {
		bindAddr = net.IPv4zero
	}

	pools := make(map[reflector.Protocol]*reflectorpool.Pool)

	if cfg.Reflector.DExtra.Enabled {
		pools[reflector.ProtocolDExtra] = reflectorpool.New(dextraFactory, log, bindAddr, 40000, 40000+dongleRange(cfg.Reflector.DExtra.MaxDongles))
	}
	if cfg.Reflector.DCS.Enabled || cfg.Reflector.XLX.Enabled {
		maxDongles := cfg.Reflector.DCS.MaxDongles
		if cfg.Reflector.XLX.MaxDongles > maxDongles {
			maxDongles = cfg.Reflector.XLX.MaxDongles
		}
		pools[reflector.ProtocolDCS] = reflectorpool.New(dcsFactory, log, bindAddr, 40100, 40100+dongleRange(maxDongles))
	}
	if cfg.Reflector.DPlus.Enabled {
		pools[reflector.ProtocolDPlus] = reflectorpool.New(dplusFactory, log, bindAddr, 40200, 40200+dongleRange(cfg.Reflector.DPlus.MaxDongles))
	}

	return pools
}

func dongleRange(maxDongles int) int {
	if maxDongles <= 0 {
		maxDongles = 5
	}
	return maxDongles * 10
}

func dextraFactory(localAddr *net.UDPAddr, log *logger.Logger) (reflector.Handler, error) {
	return reflector.NewDExtraHandler(localAddr, log)
}

func dcsFactory(localAddr *net.UDPAddr, log *logger.Logger) (reflector.Handler, error) {
	return reflector.NewDCSHandler(localAddr, log)
}

func dplusFactory(localAddr *net.UDPAddr, log *logger.Logger) (reflector.Handler, error) {
	return reflector.NewDPlusHandler(localAddr, log)
}

// splitCallsignSSID splits "CALL-SSID" into its two parts; SSID is empty
// if callsign carries none.
func splitCallsignSSID(callsign string) (call, ssid string) {
	if idx := strings.IndexByte(callsign, '-'); idx >= 0 {
		return callsign[:idx], callsign[idx+1:]
	}
	return callsign, ""
}
