package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/l1jgo/zonelights/internal/config"
	"github.com/l1jgo/zonelights/internal/core/event"
	coresys "github.com/l1jgo/zonelights/internal/core/system"
	"github.com/l1jgo/zonelights/internal/data"
	"github.com/l1jgo/zonelights/internal/lighting"
	"github.com/l1jgo/zonelights/internal/observer"
	"github.com/l1jgo/zonelights/internal/persist"
	"github.com/l1jgo/zonelights/internal/scripting"
	"github.com/l1jgo/zonelights/internal/sink"
	"github.com/l1jgo/zonelights/internal/system"
	"github.com/l1jgo/zonelights/internal/trace"
	"github.com/l1jgo/zonelights/internal/world"
	"github.com/l1jgo/zonelights/internal/zone"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "hash-token" {
		if err := hashToken(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// hashToken prints the bcrypt hash for observer.token_hash.
func hashToken(args []string) error {
	if len(args) != 1 || args[0] == "" {
		return errors.New("usage: zonelights hash-token <token>")
	}
	hash, err := observer.HashToken(args[0])
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(serverName string, serverID int) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m         L1JGO ZoneLights  v0.1.0          \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        區域光源排程 · Go 伺服器           \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1m伺服器:\033[0m %s \033[90m(編號: %d)\033[0m\n\n", serverName, serverID)
}

// displayWidth counts CJK runes as two columns.
func displayWidth(s string) int {
	w := 0
	for _, r := range s {
		if r > 0x7F {
			w += 2
		} else {
			w++
		}
	}
	return w
}

func printSection(title string) {
	lineLen := max(46-displayWidth(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := fmt.Sprintf("%d", count)
	dotsLen := max(42-displayWidth(label)-len(numStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printWarn(msg string) {
	fmt.Printf("  \033[33m!\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main server logic ─────────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/server.toml"
	if p := os.Getenv("ZONELIGHTS_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Server.Name, cfg.Server.ID)

	// 3. Zone data (YAML)
	printSection("區域資料")
	var table *data.ZoneTable
	table, err = data.LoadZoneTable(cfg.Zones.File)
	switch {
	case err == nil:
		printStat("區域", table.Count())
		printStat("光源", table.LightCount())
	case cfg.Zones.Source == "yaml":
		return fmt.Errorf("zone data: %w", err)
	case errors.Is(err, fs.ErrNotExist):
		printWarn(fmt.Sprintf("找不到 %s，略過", cfg.Zones.File))
	default:
		return fmt.Errorf("zone data: %w", err)
	}

	scripts, err := scripting.NewEngine(cfg.Zones.ScriptsDir, log)
	if err != nil {
		return fmt.Errorf("zone scripts: %w", err)
	}
	defer scripts.Close()
	printOK(fmt.Sprintf("Lua 腳本載入完成 (%s)", cfg.Zones.ScriptsDir))
	fmt.Println()

	// 4. Database (optional)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, closeDB, err := openRepo(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer closeDB()
	if repo != nil && cfg.Database.SeedFromYAML && table != nil {
		if err := seedZones(ctx, repo, table); err != nil {
			return fmt.Errorf("seed zones: %w", err)
		}
		printOK(fmt.Sprintf("已從 YAML 匯入 %d 個區域", table.Count()))
	}
	if repo != nil {
		ids, err := repo.ZoneIDs(ctx)
		if err != nil {
			return fmt.Errorf("list zones: %w", err)
		}
		printStat("資料庫區域", len(ids))
		fmt.Println()
	}

	// 5. Sinks and frame consumers
	frames := sink.NewFrameBuffer()
	renderSink := sink.Multi{sink.NewLogSink(log), frames}

	var srv *observer.Server
	if cfg.Observer.Enabled {
		printSection("觀察者")
		hub := observer.NewHub(cfg.Server.Name, cfg.Observer.QueueSize, log)
		frames.Subscribe(hub)
		go hub.Run(ctx)
		srv = observer.NewServer(cfg.Observer, hub, log)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("observer: %w", err)
		}
		printOK(fmt.Sprintf("監聽位址 %s", srv.Addr()))
		if cfg.Observer.TokenHash == "" {
			printWarn("未設定 token_hash，僅允許本機連線")
		}
		fmt.Println()
	}

	traceDone := make(chan struct{})
	if cfg.Trace.Enabled {
		rec := trace.NewRecorder(cfg.Trace.Dir, 256, log)
		frames.Subscribe(rec)
		go func() {
			rec.Run(ctx)
			log.Info("trace closed", zap.Strings("files", rec.Files()), zap.Uint64("dropped", rec.Dropped()))
			close(traceDone)
		}()
	} else {
		close(traceDone)
	}

	// 6. Zone manager
	bus := event.NewBus()
	mgr := zone.NewManager(
		schedulerParams(cfg.Lighting),
		lighting.CatalogOptions{
			BaseIntensity: cfg.Lighting.BaseIntensity,
			Range:         cfg.Lighting.LightRange,
			Capacity:      cfg.Octree.Capacity,
			MaxDepth:      cfg.Octree.MaxDepth,
		},
		zoneSources(cfg.Zones.Source, table, repo, scripts),
		renderSink,
		bus,
		log,
	)

	var activated, hidden int
	event.Subscribe(bus, func(event.LightActivated) { activated++ })
	event.Subscribe(bus, func(event.LightHidden) { hidden++ })
	event.Subscribe(bus, func(e event.ZoneLoaded) {
		log.Debug("zone ready", zap.Int32("zone", e.ZoneID), zap.Int("lights", e.Lights))
	})

	if len(cfg.Zones.Rotation) == 0 {
		return errors.New("zones.rotation is empty")
	}
	if _, err := mgr.Load(ctx, cfg.Zones.Rotation[0]); err != nil {
		return fmt.Errorf("initial zone: %w", err)
	}

	// 7. Systems
	cam := world.NewCamera()
	lightingSys := system.NewLightingSystem(mgr, cam, bus)
	runner := coresys.NewRunner()
	runner.Register(system.NewCameraSystem(cam, mgr))
	runner.Register(system.NewEventDispatchSystem(bus))
	runner.Register(system.NewZoneRotationSystem(mgr, cfg.Zones.Rotation, cfg.Zones.Dwell, log))
	runner.Register(lightingSys)
	runner.Register(system.NewStatsSystem(mgr, runner, 30*time.Second, log))

	// 8. Start loop
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Loop.TickRate)
	defer ticker.Stop()

	printSection("伺服器就緒")
	printReady(fmt.Sprintf("區域 %d (%s)", mgr.Active().ID, mgr.Active().Name))
	printReady(fmt.Sprintf("主迴圈啟動 (tick: %s, 更新間隔: %s)", cfg.Loop.TickRate, cfg.Lighting.UpdateInterval))
	fmt.Println()

	last := time.Now()
	for {
		select {
		case now := <-ticker.C:
			runner.Tick(now.Sub(last))
			last = now
		case sig := <-shutdownCh:
			log.Info("收到關閉信號", zap.String("signal", sig.String()))
			mgr.Unload()
			if srv != nil {
				shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
				if err := srv.Shutdown(shutCtx); err != nil {
					log.Warn("observer shutdown", zap.Error(err))
				}
				shutCancel()
			}
			cancel()
			<-traceDone
			log.Info("伺服器已停止",
				zap.Uint64("frames", lightingSys.Frames()),
				zap.Int("activations", activated),
				zap.Int("hides", hidden),
			)
			return nil
		}
	}
}

func schedulerParams(c config.LightingConfig) lighting.Params {
	return lighting.Params{
		UpdateInterval: c.UpdateInterval,
		MaxQueryRadius: c.MaxQueryRadius,
		MaxActive:      c.MaxActive,
		FadeRate:       c.FadeRate,
		OffThreshold:   c.OffThreshold,
		FadeStep:       lighting.FadeStep(c.FadeStep),
	}
}

// zoneSources puts the preferred source first, the rest follow in
// yaml, database, script order. Unavailable sources are left out.
func zoneSources(preferred string, table *data.ZoneTable, repo persist.ZoneRepo, scripts *scripting.Engine) []zone.Source {
	all := map[string]zone.Source{}
	if table != nil {
		all["yaml"] = zone.TableSource{Table: table}
	}
	if repo != nil {
		all["database"] = zone.RepoSource{Repo: repo, Fallback: table}
	}
	if scripts != nil {
		all["script"] = zone.ScriptSource{Engine: scripts}
	}

	var out []zone.Source
	if s, ok := all[preferred]; ok {
		out = append(out, s)
	}
	for _, name := range []string{"yaml", "database", "script"} {
		if s, ok := all[name]; ok && name != preferred {
			out = append(out, s)
		}
	}
	return out
}

// openRepo connects the configured zone database. With no driver it returns
// a nil repo and a no-op closer.
func openRepo(ctx context.Context, cfg config.DatabaseConfig, log *zap.Logger) (persist.ZoneRepo, func(), error) {
	switch cfg.Driver {
	case "postgres":
		printSection("資料庫")
		connCtx, connCancel := context.WithTimeout(ctx, 30*time.Second)
		defer connCancel()
		db, err := persist.NewDB(connCtx, cfg, log)
		if err != nil {
			return nil, nil, err
		}
		printOK("PostgreSQL 連線成功")
		if err := db.Migrate(connCtx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrations: %w", err)
		}
		printOK("資料庫遷移完成")
		return persist.NewPGZoneRepo(db), db.Close, nil
	case "sqlite":
		printSection("資料庫")
		db, err := persist.OpenSQLite(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, nil, err
		}
		printOK(fmt.Sprintf("SQLite 開啟成功 (%s)", cfg.SQLitePath))
		return persist.NewSQLiteZoneRepo(db), func() { _ = db.Close() }, nil
	default:
		return nil, func() {}, nil
	}
}

func seedZones(ctx context.Context, repo persist.ZoneRepo, table *data.ZoneTable) error {
	for _, id := range table.IDs() {
		z := table.Get(id)
		if err := repo.ReplaceZone(ctx, z.ZoneID, z.Name, z.Lights); err != nil {
			return err
		}
	}
	return nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
