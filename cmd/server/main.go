package main

import (
	"context"
	"crypto/rand"
	"flag"
	"fmt"
	"log"
	mrand "math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/annel0/dog-gatherer/internal/api"
	"github.com/annel0/dog-gatherer/internal/app"
	"github.com/annel0/dog-gatherer/internal/auth"
	"github.com/annel0/dog-gatherer/internal/config"
	"github.com/annel0/dog-gatherer/internal/eventbus"
	"github.com/annel0/dog-gatherer/internal/logging"
	"github.com/annel0/dog-gatherer/internal/observability"
	"github.com/annel0/dog-gatherer/internal/records"
	"github.com/annel0/dog-gatherer/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
)

// flags - параметры командной строки поверх YAML конфигурации
type flags struct {
	configPath   string
	mapsFile     string
	wwwRoot      string
	tickPeriod   int
	randomSpawn  bool
	stateFile    string
	savePeriod   int
	hashPassword string
}

func parseFlags() *flags {
	f := &flags{}
	flag.StringVar(&f.configPath, "config", "", "YAML конфигурация сервера (по умолчанию $GAME_CONFIG)")
	flag.StringVar(&f.mapsFile, "maps-file", "", "JSON файл с картами")
	flag.StringVar(&f.mapsFile, "c", "", "сокращение для --maps-file")
	flag.StringVar(&f.wwwRoot, "www-root", "", "каталог статических файлов")
	flag.IntVar(&f.tickPeriod, "tick-period", -1, "период тика в мс; 0 - ручные тики через API")
	flag.BoolVar(&f.randomSpawn, "randomize-spawn-points", false, "появление собак в случайной точке дороги")
	flag.StringVar(&f.stateFile, "state-file", "", "файл сохранения состояния")
	flag.IntVar(&f.savePeriod, "save-state-period", -1, "период автосохранения в мс игрового времени")
	flag.StringVar(&f.hashPassword, "hash-password", "", "вывести bcrypt-хеш пароля администратора и выйти")
	flag.Parse()
	return f
}

// apply переносит явно заданные флаги в конфигурацию
func (f *flags) apply(cfg *config.Config) {
	if f.mapsFile != "" {
		cfg.Game.MapsFile = f.mapsFile
	}
	if f.wwwRoot != "" {
		cfg.Server.WWWRoot = f.wwwRoot
	}
	if f.tickPeriod >= 0 {
		cfg.Game.TickPeriodMs = f.tickPeriod
	}
	if f.randomSpawn {
		cfg.Game.RandomizeSpawnPoints = true
	}
	if f.stateFile != "" {
		cfg.State.Backend = "file"
		cfg.State.Path = f.stateFile
	}
	if f.savePeriod >= 0 {
		cfg.State.SavePeriodMs = f.savePeriod
	}
}

func main() {
	f := parseFlags()

	if f.hashPassword != "" {
		hash, err := auth.HashPassword(f.hashPassword)
		if err != nil {
			log.Fatalf("❌ Ошибка хеширования пароля: %v", err)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		log.Fatalf("❌ Ошибка загрузки конфигурации: %v", err)
	}
	f.apply(cfg)
	if cfg.Game.MapsFile == "" {
		log.Fatalf("❌ Не задан файл карт (--maps-file или game.maps_file)")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Неверная конфигурация: %v", err)
	}

	// Инициализируем систему логирования
	if cfg.Logging.Dir != "" {
		logging.SetLogDir(cfg.Logging.Dir)
	}
	if err := logging.InitDefaultLogger("server"); err != nil {
		log.Fatalf("❌ Ошибка инициализации логирования: %v", err)
	}
	defer logging.CloseDefaultLogger()
	defer logging.GetLoggerManager().CloseAll()
	if level, err := logging.ParseLevel(cfg.Logging.Level); err == nil {
		logging.SetDefaultLevel(level)
	}

	if err := run(cfg); err != nil {
		logging.Error("❌ %v", err)
		logging.GetLoggerManager().CloseAll()
		logging.CloseDefaultLogger()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logging.Info("🐕 Запуск сервера собирателей трофеев...")

	// === ТРАССИРОВКА ===
	if cfg.Telemetry.Enabled {
		shutdown, err := observability.InitTelemetry(ctx, observability.Options{
			ServiceName: cfg.Telemetry.ServiceName,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			SampleRatio: cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			logging.Warn("⚠️ OpenTelemetry не инициализирован: %v", err)
		} else {
			defer shutdown(context.Background())
		}
	}

	// === КАРТЫ ===
	game, err := config.LoadMaps(cfg.Game.MapsFile)
	if err != nil {
		return err
	}
	game.SetMaxDogsPerSession(cfg.Game.MaxDogsPerSession)
	logging.Info("🗺️ Загружено карт: %d из %s", len(game.Maps()), cfg.Game.MapsFile)

	// === ШИНА СОБЫТИЙ ===
	rawBus, err := newEventBus(cfg.EventBus)
	if err != nil {
		return err
	}
	// игровой цикл публикует через очередь и не ждёт NATS или подписчиков
	bus := eventbus.NewOutbox(rawBus, eventbus.DefaultOutboxSize, eventbus.DefaultPublishTimeout)
	defer bus.Close()
	eventbus.Init(bus)

	if _, err := eventbus.StartLoggingListener(bus); err != nil {
		logging.Warn("⚠️ Не удалось запустить логирование событий: %v", err)
	}
	busMetrics := eventbus.NewMetricsExporter(bus, prometheus.DefaultRegisterer)
	busMetrics.Start(5 * time.Second)
	defer busMetrics.Stop()

	// === РЕКОРДЫ ===
	repo, err := newRecordsRepo(ctx, cfg.Records)
	if err != nil {
		return err
	}
	defer repo.Close()
	if _, err := records.NewListener(repo).Start(ctx, bus); err != nil {
		return fmt.Errorf("подписка таблицы рекордов: %w", err)
	}

	// === СОСТОЯНИЕ ===
	store, err := newStateStore(ctx, cfg.State)
	if err != nil {
		return err
	}
	defer store.Close()

	application := app.NewApplication(game, app.Options{
		RandomizeSpawn: cfg.Game.RandomizeSpawnPoints,
		Rand:           mrand.New(mrand.NewSource(time.Now().UnixNano())),
		TokenSource:    rand.Reader,
	})
	loop := app.NewLoop(application, app.LoopConfig{
		TickPeriod: cfg.Game.TickPeriod(),
		SavePeriod: cfg.State.SavePeriod(),
		Store:      store,
		Compress:   cfg.State.Compress,
		Metrics:    app.NewLoopMetrics(prometheus.DefaultRegisterer),
	})
	if _, err := loop.Restore(ctx); err != nil {
		return fmt.Errorf("восстановление состояния: %w", err)
	}
	loop.Start(ctx)

	// === АДМИНИСТРАТОР ===
	var admin *auth.AdminAuthenticator
	if cfg.Admin.PasswordHash != "" {
		jwtManager, err := auth.NewJWTManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL())
		if err != nil {
			return err
		}
		admin = auth.NewAdminAuthenticator(cfg.Admin.Username, cfg.Admin.PasswordHash, jwtManager)
		logging.Info("🔐 Админский API включен для %s", cfg.Admin.Username)
	}

	// === REST API ===
	restPort := cfg.Server.GetRESTPort()
	server := api.NewRestServer(api.Config{
		Addr:        fmt.Sprintf(":%d", restPort),
		Loop:        loop,
		Records:     repo,
		Admin:       admin,
		Bus:         bus,
		WWWRoot:     cfg.Server.WWWRoot,
		ServiceName: cfg.Telemetry.ServiceName,
	})
	if err := server.Start(); err != nil {
		_ = loop.Stop(context.Background())
		return fmt.Errorf("запуск REST API: %w", err)
	}

	mode := "ручные тики"
	if !loop.ManualTicks() {
		mode = fmt.Sprintf("тик каждые %v", cfg.Game.TickPeriod())
	}
	logging.Info("✅ Сервер готов: порт %d, %s, хранилище %s", restPort, mode, store.Name())
	logging.Info("   ❤️  Health check: http://localhost:%d/health", restPort)

	// Канал для получения сигналов ОС
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logging.Info("📡 Получен сигнал %v, завершение работы...", sig)

	// === GRACEFUL SHUTDOWN ===
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка остановки REST API: %v", err)
	}
	if err := loop.Stop(shutdownCtx); err != nil {
		logging.Error("❌ Ошибка финального сохранения: %v", err)
	}
	if err := eventbus.Shutdown(shutdownCtx); err != nil {
		logging.Warn("⚠️ Не все события отправлены: %v (в очереди %d)", err, bus.Pending())
	}

	logging.Info("✅ Сервер корректно остановлен")
	return nil
}

func newEventBus(cfg config.EventBusConfig) (eventbus.EventBus, error) {
	if cfg.URL == "" {
		return eventbus.NewMemoryBus(1024), nil
	}
	bus, err := eventbus.NewJetStreamBus(cfg.URL, cfg.Stream, cfg.RetentionPeriod())
	if err != nil {
		return nil, fmt.Errorf("подключение к NATS %s: %w", cfg.URL, err)
	}
	return bus, nil
}

func newRecordsRepo(ctx context.Context, cfg config.RecordsConfig) (records.Repository, error) {
	switch cfg.Backend {
	case "mariadb":
		return records.NewMariaRepo(ctx, cfg.DSN)
	case "mongo":
		return records.NewMongoRepo(ctx, records.MongoConfig{URI: cfg.MongoURI, Database: cfg.MongoDB})
	default:
		return records.NewMemoryRepo(), nil
	}
}

func newStateStore(ctx context.Context, cfg config.StateConfig) (storage.StateStore, error) {
	switch cfg.Backend {
	case "file":
		return storage.NewFileStore(cfg.Path), nil
	case "badger":
		return storage.NewBadgerStore(cfg.Path)
	case "redis":
		rc := storage.DefaultRedisConfig()
		rc.Addr = cfg.RedisAddr
		if cfg.RedisKey != "" {
			rc.Key = cfg.RedisKey
		}
		return storage.NewRedisStore(ctx, rc)
	default:
		return storage.NewMemoryStore(), nil
	}
}
