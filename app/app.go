package app

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mahdipatriot/PacketTunnel/config"
	"github.com/mahdipatriot/PacketTunnel/cronjob"
	"github.com/mahdipatriot/PacketTunnel/database"
	"github.com/mahdipatriot/PacketTunnel/logger"
	"github.com/mahdipatriot/PacketTunnel/service"
	"github.com/mahdipatriot/PacketTunnel/telegram"
	"github.com/mahdipatriot/PacketTunnel/web"

	"github.com/op/go-logging"
)

type APP struct {
	service.SettingService
	serverService    *service.ServerService
	engineService    *service.EngineService
	chiselService    *service.ChiselService
	preflightService *service.PreflightService
	bundle           *service.ServicesBundle
	webServer        *web.Server
	cronJob          *cronjob.CronJob
	telegramConfig   *telegram.Config
	isBotStarted     bool
}

func NewApp() *APP {
	return &APP{}
}

func (a *APP) Init() error {
	log.Printf("%v %v", config.GetName(), config.GetVersion())

	a.initLog()

	err := database.InitDB(config.GetDBPath())
	if err != nil {
		return err
	}

	a.initTelegramConfig()

	// Init Setting
	a.SettingService.GetAllSetting()

	a.chiselService = service.NewChiselService()
	a.engineService = service.NewEngineService()
	a.engineService.TunnelService = service.TunnelService{}
	a.serverService = &service.ServerService{EngineService: a.engineService}
	a.preflightService = &service.PreflightService{EngineService: a.engineService}

	a.bundle = &service.ServicesBundle{
		SettingService:   a.SettingService,
		ServerService:    *a.serverService,
		EngineService:    a.engineService,
		PreflightService: a.preflightService,
		ChiselService:    a.chiselService,
	}

	a.cronJob = cronjob.NewCronJob()
	a.webServer = web.NewServer(a.bundle)

	return nil
}

func (a *APP) Start() error {
	trafficDays, err := a.SettingService.GetTrafficDays()
	if err != nil {
		return err
	}

	err = a.cronJob.Start(time.Local, a.bundle, trafficDays)
	if err != nil {
		return err
	}

	err = a.webServer.Start()
	if err != nil {
		return err
	}

	if a.telegramConfig != nil && a.telegramConfig.Enabled && !a.isBotStarted {
		go telegram.Start(context.Background(), a.telegramConfig, a)
		a.isBotStarted = true
	}

	// Bring back channels that were running before the restart.
	chiselConfigs, err := a.chiselService.GetAll()
	if err != nil {
		logger.Error("Error getting chisel configs for auto-start:", err)
		return err
	}
	for _, cfg := range chiselConfigs {
		if cfg.Mode == "client" && cfg.PID != 0 && cfg.ServerAddress != "" && cfg.ServerPort != 0 {
			cfg.PID = 0
			if err := a.chiselService.Start(&cfg); err != nil {
				logger.Error("Error auto-starting chisel channel '", cfg.Name, "': ", err)
			}
		}
	}

	if _, err := a.engineService.TunnelService.ActiveDocPath(); err == nil {
		if err := a.engineService.Start(); err != nil {
			logger.Warning("engine auto-start failed: ", err)
		}
	}

	return nil
}

func (a *APP) Stop() {
	a.cronJob.Stop()
	telegram.Stop()
	a.chiselService.StopAll()
	if a.engineService.IsRunning() {
		if err := a.engineService.Stop(); err != nil {
			logger.Warning("stop engine err:", err)
		}
	}
	err := a.webServer.Stop()
	if err != nil {
		logger.Warning("stop Web Server err:", err)
	}
}

func (a *APP) initLog() {
	switch config.GetLogLevel() {
	case config.Debug:
		logger.InitLogger(logging.DEBUG)
	case config.Info:
		logger.InitLogger(logging.INFO)
	case config.Warn:
		logger.InitLogger(logging.WARNING)
	case config.Error:
		logger.InitLogger(logging.ERROR)
	default:
		log.Fatal("unknown log level:", config.GetLogLevel())
	}
}

// initTelegramConfig prefers telegram_config.json and falls back to the
// stored settings, so the bot can be enabled from either side.
func (a *APP) initTelegramConfig() {
	file, err := os.ReadFile("telegram_config.json")
	if err == nil {
		var cfg telegram.Config
		if err := json.Unmarshal(file, &cfg); err != nil {
			logger.Warning("Error unmarshalling telegram_config.json:", err)
			return
		}
		a.telegramConfig = &cfg
		return
	}
	if !os.IsNotExist(err) {
		logger.Warning("Error reading telegram_config.json:", err)
		return
	}

	enabled, err := a.SettingService.GetTgBotEnable()
	if err != nil || !enabled {
		return
	}
	token, err := a.SettingService.GetTgBotToken()
	if err != nil || token == "" {
		return
	}
	chatIds, err := a.SettingService.GetTgBotChatId()
	if err != nil {
		return
	}
	var adminIds []int64
	for _, raw := range strings.Split(chatIds, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err == nil {
			adminIds = append(adminIds, id)
		}
	}
	a.telegramConfig = &telegram.Config{
		BotToken:     token,
		AdminUserIDs: adminIds,
		Enabled:      true,
	}
}

func (a *APP) RestartApp() {
	a.Stop()
	err := a.Init()
	if err != nil {
		logger.Error("Error re-initializing app:", err)
		os.Exit(1)
	}
	err = a.Start()
	if err != nil {
		logger.Error("Error re-starting app:", err)
		os.Exit(1)
	}
}

func (a *APP) GetTunnelService() *service.TunnelService {
	return &a.engineService.TunnelService
}

func (a *APP) GetEngineService() *service.EngineService {
	return a.engineService
}

func (a *APP) GetChiselService() *service.ChiselService {
	return a.chiselService
}

func (a *APP) GetPreflightService() *service.PreflightService {
	return a.preflightService
}

func (a *APP) GetStatus() *service.Status {
	return a.serverService.GetStatus()
}

func (a *APP) GetLogs(limit string, level string) []string {
	count, err := strconv.Atoi(limit)
	if err != nil {
		count = 10
	}
	return a.serverService.GetLogs(count, level)
}

func (a *APP) BackupDB() ([]byte, error) {
	return database.GetDb()
}
