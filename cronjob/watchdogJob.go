package cronjob

import (
	"github.com/mahdipatriot/PacketTunnel/logger"
	"github.com/mahdipatriot/PacketTunnel/service"
	"github.com/mahdipatriot/PacketTunnel/telegram"
)

// WatchdogJob restarts the engine when a generated document exists but the
// process is gone.
type WatchdogJob struct {
	engineService *service.EngineService
}

func NewWatchdogJob(engineService *service.EngineService) *WatchdogJob {
	return &WatchdogJob{
		engineService: engineService,
	}
}

func (s *WatchdogJob) Run() {
	if s.engineService.IsRunning() {
		return
	}
	_, err := s.engineService.TunnelService.ActiveDocPath()
	if err != nil {
		return
	}
	logger.Warning("engine is down with an active document, restarting")
	err = s.engineService.Restart()
	if err != nil {
		logger.Error("watchdog restart failed: ", err)
		telegram.Notify("Engine restart failed: " + err.Error())
		return
	}
	telegram.Notify("Engine was down and has been restarted.")
}
