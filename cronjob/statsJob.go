package cronjob

import (
	"github.com/mahdipatriot/PacketTunnel/logger"
	"github.com/mahdipatriot/PacketTunnel/service"
)

type StatsJob struct {
	serverService *service.ServerService
}

func NewStatsJob(serverService *service.ServerService) *StatsJob {
	return &StatsJob{
		serverService: serverService,
	}
}

func (s *StatsJob) Run() {
	err := s.serverService.SaveEngineStat()
	if err != nil {
		logger.Warning("Save engine stats failed: ", err)
		return
	}
}
