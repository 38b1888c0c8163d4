package cronjob

import (
	"github.com/mahdipatriot/PacketTunnel/logger"
	"github.com/mahdipatriot/PacketTunnel/service"
)

type DelStatsJob struct {
	serverService *service.ServerService
	trafficDays   int
}

func NewDelStatsJob(serverService *service.ServerService, trafficDays int) *DelStatsJob {
	return &DelStatsJob{
		serverService: serverService,
		trafficDays:   trafficDays,
	}
}

func (s *DelStatsJob) Run() {
	err := s.serverService.DelOldStats(s.trafficDays)
	if err != nil {
		logger.Warning("Deleting old statistics failed: ", err)
		return
	}
	logger.Debug("Stats older than ", s.trafficDays, " days were deleted")
}
