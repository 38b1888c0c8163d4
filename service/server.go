package service

import (
	"time"

	"github.com/mahdipatriot/PacketTunnel/config"
	"github.com/mahdipatriot/PacketTunnel/database"
	"github.com/mahdipatriot/PacketTunnel/database/model"
	"github.com/mahdipatriot/PacketTunnel/logger"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

type ServerService struct {
	EngineService *EngineService
}

type Status struct {
	Cpu    float64 `json:"cpu"`
	Mem    MemInfo `json:"mem"`
	Uptime uint64  `json:"uptime"`
	Engine Engine  `json:"engine"`
}

type MemInfo struct {
	Current uint64 `json:"current"`
	Total   uint64 `json:"total"`
}

type Engine struct {
	Running bool    `json:"running"`
	PID     int     `json:"pid"`
	Cpu     float64 `json:"cpu"`
	Mem     uint64  `json:"mem"`
	Version string  `json:"version"`
}

func (s *ServerService) GetStatus() *Status {
	status := &Status{}

	percents, err := cpu.Percent(0, false)
	if err == nil && len(percents) > 0 {
		status.Cpu = percents[0]
	}

	memInfo, err := mem.VirtualMemory()
	if err == nil {
		status.Mem.Current = memInfo.Used
		status.Mem.Total = memInfo.Total
	}

	uptime, err := host.Uptime()
	if err == nil {
		status.Uptime = uptime
	}

	status.Engine = s.engineStatus()
	return status
}

func (s *ServerService) engineStatus() Engine {
	engine := Engine{Version: config.GetVersion()}
	if s.EngineService == nil {
		return engine
	}
	engine.Running = s.EngineService.IsRunning()
	engine.PID = s.EngineService.PID()
	if engine.PID == 0 {
		return engine
	}
	proc, err := process.NewProcess(int32(engine.PID))
	if err != nil {
		return engine
	}
	if cpuPercent, err := proc.CPUPercent(); err == nil {
		engine.Cpu = cpuPercent
	}
	if memInfo, err := proc.MemoryInfo(); err == nil {
		engine.Mem = memInfo.RSS
	}
	return engine
}

func (s *ServerService) GetLogs(count int, level string) []string {
	return logger.GetLogs(count, level)
}

func (s *ServerService) SaveEngineStat() error {
	engine := s.engineStatus()
	stat := model.EngineStat{
		DateTime: time.Now().Unix(),
		Running:  engine.Running,
		PID:      engine.PID,
		CPU:      engine.Cpu,
		Memory:   engine.Mem,
	}
	return database.GetDB().Create(&stat).Error
}

func (s *ServerService) DelOldStats(days int) error {
	cutoff := time.Now().AddDate(0, 0, -days).Unix()
	return database.GetDB().Where("date_time < ?", cutoff).Delete(model.EngineStat{}).Error
}

func (s *ServerService) GetStats(limit int) ([]model.EngineStat, error) {
	db := database.GetDB()
	var stats []model.EngineStat
	err := db.Order("date_time desc").Limit(limit).Find(&stats).Error
	return stats, err
}

// OnlineSince reports how long the panel process itself has been up.
var startTime = time.Now()

func (s *ServerService) OnlineSince() time.Time {
	return startTime
}
