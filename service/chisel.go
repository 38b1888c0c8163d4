package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mahdipatriot/PacketTunnel/database"
	"github.com/mahdipatriot/PacketTunnel/database/model"
	"github.com/mahdipatriot/PacketTunnel/logger"

	chclient "github.com/jpillora/chisel/client"
	chserver "github.com/jpillora/chisel/server"
)

// ChiselService runs management channels beside the data-plane tunnel, so
// the panel on the far side stays reachable even while the topology is
// being reworked.
type ChiselService struct {
	activeChannels map[uint]context.CancelFunc
	mu             sync.Mutex
}

func NewChiselService() *ChiselService {
	return &ChiselService{
		activeChannels: make(map[uint]context.CancelFunc),
	}
}

func (s *ChiselService) GetAll() ([]model.ChiselConfig, error) {
	db := database.GetDB()
	var configs []model.ChiselConfig
	err := db.Find(&configs).Error
	return configs, err
}

func (s *ChiselService) Get(id uint) (*model.ChiselConfig, error) {
	db := database.GetDB()
	var cfg model.ChiselConfig
	err := db.First(&cfg, id).Error
	return &cfg, err
}

func (s *ChiselService) GetByName(name string) (*model.ChiselConfig, error) {
	db := database.GetDB()
	var cfg model.ChiselConfig
	err := db.Where("name = ?", name).First(&cfg).Error
	return &cfg, err
}

func (s *ChiselService) Create(cfg *model.ChiselConfig) error {
	return database.GetDB().Create(cfg).Error
}

func (s *ChiselService) Update(cfg *model.ChiselConfig) error {
	return database.GetDB().Save(cfg).Error
}

func (s *ChiselService) Delete(id uint) error {
	s.stopChannel(id)
	return database.GetDB().Unscoped().Delete(&model.ChiselConfig{}, id).Error
}

func (s *ChiselService) Save(act string, data json.RawMessage) error {
	db := database.GetDB()
	var err error
	switch act {
	case "new", "update":
		var cfg model.ChiselConfig
		err = json.Unmarshal(data, &cfg)
		if err != nil {
			return err
		}
		if act == "new" {
			err = db.Create(&cfg).Error
		} else {
			err = db.Save(&cfg).Error
		}
	case "del":
		var id uint
		err = json.Unmarshal(data, &id)
		if err != nil {
			return err
		}
		cfg, err := s.Get(id)
		if err != nil {
			return err
		}
		s.stopChannel(cfg.ID)
		err = db.Unscoped().Delete(&model.ChiselConfig{}, id).Error
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown action: %s", act)
	}
	return err
}

func (s *ChiselService) ActiveIDs() []uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uint, 0, len(s.activeChannels))
	for id := range s.activeChannels {
		ids = append(ids, id)
	}
	return ids
}

func (s *ChiselService) Start(cfg *model.ChiselConfig) error {
	db := database.GetDB()
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.activeChannels[cfg.ID]; exists {
		return fmt.Errorf("channel %q is already running", cfg.Name)
	}

	ctx, cancel := context.WithCancel(context.Background())

	var (
		client *chclient.Client
		server *chserver.Server
		err    error
	)
	args := strings.Fields(cfg.Args)

	if cfg.Mode == "client" {
		remotes := []string{}
		auth := ""
		skipVerify := false
		i := 0
		for i < len(args) {
			arg := args[i]
			if arg == "--auth" && i+1 < len(args) {
				auth = args[i+1]
				i += 2
			} else if arg == "--tls-skip-verify" || arg == "--tls" {
				skipVerify = true
				i++
			} else {
				remotes = append(remotes, arg)
				i++
			}
		}
		serverURL := fmt.Sprintf("%s:%d", cfg.ServerAddress, cfg.ServerPort)
		if skipVerify {
			serverURL = "https://" + serverURL
		}
		client, err = chclient.NewClient(&chclient.Config{
			Remotes:   remotes,
			Auth:      auth,
			Server:    serverURL,
			KeepAlive: 25 * time.Second,
			Headers:   http.Header{},
			TLS: chclient.TLSConfig{
				SkipVerify: skipVerify,
				ServerName: cfg.ServerAddress,
			},
		})
		if err != nil {
			cancel()
			return fmt.Errorf("failed to create chisel client %q: %w", cfg.Name, err)
		}
	} else {
		serverConfig := &chserver.Config{
			Reverse:   false,
			KeepAlive: 25 * time.Second,
		}
		for i, arg := range args {
			switch arg {
			case "--reverse":
				serverConfig.Reverse = true
			case "--auth":
				if i+1 < len(args) {
					serverConfig.Auth = args[i+1]
				}
			}
		}
		server, err = chserver.NewServer(serverConfig)
		if err != nil {
			cancel()
			return fmt.Errorf("failed to create chisel server %q: %w", cfg.Name, err)
		}
	}

	s.activeChannels[cfg.ID] = cancel
	cfg.PID = 1
	if err := db.Save(cfg).Error; err != nil {
		cancel()
		delete(s.activeChannels, cfg.ID)
		return err
	}

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.activeChannels, cfg.ID)
			s.mu.Unlock()
			var row model.ChiselConfig
			if database.GetDB().First(&row, cfg.ID).Error == nil && row.PID != 0 {
				row.PID = 0
				database.GetDB().Save(&row)
			}
			logger.Infof("chisel channel %q stopped", cfg.Name)
		}()

		var runErr error
		if cfg.Mode == "client" {
			runErr = client.Start(ctx)
		} else {
			runErr = server.StartContext(ctx, "0.0.0.0", fmt.Sprintf("%d", cfg.ListenPort))
		}
		if runErr != nil && runErr != context.Canceled {
			logger.Errorf("chisel channel %q: %v", cfg.Name, runErr)
			return
		}
		if runErr == nil {
			<-ctx.Done()
		}
	}()

	logger.Infof("chisel channel %q started in %s mode", cfg.Name, cfg.Mode)
	return nil
}

func (s *ChiselService) Stop(cfg *model.ChiselConfig) error {
	s.stopChannel(cfg.ID)
	if cfg.PID != 0 {
		cfg.PID = 0
		return database.GetDB().Save(cfg).Error
	}
	return nil
}

func (s *ChiselService) StopAll() {
	for _, id := range s.ActiveIDs() {
		cfg, err := s.Get(id)
		if err != nil {
			continue
		}
		if err := s.Stop(cfg); err != nil {
			logger.Errorf("stop chisel channel %q: %v", cfg.Name, err)
		}
	}
}

func (s *ChiselService) stopChannel(id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, exists := s.activeChannels[id]; exists {
		cancel()
		delete(s.activeChannels, id)
	}
}
