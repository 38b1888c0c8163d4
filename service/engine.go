package service

import (
	"archive/zip"
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/mahdipatriot/PacketTunnel/config"
	"github.com/mahdipatriot/PacketTunnel/logger"
	"github.com/mahdipatriot/PacketTunnel/metrics"

	"github.com/cheggaaa/pb/v3"
)

// EngineService supervises the external engine process that executes
// compiled documents. The panel only ever runs one engine at a time.
type EngineService struct {
	SettingService
	TunnelService TunnelService

	mu     sync.Mutex
	cancel context.CancelFunc
	cmd    *exec.Cmd
	pid    int
}

func NewEngineService() *EngineService {
	return &EngineService{}
}

func (s *EngineService) binaryPath() (string, error) {
	dir, err := s.GetEngineDir()
	if err != nil {
		return "", err
	}
	binary, err := s.GetEngineBinary()
	if err != nil {
		return "", err
	}
	return path.Join(dir, binary), nil
}

// WriteCoreConfig drops the engine's own bootstrap file next to the binary.
// The engine reads the tunnel document separately.
func (s *EngineService) WriteCoreConfig() (string, error) {
	dir, err := s.GetEngineDir()
	if err != nil {
		return "", err
	}
	level := "info"
	if config.IsDebug() {
		level = "debug"
	}
	core := map[string]any{
		"log": map[string]any{
			"level":     level,
			"timestamp": true,
		},
	}
	data, err := json.MarshalIndent(core, "", "  ")
	if err != nil {
		return "", err
	}
	err = os.MkdirAll(dir, 0o755)
	if err != nil {
		return "", err
	}
	corePath := path.Join(dir, "core.json")
	err = os.WriteFile(corePath, data, 0o644)
	if err != nil {
		return "", err
	}
	return corePath, nil
}

func (s *EngineService) IsRunning() bool {
	supervision, err := s.GetEngineSupervision()
	if err == nil && supervision == "systemd" {
		return exec.Command("systemctl", "is-active", "--quiet", "packettunnel-core").Run() == nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil
}

func (s *EngineService) PID() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pid
}

func (s *EngineService) Start() error {
	supervision, err := s.GetEngineSupervision()
	if err != nil {
		return err
	}
	if supervision == "systemd" {
		out, err := exec.Command("systemctl", "start", "packettunnel-core").CombinedOutput()
		if err != nil {
			return fmt.Errorf("systemctl start: %v: %s", err, strings.TrimSpace(string(out)))
		}
		metrics.EngineRunning.Set(1)
		return nil
	}
	return s.startExec()
}

func (s *EngineService) startExec() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return errors.New("engine is already running")
	}

	binary, err := s.binaryPath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(binary); os.IsNotExist(err) {
		return fmt.Errorf("engine binary not found at %s", binary)
	}

	corePath, err := s.WriteCoreConfig()
	if err != nil {
		return err
	}
	docPath, err := s.TunnelService.ActiveDocPath()
	if err != nil {
		return errors.New("no enabled tunnel has a generated document")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, binary, "-c", corePath, "-t", docPath)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("failed to start engine process: %w", err)
	}

	go func() {
		scanner := bufio.NewScanner(stderrPipe)
		for scanner.Scan() {
			logger.Infof("[ENGINE] %s", scanner.Text())
		}
	}()

	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		s.cmd = nil
		s.cancel = nil
		s.pid = 0
		s.mu.Unlock()
		metrics.EngineRunning.Set(0)
		if err != nil && ctx.Err() == nil {
			logger.Warningf("engine exited: %v", err)
		} else {
			logger.Info("engine stopped")
		}
		cancel()
	}()

	s.cmd = cmd
	s.cancel = cancel
	s.pid = cmd.Process.Pid
	metrics.EngineRunning.Set(1)
	logger.Infof("engine started with PID %d", s.pid)
	return nil
}

func (s *EngineService) Stop() error {
	supervision, err := s.GetEngineSupervision()
	if err != nil {
		return err
	}
	if supervision == "systemd" {
		out, err := exec.Command("systemctl", "stop", "packettunnel-core").CombinedOutput()
		if err != nil {
			return fmt.Errorf("systemctl stop: %v: %s", err, strings.TrimSpace(string(out)))
		}
		metrics.EngineRunning.Set(0)
		return nil
	}

	s.mu.Lock()
	if s.cmd == nil {
		s.mu.Unlock()
		return errors.New("engine is not running")
	}
	cancel := s.cancel
	cmd := s.cmd
	s.mu.Unlock()

	cancel()
	// The monitor goroutine clears s.cmd once Wait returns.
	for i := 0; i < 50; i++ {
		s.mu.Lock()
		stopped := s.cmd == nil
		s.mu.Unlock()
		if stopped {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	if cmd.Process != nil {
		logger.Warningf("engine %d did not stop in time, killing", cmd.Process.Pid)
		cmd.Process.Kill()
	}
	return nil
}

func (s *EngineService) Restart() error {
	if s.IsRunning() {
		err := s.Stop()
		if err != nil {
			return err
		}
	}
	metrics.EngineRestartsTotal.Inc()
	return s.Start()
}

// Download fetches the engine archive, extracts the binary and installs it
// into the engine directory.
func (s *EngineService) Download() error {
	url, err := s.GetEngineDownloadURL()
	if err != nil {
		return err
	}
	if url == "" {
		return errors.New("engineDownloadURL is not set")
	}
	dir, err := s.GetEngineDir()
	if err != nil {
		return err
	}
	binary, err := s.GetEngineBinary()
	if err != nil {
		return err
	}
	err = os.MkdirAll(dir, 0o755)
	if err != nil {
		return err
	}

	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: %s", url, resp.Status)
	}

	archive, err := os.CreateTemp("", "packettunnel-engine-*.zip")
	if err != nil {
		return err
	}
	defer os.Remove(archive.Name())

	bar := pb.Full.Start64(resp.ContentLength)
	reader := bar.NewProxyReader(resp.Body)
	_, err = io.Copy(archive, reader)
	bar.Finish()
	if err != nil {
		archive.Close()
		return err
	}
	err = archive.Close()
	if err != nil {
		return err
	}

	return s.extractBinary(archive.Name(), dir, binary)
}

func (s *EngineService) extractBinary(archivePath string, dir string, binary string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, f := range zr.File {
		if path.Base(f.Name) != binary {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		target := path.Join(dir, binary)
		out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
		if err != nil {
			rc.Close()
			return err
		}
		_, err = io.Copy(out, rc)
		rc.Close()
		out.Close()
		if err != nil {
			return err
		}
		logger.Infof("engine binary installed at %s", target)
		return nil
	}
	return fmt.Errorf("archive has no file named %s", binary)
}

const systemdUnit = `[Unit]
Description=PacketTunnel engine
After=network.target

[Service]
Type=simple
ExecStart=%s -c %s -t %s
Restart=on-failure
RestartSec=5
LimitNOFILE=65535

[Install]
WantedBy=multi-user.target
`

// InstallService writes and enables a systemd unit for the engine so it can
// outlive the panel.
func (s *EngineService) InstallService() error {
	binary, err := s.binaryPath()
	if err != nil {
		return err
	}
	corePath, err := s.WriteCoreConfig()
	if err != nil {
		return err
	}
	docPath, err := s.TunnelService.ActiveDocPath()
	if err != nil {
		return errors.New("no enabled tunnel has a generated document")
	}
	unit := fmt.Sprintf(systemdUnit, binary, corePath, docPath)
	err = os.WriteFile("/etc/systemd/system/packettunnel-core.service", []byte(unit), 0o644)
	if err != nil {
		return err
	}
	out, err := exec.Command("systemctl", "daemon-reload").CombinedOutput()
	if err != nil {
		return fmt.Errorf("systemctl daemon-reload: %v: %s", err, strings.TrimSpace(string(out)))
	}
	out, err = exec.Command("systemctl", "enable", "packettunnel-core").CombinedOutput()
	if err != nil {
		return fmt.Errorf("systemctl enable: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (s *EngineService) UninstallService() error {
	exec.Command("systemctl", "stop", "packettunnel-core").Run()
	exec.Command("systemctl", "disable", "packettunnel-core").Run()
	err := os.Remove("/etc/systemd/system/packettunnel-core.service")
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	out, err := exec.Command("systemctl", "daemon-reload").CombinedOutput()
	if err != nil {
		return fmt.Errorf("systemctl daemon-reload: %v: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
