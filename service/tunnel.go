package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/mahdipatriot/PacketTunnel/database"
	"github.com/mahdipatriot/PacketTunnel/database/model"
	"github.com/mahdipatriot/PacketTunnel/logger"
	"github.com/mahdipatriot/PacketTunnel/metrics"
	"github.com/mahdipatriot/PacketTunnel/pipeline"
)

// WriteError marks a failure to place a compiled document on disk, as
// opposed to a failure to compile it.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// TunnelService turns stored tunnel rows and ad-hoc requests into engine
// documents. Compile is pure; Generate is the persisted flow around it.
type TunnelService struct {
	SettingService
}

func (s *TunnelService) GetAll() ([]model.Tunnel, error) {
	db := database.GetDB()
	var tunnels []model.Tunnel
	err := db.Find(&tunnels).Error
	return tunnels, err
}

func (s *TunnelService) Get(id uint) (*model.Tunnel, error) {
	db := database.GetDB()
	tunnel := &model.Tunnel{}
	err := db.First(tunnel, id).Error
	return tunnel, err
}

func (s *TunnelService) GetByName(name string) (*model.Tunnel, error) {
	db := database.GetDB()
	tunnel := &model.Tunnel{}
	err := db.Where("name = ?", name).First(tunnel).Error
	return tunnel, err
}

func (s *TunnelService) Save(act string, data json.RawMessage) error {
	db := database.GetDB()
	var err error
	switch act {
	case "new", "update":
		var tunnel model.Tunnel
		err = json.Unmarshal(data, &tunnel)
		if err != nil {
			return err
		}
		// Reject bad rows on the way in rather than at generate time.
		opts, optErr := s.rowOptions(&tunnel)
		if optErr != nil {
			return optErr
		}
		_, err = s.Compile(tunnel.Role, tunnel.LocalIP, tunnel.RemoteIP, tunnel.Ports, opts)
		if err != nil {
			return err
		}
		if act == "new" {
			err = db.Create(&tunnel).Error
		} else {
			err = db.Save(&tunnel).Error
		}
	case "del":
		var id uint
		err = json.Unmarshal(data, &id)
		if err != nil {
			return err
		}
		err = db.Delete(&model.Tunnel{}, id).Error
	default:
		return fmt.Errorf("unknown action: %s", act)
	}
	return err
}

// Compile builds, checks and serializes one topology. It touches neither the
// database nor the filesystem.
func (s *TunnelService) Compile(role string, localIP string, remoteIP string, ports []int, opts pipeline.Options) ([]byte, error) {
	graph, err := pipeline.Build(pipeline.Role(role), localIP, remoteIP, ports, opts)
	if err != nil {
		metrics.CompilationsTotal.WithLabelValues(role, "rejected").Inc()
		return nil, err
	}
	if violations := pipeline.Validate(graph); len(violations) > 0 {
		for _, v := range violations {
			metrics.ViolationsTotal.WithLabelValues(string(v.Kind)).Inc()
		}
		metrics.CompilationsTotal.WithLabelValues(role, "invalid").Inc()
		return nil, &pipeline.ValidationError{Violations: violations}
	}
	doc, err := pipeline.Encode(graph)
	if err != nil {
		metrics.CompilationsTotal.WithLabelValues(role, "failed").Inc()
		return nil, err
	}
	metrics.CompilationsTotal.WithLabelValues(role, "ok").Inc()
	return doc, nil
}

// Generate compiles a stored tunnel and writes its document, recording the
// outcome on the row either way.
func (s *TunnelService) Generate(id uint) (string, error) {
	db := database.GetDB()
	tunnel := &model.Tunnel{}
	err := db.First(tunnel, id).Error
	if err != nil {
		return "", err
	}

	opts, err := s.rowOptions(tunnel)
	if err != nil {
		return "", err
	}
	doc, err := s.Compile(tunnel.Role, tunnel.LocalIP, tunnel.RemoteIP, tunnel.Ports, opts)
	if err != nil {
		tunnel.LastError = err.Error()
		db.Save(tunnel)
		return "", err
	}

	outputDir, err := s.GetOutputDir()
	if err != nil {
		return "", err
	}
	docPath := path.Join(outputDir, tunnel.Name+".json")
	err = s.WriteDocument(docPath, doc)
	if err != nil {
		tunnel.LastError = err.Error()
		db.Save(tunnel)
		return "", err
	}

	tunnel.GeneratedAt = time.Now().Unix()
	tunnel.DocPath = docPath
	tunnel.LastError = ""
	err = db.Save(tunnel).Error
	if err != nil {
		return "", err
	}
	logger.Infof("generated %s for tunnel %s", docPath, tunnel.Name)
	return docPath, nil
}

// Document compiles a stored tunnel in memory without touching disk or the
// row, so callers can preview exactly what Generate would write.
func (s *TunnelService) Document(id uint) ([]byte, error) {
	tunnel, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	opts, err := s.rowOptions(tunnel)
	if err != nil {
		return nil, err
	}
	return s.Compile(tunnel.Role, tunnel.LocalIP, tunnel.RemoteIP, tunnel.Ports, opts)
}

// WriteDocument lands doc at docPath through a rename so the engine never
// observes a half-written file.
func (s *TunnelService) WriteDocument(docPath string, doc []byte) error {
	err := os.MkdirAll(path.Dir(docPath), 0o755)
	if err != nil {
		metrics.DocumentWritesTotal.WithLabelValues("error").Inc()
		return &WriteError{Path: docPath, Err: err}
	}
	tmp, err := os.CreateTemp(path.Dir(docPath), ".tunnel-*.json")
	if err != nil {
		metrics.DocumentWritesTotal.WithLabelValues("error").Inc()
		return &WriteError{Path: docPath, Err: err}
	}
	tmpName := tmp.Name()
	_, err = tmp.Write(doc)
	if err == nil {
		err = tmp.Close()
	} else {
		tmp.Close()
	}
	if err == nil {
		err = os.Chmod(tmpName, 0o644)
	}
	if err == nil {
		err = os.Rename(tmpName, docPath)
	}
	if err != nil {
		os.Remove(tmpName)
		metrics.DocumentWritesTotal.WithLabelValues("error").Inc()
		return &WriteError{Path: docPath, Err: err}
	}
	metrics.DocumentWritesTotal.WithLabelValues("ok").Inc()
	return nil
}

// ActiveDocPath is the document the engine should run with: the first
// enabled tunnel that has been generated.
func (s *TunnelService) ActiveDocPath() (string, error) {
	db := database.GetDB()
	tunnel := &model.Tunnel{}
	err := db.Where("enable = ? AND doc_path != ?", true, "").First(tunnel).Error
	if err != nil {
		return "", err
	}
	return tunnel.DocPath, nil
}

// rowOptions starts from the panel-wide compile defaults and lets non-empty
// row fields override them.
func (s *TunnelService) rowOptions(tunnel *model.Tunnel) (pipeline.Options, error) {
	opts, err := s.CompileOptions()
	if err != nil {
		return opts, err
	}
	if tunnel.DeviceName != "" {
		opts.DeviceName = tunnel.DeviceName
	}
	if tunnel.PrivateCIDR != "" {
		opts.PrivateCIDR = tunnel.PrivateCIDR
	}
	if tunnel.ProtoSwap != 0 {
		opts.ProtoSwap = tunnel.ProtoSwap
	}
	return opts, nil
}
