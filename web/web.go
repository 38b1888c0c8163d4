package web

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/mahdipatriot/PacketTunnel/api"
	"github.com/mahdipatriot/PacketTunnel/config"
	"github.com/mahdipatriot/PacketTunnel/logger"
	"github.com/mahdipatriot/PacketTunnel/service"

	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Server struct {
	httpServer *http.Server
	listener   net.Listener

	bundle *service.ServicesBundle

	ctx    context.Context
	cancel context.CancelFunc
}

func NewServer(bundle *service.ServicesBundle) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		bundle: bundle,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Server) initRouter() (*gin.Engine, error) {
	if config.IsDebug() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.DefaultWriter = io.Discard
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	webPath, err := s.bundle.SettingService.GetWebPath()
	if err != nil {
		return nil, err
	}
	secret, err := s.bundle.SettingService.GetSecret()
	if err != nil {
		return nil, err
	}
	maxAge, err := s.bundle.SettingService.GetSessionMaxAge()
	if err != nil {
		return nil, err
	}

	store := cookie.NewStore(secret)
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   maxAge * 60,
		HttpOnly: true,
	})
	engine.Use(sessions.Sessions("session", store))
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	apiv2 := api.NewAPIv2Handler(engine.Group(webPath+"apiv2"), s.bundle)
	api.NewAPIHandler(engine.Group(webPath+"api"), s.bundle, apiv2)

	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return engine, nil
}

func (s *Server) Start() error {
	engine, err := s.initRouter()
	if err != nil {
		return err
	}

	listen, err := s.bundle.SettingService.GetListen()
	if err != nil {
		return err
	}
	port, err := s.bundle.SettingService.GetPort()
	if err != nil {
		return err
	}

	listenAddr := net.JoinHostPort(listen, fmt.Sprintf("%d", port))
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return err
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler: engine,
		TLSConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	go func() {
		err := s.httpServer.Serve(listener)
		if err != nil && err != http.ErrServerClosed {
			logger.Error("web server: ", err)
		}
	}()

	logger.Infof("web server listening on %s", listenAddr)
	return nil
}

func (s *Server) Stop() error {
	s.cancel()

	var err error
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err = s.httpServer.Shutdown(ctx)
	}
	if s.listener != nil {
		s.listener.Close()
	}
	return err
}

func (s *Server) GetCtx() context.Context {
	return s.ctx
}
