package api

import (
	"strings"

	"github.com/mahdipatriot/PacketTunnel/service"
	"github.com/mahdipatriot/PacketTunnel/util/common"

	"github.com/gin-gonic/gin"
)

type APIHandler struct {
	ApiService
	apiv2 *APIv2Handler
}

func NewAPIHandler(g *gin.RouterGroup, bundle *service.ServicesBundle, a2 *APIv2Handler) {
	a := &APIHandler{
		ApiService: NewApiService(bundle),
		apiv2:      a2,
	}
	a.initRouter(g)
}

func (a *APIHandler) initRouter(g *gin.RouterGroup) {
	g.Use(func(c *gin.Context) {
		path := c.Request.URL.Path
		if !strings.HasSuffix(path, "login") && !strings.HasSuffix(path, "logout") {
			checkLogin(c)
		}
	})
	g.POST("/:postAction", a.postHandler)
	g.GET("/:getAction", a.getHandler)
}

func (a *APIHandler) postHandler(c *gin.Context) {
	action := c.Param("postAction")

	switch action {
	case "login":
		a.ApiService.Login(c)
	case "changePass":
		a.ApiService.ChangePass(c)
	case "tunnel_save":
		a.ApiService.SaveTunnel(c)
	case "tunnel_generate":
		a.ApiService.GenerateTunnel(c)
	case "tunnel_compile":
		a.ApiService.CompileTunnel(c)
	case "settings_save":
		a.ApiService.SaveSettings(c)
	case "engine_start":
		a.ApiService.EngineStart(c)
	case "engine_stop":
		a.ApiService.EngineStop(c)
	case "engine_restart":
		a.ApiService.EngineRestart(c)
	case "engine_download":
		a.ApiService.EngineDownload(c)
	case "engine_install_service":
		a.ApiService.EngineInstallService(c)
	case "engine_uninstall_service":
		a.ApiService.EngineUninstallService(c)
	case "tuning_apply":
		a.ApiService.TuningApply(c)
	case "restartApp":
		a.ApiService.RestartApp(c)
	case "addToken":
		a.ApiService.AddToken(c)
		a.apiv2.ReloadTokens()
	case "deleteToken":
		a.ApiService.DeleteToken(c)
		a.apiv2.ReloadTokens()
	default:
		jsonMsg(c, "failed", common.NewError("unknown action: ", action))
	}
}

func (a *APIHandler) getHandler(c *gin.Context) {
	action := c.Param("getAction")

	switch action {
	case "logout":
		a.ApiService.Logout(c)
	case "tunnels":
		a.ApiService.Tunnels(c)
	case "settings":
		a.ApiService.GetSettings(c)
	case "status":
		a.ApiService.Status(c)
	case "stats":
		a.ApiService.Stats(c)
	case "logs":
		a.ApiService.Logs(c)
	case "tokens":
		a.ApiService.Tokens(c)
	case "preflight":
		a.ApiService.Preflight(c)
	default:
		jsonMsg(c, "failed", common.NewError("unknown action: ", action))
	}
}
