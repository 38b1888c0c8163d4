package api

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/mahdipatriot/PacketTunnel/pipeline"
	"github.com/mahdipatriot/PacketTunnel/service"
	"github.com/mahdipatriot/PacketTunnel/util/common"

	"github.com/gin-gonic/gin"
)

var errWrongCredentials = common.NewError("wrong username or password")

type ApiService struct {
	service.SettingService
	service.UserService
	service.TunnelService
	service.ServerService
	service.PanelService
	service.TuningService
	EngineService    *service.EngineService
	PreflightService *service.PreflightService
	ChiselService    *service.ChiselService
}

func NewApiService(bundle *service.ServicesBundle) ApiService {
	return ApiService{
		SettingService:   bundle.SettingService,
		UserService:      bundle.UserService,
		TunnelService:    bundle.TunnelService,
		ServerService:    bundle.ServerService,
		PanelService:     bundle.PanelService,
		TuningService:    bundle.TuningService,
		EngineService:    bundle.EngineService,
		PreflightService: bundle.PreflightService,
		ChiselService:    bundle.ChiselService,
	}
}

func (a *ApiService) Login(c *gin.Context) {
	var form struct {
		Username string `json:"username" form:"username"`
		Password string `json:"password" form:"password"`
	}
	err := c.ShouldBind(&form)
	if err != nil {
		jsonMsg(c, "login", err)
		return
	}
	user := a.UserService.CheckUser(form.Username, form.Password)
	if user == nil {
		jsonMsg(c, "login", errWrongCredentials)
		return
	}
	err = setLoginUser(c, user.Username)
	jsonMsg(c, "login", err)
}

func (a *ApiService) Logout(c *gin.Context) {
	err := clearSession(c)
	jsonMsg(c, "logout", err)
}

func (a *ApiService) ChangePass(c *gin.Context) {
	var form struct {
		Username string `json:"username" form:"username"`
		Password string `json:"password" form:"password"`
	}
	err := c.ShouldBind(&form)
	if err != nil {
		jsonMsg(c, "changePass", err)
		return
	}
	err = a.UserService.UpdateFirstUser(form.Username, form.Password)
	jsonMsg(c, "changePass", err)
}

func (a *ApiService) Tunnels(c *gin.Context) {
	tunnels, err := a.TunnelService.GetAll()
	jsonObj(c, tunnels, err)
}

func (a *ApiService) SaveTunnel(c *gin.Context) {
	var form struct {
		Action string          `json:"action"`
		Data   json.RawMessage `json:"data"`
	}
	err := c.ShouldBindJSON(&form)
	if err != nil {
		jsonMsg(c, "save tunnel", err)
		return
	}
	err = a.TunnelService.Save(form.Action, form.Data)
	jsonMsg(c, "save tunnel", err)
}

func (a *ApiService) GenerateTunnel(c *gin.Context) {
	id, err := strconv.ParseUint(c.PostForm("id"), 10, 32)
	if err != nil {
		jsonMsg(c, "generate", err)
		return
	}
	docPath, err := a.TunnelService.Generate(uint(id))
	jsonObj(c, docPath, err)
}

type compileRequest struct {
	Role        string `json:"role"`
	LocalIP     string `json:"localIp"`
	RemoteIP    string `json:"remoteIp"`
	Ports       []int  `json:"ports"`
	DeviceName  string `json:"deviceName"`
	PrivateCIDR string `json:"privateCidr"`
	ProtoSwap   int    `json:"protoSwap"`
}

// CompileTunnel compiles a request without storing anything, so a caller
// can inspect the document a row would produce.
func (a *ApiService) CompileTunnel(c *gin.Context) {
	var req compileRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		jsonMsg(c, "compile", err)
		return
	}
	opts := pipeline.Options{
		DeviceName:  req.DeviceName,
		PrivateCIDR: req.PrivateCIDR,
		ProtoSwap:   req.ProtoSwap,
	}
	doc, err := a.TunnelService.Compile(req.Role, req.LocalIP, req.RemoteIP, req.Ports, opts)
	if err != nil {
		jsonMsg(c, "compile", err)
		return
	}
	jsonObj(c, json.RawMessage(doc), nil)
}

func (a *ApiService) GetSettings(c *gin.Context) {
	settings, err := a.SettingService.GetAllSetting()
	jsonObj(c, settings, err)
}

func (a *ApiService) SaveSettings(c *gin.Context) {
	var data map[string]string
	err := c.ShouldBindJSON(&data)
	if err != nil {
		jsonMsg(c, "save settings", err)
		return
	}
	err = a.SettingService.SaveSettings(data)
	jsonMsg(c, "save settings", err)
}

func (a *ApiService) Status(c *gin.Context) {
	jsonObj(c, a.ServerService.GetStatus(), nil)
}

func (a *ApiService) Stats(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil {
		limit = 100
	}
	stats, err := a.ServerService.GetStats(limit)
	jsonObj(c, stats, err)
}

func (a *ApiService) Logs(c *gin.Context) {
	count, err := strconv.Atoi(c.DefaultQuery("count", "50"))
	if err != nil {
		count = 50
	}
	level := c.DefaultQuery("level", "info")
	jsonObj(c, a.ServerService.GetLogs(count, level), nil)
}

func (a *ApiService) Tokens(c *gin.Context) {
	user, err := a.UserService.GetFirstUser()
	if err != nil {
		jsonMsg(c, "tokens", err)
		return
	}
	tokens, err := a.UserService.GetUserTokens(user)
	jsonObj(c, tokens, err)
}

func (a *ApiService) AddToken(c *gin.Context) {
	var form struct {
		Expiry int64  `json:"expiry"`
		Desc   string `json:"desc"`
	}
	err := c.ShouldBindJSON(&form)
	if err != nil {
		jsonMsg(c, "add token", err)
		return
	}
	user, err := a.UserService.GetFirstUser()
	if err != nil {
		jsonMsg(c, "add token", err)
		return
	}
	token, err := a.UserService.AddToken(user, form.Expiry, form.Desc)
	jsonObj(c, token, err)
}

func (a *ApiService) DeleteToken(c *gin.Context) {
	id, err := strconv.ParseUint(c.PostForm("id"), 10, 32)
	if err != nil {
		jsonMsg(c, "delete token", err)
		return
	}
	err = a.UserService.DeleteToken(uint(id))
	jsonMsg(c, "delete token", err)
}

func (a *ApiService) EngineStart(c *gin.Context) {
	jsonMsg(c, "start engine", a.EngineService.Start())
}

func (a *ApiService) EngineStop(c *gin.Context) {
	jsonMsg(c, "stop engine", a.EngineService.Stop())
}

func (a *ApiService) EngineRestart(c *gin.Context) {
	jsonMsg(c, "restart engine", a.EngineService.Restart())
}

func (a *ApiService) EngineDownload(c *gin.Context) {
	jsonMsg(c, "download engine", a.EngineService.Download())
}

func (a *ApiService) EngineInstallService(c *gin.Context) {
	jsonMsg(c, "install engine service", a.EngineService.InstallService())
}

func (a *ApiService) EngineUninstallService(c *gin.Context) {
	jsonMsg(c, "uninstall engine service", a.EngineService.UninstallService())
}

func (a *ApiService) TuningApply(c *gin.Context) {
	result, err := a.TuningService.Apply()
	jsonObj(c, result, err)
}

func (a *ApiService) Preflight(c *gin.Context) {
	port, _ := strconv.Atoi(c.Query("port"))
	results := a.PreflightService.Run(c.Query("local"), c.Query("remote"), port)
	jsonObj(c, results, nil)
}

func (a *ApiService) RestartApp(c *gin.Context) {
	err := a.PanelService.RestartPanel(3 * time.Second)
	jsonMsg(c, "restart", err)
}
