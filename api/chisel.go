package api

import (
	"github.com/mahdipatriot/PacketTunnel/database/model"

	"github.com/gin-gonic/gin"
)

func (a *APIv2Handler) registerChiselRoutes(g *gin.RouterGroup) {
	g.GET("/chisels", a.getChiselConfigs)
	g.POST("/chisels", a.createChiselConfig)
	g.GET("/chisels/:id", a.getChiselConfig)
	g.PUT("/chisels/:id", a.updateChiselConfig)
	g.DELETE("/chisels/:id", a.deleteChiselConfig)
	g.POST("/chisels/:id/start", a.startChisel)
	g.POST("/chisels/:id/stop", a.stopChisel)
}

func (a *APIv2Handler) getChiselConfigs(c *gin.Context) {
	configs, err := a.ChiselService.GetAll()
	if err != nil {
		jsonMsg(c, "get chisel configs", err)
		return
	}
	jsonObj(c, configs, nil)
}

func (a *APIv2Handler) createChiselConfig(c *gin.Context) {
	var cfg model.ChiselConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		jsonMsg(c, "invalid chisel config", err)
		return
	}
	if err := a.ChiselService.Create(&cfg); err != nil {
		jsonMsg(c, "create chisel config", err)
		return
	}
	jsonObj(c, cfg, nil)
}

func (a *APIv2Handler) getChiselConfig(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		jsonMsg(c, "invalid chisel config id", err)
		return
	}
	cfg, err := a.ChiselService.Get(id)
	if err != nil {
		jsonMsg(c, "get chisel config", err)
		return
	}
	jsonObj(c, cfg, nil)
}

func (a *APIv2Handler) updateChiselConfig(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		jsonMsg(c, "invalid chisel config id", err)
		return
	}
	var cfg model.ChiselConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		jsonMsg(c, "invalid chisel config", err)
		return
	}
	cfg.ID = id
	if err := a.ChiselService.Update(&cfg); err != nil {
		jsonMsg(c, "update chisel config", err)
		return
	}
	jsonMsgObj(c, "chisel config updated", cfg, nil)
}

func (a *APIv2Handler) deleteChiselConfig(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		jsonMsg(c, "invalid chisel config id", err)
		return
	}
	if err := a.ChiselService.Delete(id); err != nil {
		jsonMsg(c, "delete chisel config", err)
		return
	}
	jsonMsg(c, "chisel config deleted", nil)
}

func (a *APIv2Handler) startChisel(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		jsonMsg(c, "invalid chisel config id", err)
		return
	}
	cfg, err := a.ChiselService.Get(id)
	if err != nil {
		jsonMsg(c, "get chisel config", err)
		return
	}
	if err := a.ChiselService.Start(cfg); err != nil {
		jsonMsg(c, "start chisel", err)
		return
	}
	jsonMsg(c, "chisel started", nil)
}

func (a *APIv2Handler) stopChisel(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		jsonMsg(c, "invalid chisel config id", err)
		return
	}
	cfg, err := a.ChiselService.Get(id)
	if err != nil {
		jsonMsg(c, "get chisel config", err)
		return
	}
	if err := a.ChiselService.Stop(cfg); err != nil {
		jsonMsg(c, "stop chisel", err)
		return
	}
	jsonMsg(c, "chisel stopped", nil)
}
