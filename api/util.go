package api

import (
	"net/http"

	"github.com/mahdipatriot/PacketTunnel/logger"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const loginUserKey = "LOGIN_USER"

type Msg struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg"`
	Obj     any    `json:"obj,omitempty"`
}

func jsonMsg(c *gin.Context, msg string, err error) {
	jsonMsgObj(c, msg, nil, err)
}

func jsonObj(c *gin.Context, obj any, err error) {
	jsonMsgObj(c, "", obj, err)
}

func jsonMsgObj(c *gin.Context, msg string, obj any, err error) {
	m := Msg{
		Obj: obj,
	}
	if err == nil {
		m.Success = true
		m.Msg = msg
	} else {
		m.Success = false
		if msg == "" {
			m.Msg = err.Error()
		} else {
			m.Msg = msg + ": " + err.Error()
		}
		logger.Warning("request failed: ", m.Msg)
	}
	c.JSON(http.StatusOK, m)
}

func isLogin(c *gin.Context) bool {
	session := sessions.Default(c)
	return session.Get(loginUserKey) != nil
}

func checkLogin(c *gin.Context) {
	if !isLogin(c) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, Msg{
			Success: false,
			Msg:     "login required",
		})
	}
}

func setLoginUser(c *gin.Context, username string) error {
	session := sessions.Default(c)
	session.Set(loginUserKey, username)
	return session.Save()
}

func GetLoginUser(c *gin.Context) string {
	session := sessions.Default(c)
	user := session.Get(loginUserKey)
	if user == nil {
		return ""
	}
	username, _ := user.(string)
	return username
}

func clearSession(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	return session.Save()
}
