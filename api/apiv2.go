package api

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mahdipatriot/PacketTunnel/logger"
	"github.com/mahdipatriot/PacketTunnel/service"

	"github.com/gin-gonic/gin"
)

// APIv2Handler is the token-authenticated surface for automation. Sessions
// never reach it; callers present a bearer token minted on the v1 API.
type APIv2Handler struct {
	ApiService

	mu     sync.RWMutex
	tokens map[string]int64
}

func NewAPIv2Handler(g *gin.RouterGroup, bundle *service.ServicesBundle) *APIv2Handler {
	a := &APIv2Handler{
		ApiService: NewApiService(bundle),
		tokens:     make(map[string]int64),
	}
	a.ReloadTokens()
	a.initRouter(g)
	return a
}

func (a *APIv2Handler) ReloadTokens() {
	tokens, err := a.UserService.GetAllTokens()
	if err != nil {
		logger.Warning("reload tokens: ", err)
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tokens = make(map[string]int64, len(tokens))
	for _, token := range tokens {
		a.tokens[token.Token] = token.Expiry
	}
}

func (a *APIv2Handler) checkToken(c *gin.Context) {
	auth := c.GetHeader("Authorization")
	token := strings.TrimPrefix(auth, "Bearer ")
	if token == "" || token == auth {
		c.AbortWithStatusJSON(http.StatusUnauthorized, Msg{Msg: "bearer token required"})
		return
	}
	a.mu.RLock()
	expiry, ok := a.tokens[token]
	a.mu.RUnlock()
	if !ok || (expiry > 0 && expiry < time.Now().Unix()) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, Msg{Msg: "invalid token"})
	}
}

func (a *APIv2Handler) initRouter(g *gin.RouterGroup) {
	g.Use(a.checkToken)

	g.GET("/tunnels", a.Tunnels)
	g.POST("/tunnels/:id/generate", a.generateTunnel)
	g.GET("/tunnels/:id/document", a.tunnelDocument)
	g.GET("/status", a.Status)
	g.GET("/preflight", a.Preflight)

	a.registerChiselRoutes(g)
}

func (a *APIv2Handler) generateTunnel(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		jsonMsg(c, "generate", err)
		return
	}
	docPath, err := a.TunnelService.Generate(id)
	jsonObj(c, docPath, err)
}

// tunnelDocument recompiles the row in memory, so the caller sees the
// document without touching what is on disk.
func (a *APIv2Handler) tunnelDocument(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		jsonMsg(c, "document", err)
		return
	}
	doc, err := a.TunnelService.Document(id)
	if err != nil {
		jsonMsg(c, "document", err)
		return
	}
	c.Data(http.StatusOK, "application/json", doc)
}

func parseID(c *gin.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	return uint(id), err
}
