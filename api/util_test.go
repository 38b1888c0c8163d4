package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestJsonMsgSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	jsonMsg(c, "saved", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var m Msg
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	require.True(t, m.Success)
	require.Equal(t, "saved", m.Msg)
}

func TestJsonMsgError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	jsonMsg(c, "save tunnel", errors.New("boom"))

	require.Equal(t, http.StatusOK, w.Code)
	var m Msg
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	require.False(t, m.Success)
	require.Equal(t, "save tunnel: boom", m.Msg)
}

func TestJsonObjCarriesPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	jsonObj(c, map[string]int{"nodes": 6}, nil)

	var m Msg
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	require.True(t, m.Success)
	obj, ok := m.Obj.(map[string]any)
	require.True(t, ok)
	require.EqualValues(t, 6, obj["nodes"])
}
