package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kimalale/tactical-workflow-manager/internal/dbproxy"
	"github.com/kimalale/tactical-workflow-manager/pkg/api"
)

const connectionTestTimeout = 30 * time.Second

func (s *Server) listConnections(c *gin.Context) {
	conns := s.registry.List()
	for _, conn := range conns {
		conn.Password = ""
	}
	c.JSON(http.StatusOK, conns)
}

func (s *Server) createConnection(c *gin.Context) {
	var req api.DatabaseConnection
	if !bindJSON(c, &req) {
		return
	}
	conn, err := s.registry.Add(&req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, dbproxy.ErrDuplicateName) {
			status = http.StatusConflict
		}
		respondError(c, status, err)
		return
	}
	conn.Password = ""
	c.JSON(http.StatusCreated, conn)
}

func (s *Server) deleteConnection(c *gin.Context) {
	name := c.Param("name")
	if err := s.registry.Remove(name); err != nil {
		respondError(c, http.StatusNotFound, err)
		return
	}
	s.engine.Console().Add(c.Request.Context(), api.TagDatabase,
		"Disconnected: "+name, api.LogInfo)
	c.Status(http.StatusNoContent)
}

func (s *Server) testConnection(c *gin.Context) {
	name := c.Param("name")
	ctx, cancel := context.WithTimeout(
		c.Request.Context(), connectionTestTimeout,
	)
	defer cancel()

	s.engine.Console().Add(ctx, api.TagDatabase,
		"Testing: "+name+"...", api.LogInfo)
	conn, err := s.registry.Test(ctx, name)
	if errors.Is(err, dbproxy.ErrConnectionNotFound) {
		respondError(c, http.StatusNotFound, err)
		return
	}
	resp := api.DatabaseTestResponse{Success: err == nil}
	if conn != nil {
		resp.Type = conn.Type
	}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(http.StatusOK, resp)
}
