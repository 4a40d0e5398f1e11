package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kimalale/tactical-workflow-manager/internal/vars"
	"github.com/kimalale/tactical-workflow-manager/pkg/api"
)

const varPreviewLen = 50

var ErrVariableNotFound = errors.New("variable not found")

func (s *Server) listVars(c *gin.Context) {
	all, err := s.vars.All(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, all)
}

func (s *Server) getVar(c *gin.Context) {
	key := c.Param("key")
	v, ok, err := s.vars.Get(c.Request.Context(), key)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		respondError(c, http.StatusNotFound,
			fmt.Errorf("%w: %s", ErrVariableNotFound, key))
		return
	}
	c.JSON(http.StatusOK, api.VariableResponse{Key: key, Value: v})
}

func (s *Server) setVar(c *gin.Context) {
	var req api.SetVariableRequest
	if !bindJSON(c, &req) {
		return
	}
	var value any
	if len(req.Value) > 0 {
		if err := json.Unmarshal(req.Value, &value); err != nil {
			respondError(c, http.StatusBadRequest,
				fmt.Errorf("%w: %w", ErrInvalidJSON, err))
			return
		}
	}

	ctx := c.Request.Context()
	key := c.Param("key")
	if err := s.vars.Set(ctx, key, value); err != nil {
		respondError(c, varErrorStatus(err), err)
		return
	}

	preview := string(req.Value)
	if len(preview) > varPreviewLen {
		preview = preview[:varPreviewLen]
	}
	s.engine.Console().Add(ctx, api.TagStorage,
		fmt.Sprintf("Variable set: %s = %s", key, preview), api.LogInfo)
	c.JSON(http.StatusOK, api.VariableResponse{Key: key, Value: value})
}

func (s *Server) deleteVar(c *gin.Context) {
	ctx := c.Request.Context()
	key := c.Param("key")
	if err := s.vars.Delete(ctx, key); err != nil {
		respondError(c, varErrorStatus(err), err)
		return
	}
	s.engine.Console().Add(ctx, api.TagStorage,
		"Variable deleted: "+key, api.LogInfo)
	c.Status(http.StatusNoContent)
}

func (s *Server) clearVars(c *gin.Context) {
	ctx := c.Request.Context()
	if err := s.vars.Clear(ctx); err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	s.engine.Console().Add(ctx, api.TagStorage,
		"All variables cleared", api.LogInfo)
	c.Status(http.StatusNoContent)
}

func varErrorStatus(err error) int {
	if errors.Is(err, vars.ErrKeyRequired) ||
		errors.Is(err, vars.ErrValueEncoding) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
