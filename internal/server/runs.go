package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kimalale/tactical-workflow-manager/internal/engine"
	"github.com/kimalale/tactical-workflow-manager/pkg/api"
)

func (s *Server) getWorkflow(c *gin.Context) {
	doc, ok := s.engine.Workflow()
	if !ok {
		respondError(c, http.StatusNotFound, engine.ErrNoWorkflow)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (s *Server) putWorkflow(c *gin.Context) {
	var doc api.Document
	if !bindJSON(c, &doc) {
		return
	}
	if err := s.engine.SetWorkflow(&doc); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, api.WorkflowLoadedResponse{
		Message:   "workflow installed",
		NodeCount: len(doc.Nodes),
		EdgeCount: len(doc.Edges),
	})
}

func (s *Server) listRuns(c *gin.Context) {
	runs := s.engine.ListRuns()
	c.JSON(http.StatusOK, api.RunsListResponse{
		Runs:  runs,
		Count: len(runs),
	})
}

func (s *Server) startRun(c *gin.Context) {
	var req api.RunRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}

	if !req.Wait {
		id, err := s.engine.StartCurrent(req.Payload, api.TriggerManual)
		if err != nil {
			respondError(c, runErrorStatus(err), err)
			return
		}
		c.JSON(http.StatusAccepted, api.RunStartedResponse{
			Message: "run started",
			RunID:   id,
		})
		return
	}

	doc, ok := s.engine.Workflow()
	if !ok {
		respondError(c, http.StatusConflict, engine.ErrNoWorkflow)
		return
	}
	st, err := s.engine.Run(
		c.Request.Context(), doc, req.Payload, api.TriggerManual,
	)
	if err != nil {
		respondError(c, runErrorStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) getRun(c *gin.Context) {
	id := api.RunID(c.Param("runID"))
	st, ok := s.engine.GetRun(id)
	if !ok {
		respondError(c, http.StatusNotFound, engine.ErrRunNotFound)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) cancelRun(c *gin.Context) {
	id := api.RunID(c.Param("runID"))
	if err := s.engine.Cancel(id); err != nil {
		respondError(c, http.StatusNotFound, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (s *Server) getBoard(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.Board())
}

func (s *Server) listHistory(c *gin.Context) {
	recs, err := s.engine.History(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, api.HistoryResponse{
		Executions: recs,
		Count:      len(recs),
	})
}

func (s *Server) listLogs(c *gin.Context) {
	logs := s.engine.Console().Entries()
	c.JSON(http.StatusOK, api.LogsResponse{
		Logs:  logs,
		Count: len(logs),
	})
}

func (s *Server) clearLogs(c *gin.Context) {
	console := s.engine.Console()
	console.Clear()
	console.System(c.Request.Context(), "Console cleared")
	c.Status(http.StatusNoContent)
}

func runErrorStatus(err error) int {
	switch {
	case errors.Is(err, engine.ErrNoWorkflow):
		return http.StatusConflict
	case errors.Is(err, engine.ErrEngineStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadRequest
	}
}
