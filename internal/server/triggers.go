package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kimalale/tactical-workflow-manager/internal/engine"
	"github.com/kimalale/tactical-workflow-manager/internal/trigger"
	"github.com/kimalale/tactical-workflow-manager/pkg/api"
)

func (s *Server) listWebhooks(c *gin.Context) {
	c.JSON(http.StatusOK, s.webhooks.List())
}

func (s *Server) createWebhook(c *gin.Context) {
	var req api.CreateWebhookRequest
	if !bindJSON(c, &req) {
		return
	}
	wh, err := s.webhooks.Add(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusCreated, wh)
}

func (s *Server) deleteWebhook(c *gin.Context) {
	id := api.WebhookID(c.Param("id"))
	if err := s.webhooks.Remove(c.Request.Context(), id); err != nil {
		respondError(c, http.StatusNotFound, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) toggleWebhook(c *gin.Context) {
	wh, err := s.webhooks.Toggle(api.WebhookID(c.Param("id")))
	if err != nil {
		respondError(c, http.StatusNotFound, err)
		return
	}
	c.JSON(http.StatusOK, wh)
}

func (s *Server) listWebhookEvents(c *gin.Context) {
	c.JSON(http.StatusOK, s.webhooks.Events())
}

func (s *Server) triggerWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	var payload any
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			respondError(c, http.StatusBadRequest,
				fmt.Errorf("%w: %w", ErrInvalidJSON, err))
			return
		}
	}

	id := api.WebhookID(c.Param("id"))
	ev, err := s.webhooks.Trigger(c.Request.Context(), id, payload)
	switch {
	case errors.Is(err, trigger.ErrWebhookNotFound):
		respondError(c, http.StatusNotFound, err)
	case errors.Is(err, trigger.ErrWebhookInactive):
		respondError(c, http.StatusForbidden, err)
	case errors.Is(err, engine.ErrNoWorkflow):
		respondError(c, http.StatusConflict, err)
	case err != nil:
		respondError(c, http.StatusInternalServerError, err)
	default:
		c.JSON(http.StatusAccepted, api.WebhookTriggeredResponse{
			Message: "Triggered: " + ev.Webhook,
			RunID:   ev.RunID,
		})
	}
}

func (s *Server) listSchedules(c *gin.Context) {
	s.respondSchedules(c, http.StatusOK)
}

func (s *Server) createSchedule(c *gin.Context) {
	var req api.CreateScheduleRequest
	if !bindJSON(c, &req) {
		return
	}
	sc, err := s.schedules.Add(c.Request.Context(), req.IntervalSeconds)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusCreated, sc)
}

func (s *Server) deleteSchedule(c *gin.Context) {
	id := api.ScheduleID(c.Param("id"))
	if err := s.schedules.Remove(c.Request.Context(), id); err != nil {
		respondError(c, http.StatusNotFound, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) startSchedules(c *gin.Context) {
	s.schedules.Start(c.Request.Context())
	s.respondSchedules(c, http.StatusOK)
}

func (s *Server) stopSchedules(c *gin.Context) {
	s.schedules.Stop(c.Request.Context())
	s.respondSchedules(c, http.StatusOK)
}

func (s *Server) respondSchedules(c *gin.Context, status int) {
	c.JSON(status, api.SchedulesResponse{
		Schedules: s.schedules.List(),
		Running:   s.schedules.Running(),
	})
}
