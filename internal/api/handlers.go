// Package api provides HTTP handlers for the REST API.
package api

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-fuego/fuego"
	"github.com/google/uuid"

	"github.com/blockedby/teamsheet/internal/dispatcher"
	"github.com/blockedby/teamsheet/internal/logger"
)

// ============================================================================
// Health
// ============================================================================

func (s *Server) healthCheck(c fuego.ContextNoBody) (HealthResponse, error) {
	resp := HealthResponse{
		Status:  "ok",
		Version: "dev",
	}

	if s.deps.Database != nil {
		if err := s.deps.Database.Ping(c.Context()); err != nil {
			logger.FromContext(c.Context()).Error().Err(err).Msg("health: database ping failed")
			return resp, fuego.HTTPError{Status: 503, Title: "Service Unavailable", Detail: "database unreachable"}
		}
		resp.Database = "ok"
	}

	return resp, nil
}

// ============================================================================
// Messages Handlers
// ============================================================================

func (s *Server) sendMessage(c fuego.ContextWithBody[SendMessageRequest]) (SendMessageResponse, error) {
	groupID, err := uuid.Parse(c.PathParam("group_id"))
	if err != nil {
		return SendMessageResponse{}, fuego.BadRequestError{Detail: "Invalid group ID"}
	}

	body, err := c.Body()
	if err != nil {
		return SendMessageResponse{}, fuego.BadRequestError{Detail: err.Error()}
	}

	res, err := s.deps.Messages.SendMessage(c.Context(), groupID, body.toInput())
	if err != nil {
		return SendMessageResponse{}, s.httpError(c, err)
	}

	invalid := make([]InvalidRecipientResponse, 0, len(res.InvalidRecipients))
	for _, inv := range res.InvalidRecipients {
		invalid = append(invalid, InvalidRecipientResponse{Email: inv.Email, Reason: inv.Reason})
	}

	return SendMessageResponse{
		Message:           MessageFromModel(res.Message),
		TotalRecipients:   res.TotalRecipients,
		ValidRecipients:   res.ValidRecipients,
		InvalidRecipients: invalid,
	}, nil
}

func (s *Server) listGroupMessages(c fuego.ContextNoBody) (MessagesListResponse, error) {
	groupID, err := uuid.Parse(c.PathParam("group_id"))
	if err != nil {
		return MessagesListResponse{}, fuego.BadRequestError{Detail: "Invalid group ID"}
	}

	limit := parseIntWithDefault(c.QueryParam("limit"), dispatcher.DefaultListLimit)
	if limit <= 0 {
		limit = dispatcher.DefaultListLimit
	}
	if limit > dispatcher.MaxListLimit {
		limit = dispatcher.MaxListLimit
	}

	msgs, err := s.deps.Messages.GetGroupMessages(c.Context(), groupID, limit)
	if err != nil {
		return MessagesListResponse{}, s.httpError(c, err)
	}

	return MessagesListResponse{
		Messages: MessagesFromModels(msgs),
		Count:    len(msgs),
		Limit:    limit,
	}, nil
}

func (s *Server) getMessage(c fuego.ContextNoBody) (MessageResponse, error) {
	id, err := uuid.Parse(c.PathParam("id"))
	if err != nil {
		return MessageResponse{}, fuego.BadRequestError{Detail: "Invalid message ID"}
	}

	msg, err := s.deps.Messages.GetMessageByID(c.Context(), id)
	if err != nil {
		return MessageResponse{}, s.httpError(c, err)
	}

	return MessageFromModel(msg), nil
}

func (s *Server) getMessageStatus(c fuego.ContextNoBody) (MessageStatusResponse, error) {
	id, err := uuid.Parse(c.PathParam("id"))
	if err != nil {
		return MessageStatusResponse{}, fuego.BadRequestError{Detail: "Invalid message ID"}
	}

	st, err := s.deps.Messages.GetMessageStatus(c.Context(), id)
	if err != nil {
		return MessageStatusResponse{}, s.httpError(c, err)
	}

	return MessageStatusResponse{
		MessageID:   id,
		Total:       st.Total,
		Pending:     st.Pending,
		Processing:  st.Processing,
		Sent:        st.Sent,
		Failed:      st.Failed,
		SuccessRate: st.SuccessRate,
		LastUpdated: st.LastUpdated,
	}, nil
}

func (s *Server) retryMessage(c fuego.ContextNoBody) (RetryResponse, error) {
	id, err := uuid.Parse(c.PathParam("id"))
	if err != nil {
		return RetryResponse{}, fuego.BadRequestError{Detail: "Invalid message ID"}
	}

	res, err := s.deps.Messages.RetryFailedRecipients(c.Context(), id)
	if err != nil {
		return RetryResponse{}, s.httpError(c, err)
	}

	return RetryResponse{
		MessageID:    id,
		RetriedCount: res.RetriedCount,
		TotalFailed:  res.TotalFailed,
	}, nil
}

// ============================================================================
// Presets Handlers
// ============================================================================

func (s *Server) listPresets(c fuego.ContextNoBody) (PresetsResponse, error) {
	presets := s.deps.Messages.Presets().List()

	resp := PresetsResponse{Presets: make([]PresetResponse, 0, len(presets))}
	for _, p := range presets {
		resp.Presets = append(resp.Presets, PresetResponse{
			Name:        p.Name,
			Description: p.Description,
			Subject:     p.Subject,
			Body:        p.Body,
		})
	}
	return resp, nil
}

// httpError maps service errors onto HTTP errors.
func (s *Server) httpError(c interface{ Context() context.Context }, err error) error {
	switch {
	case errors.Is(err, dispatcher.ErrValidation):
		return fuego.BadRequestError{Detail: err.Error()}
	case errors.Is(err, dispatcher.ErrNotFound):
		return fuego.NotFoundError{Detail: err.Error()}
	case errors.Is(err, dispatcher.ErrProcessingInFlight):
		return fuego.ConflictError{Detail: err.Error()}
	default:
		logger.FromContext(c.Context()).Error().Err(err).Msg("request failed")
		return fuego.InternalServerError{Detail: err.Error()}
	}
}

// Helper to parse int with default
func parseIntWithDefault(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
