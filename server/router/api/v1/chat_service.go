package v1

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/samber/lo"

	"github.com/yonder-travel/yonder/server/internal/observability"
	"github.com/yonder-travel/yonder/server/middleware"
	"github.com/yonder-travel/yonder/server/service/chat"
	"github.com/yonder-travel/yonder/store"
)

type sendMessageRequest struct {
	Content     string              `json:"content"`
	Attachments []attachmentPayload `json:"attachments"`
}

type attachmentPayload struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"` // base64 over the wire
}

type messageResponse struct {
	ID              string                 `json:"id"`
	SenderID        string                 `json:"senderId"`
	Content         string                 `json:"content"`
	Pending         bool                   `json:"pending"`
	ProposedActions []store.ProposedAction `json:"proposedActions,omitempty"`
	CreatedTs       int64                  `json:"createdTs"`
}

func toMessageResponse(m chat.Message) messageResponse {
	resp := messageResponse{
		ID:        m.ID,
		SenderID:  m.SenderID,
		Content:   m.Content,
		Pending:   store.IsLocalID(m.ID),
		CreatedTs: m.CreatedTs,
	}
	if m.Metadata != nil {
		resp.ProposedActions = m.Metadata.ProposedActions
	}
	return resp
}

func (s *APIV1Service) sendMessage(c echo.Context) error {
	tripID, err := pathInt32(c, "tripId")
	if err != nil {
		return err
	}
	request := &sendMessageRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if request.Content == "" && len(request.Attachments) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "message is empty")
	}

	engine, err := s.engineFor(c, tripID)
	if err != nil {
		return toHTTPError(err)
	}

	rc := observability.NewRequestContext(slog.Default(), conversationID(tripID, middleware.UserID(c)), middleware.UserID(c))
	draft := &chat.Draft{
		Content: request.Content,
		Attachments: lo.Map(request.Attachments, func(a attachmentPayload, _ int) store.Attachment {
			return store.Attachment{Name: a.Name, MimeType: a.MimeType, Data: a.Data}
		}),
	}
	if err := engine.Send(c.Request().Context(), draft); err != nil {
		rc.Error("send failed", err)
		return toHTTPError(err)
	}
	rc.Info("message sent", slog.Int64("duration_ms", rc.DurationMs()))

	return c.JSON(http.StatusOK, lo.Map(engine.Messages(), func(m chat.Message, _ int) messageResponse {
		return toMessageResponse(m)
	}))
}

func (s *APIV1Service) listMessages(c echo.Context) error {
	tripID, err := pathInt32(c, "tripId")
	if err != nil {
		return err
	}
	engine, err := s.engineFor(c, tripID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, lo.Map(engine.Messages(), func(m chat.Message, _ int) messageResponse {
		return toMessageResponse(m)
	}))
}

func (s *APIV1Service) clearHistory(c echo.Context) error {
	tripID, err := pathInt32(c, "tripId")
	if err != nil {
		return err
	}
	engine, err := s.engineFor(c, tripID)
	if err != nil {
		return toHTTPError(err)
	}
	if err := engine.ClearHistory(c.Request().Context()); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func pathInt32(c echo.Context, name string) (int32, error) {
	value, err := strconv.ParseInt(c.Param(name), 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "malformed "+name)
	}
	return int32(value), nil
}
