package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/yonder-travel/yonder/store"
)

type actionResponse struct {
	MessageID       int32                  `json:"messageId"`
	ProposedActions []store.ProposedAction `json:"proposedActions"`
}

func (s *APIV1Service) executeAction(c echo.Context) error {
	return s.resolveAction(c, true)
}

func (s *APIV1Service) rejectAction(c echo.Context) error {
	return s.resolveAction(c, false)
}

func (s *APIV1Service) resolveAction(c echo.Context, execute bool) error {
	tripID, err := pathInt32(c, "tripId")
	if err != nil {
		return err
	}
	messageID, err := pathInt32(c, "messageId")
	if err != nil {
		return err
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed index")
	}

	executor := s.executorFor(tripID)
	var message *store.Message
	if execute {
		message, err = executor.Execute(c.Request().Context(), messageID, index)
	} else {
		message, err = executor.Reject(c.Request().Context(), messageID, index)
	}
	if err != nil {
		return toHTTPError(err)
	}

	metadata, err := store.DecodeMessageMetadata(message.Metadata)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "malformed message metadata")
	}
	return c.JSON(http.StatusOK, actionResponse{
		MessageID:       message.ID,
		ProposedActions: metadata.ProposedActions,
	})
}
