package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/yonder-travel/yonder/server/service/poll"
)

type voteRequest struct {
	OptionID string `json:"optionId"`
}

type tallyResponse struct {
	Counts   map[string]int `json:"counts"`
	Selected []string       `json:"selected"`
}

func toTallyResponse(t poll.Tally) tallyResponse {
	return tallyResponse{Counts: t.Counts, Selected: t.Selected}
}

func (s *APIV1Service) vote(c echo.Context) error {
	pollID, err := pathInt32(c, "pollId")
	if err != nil {
		return err
	}
	request := &voteRequest{}
	if err := c.Bind(request); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}
	if request.OptionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "optionId is required")
	}

	reconciler, err := s.reconcilerFor(c, pollID)
	if err != nil {
		return toHTTPError(err)
	}
	if err := reconciler.Vote(c.Request().Context(), request.OptionID); err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toTallyResponse(reconciler.Tally()))
}

func (s *APIV1Service) tally(c echo.Context) error {
	pollID, err := pathInt32(c, "pollId")
	if err != nil {
		return err
	}
	reconciler, err := s.reconcilerFor(c, pollID)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, toTallyResponse(reconciler.Tally()))
}
