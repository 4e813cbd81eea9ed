package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/yonder-travel/yonder/plugin/ical"
)

func (s *APIV1Service) itineraryICS(c echo.Context) error {
	tripID, err := pathInt32(c, "tripId")
	if err != nil {
		return err
	}
	calendar, err := ical.BuildTripCalendar(c.Request().Context(), s.store, tripID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.Blob(http.StatusOK, "text/calendar; charset=utf-8", []byte(calendar))
}
