package handlers

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/landrecords/portal/common/apperr"
	"github.com/landrecords/portal/common/models"
)

// kindParam reads :kind. Unknown kinds are NotFound, like an unknown route.
func kindParam(c echo.Context) (models.Kind, error) {
	kind, err := models.ParseKind(c.Param("kind"))
	if err != nil {
		return "", apperr.Wrap(err, apperr.CodeNotFound, err.Error())
	}
	return kind, nil
}

func uuidParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperr.Newf(apperr.CodeInvalidArgument, "%s must be a uuid", name)
	}
	return id, nil
}

func bind(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return apperr.Wrap(err, apperr.CodeInvalidArgument, "invalid request body")
	}
	return nil
}
