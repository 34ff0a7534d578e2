package handler

import (
	"net/http"

	"github.com/Kwazak/umnfestival2026-sub001/internal/dto"
	"github.com/Kwazak/umnfestival2026-sub001/internal/service"

	"github.com/labstack/echo/v4"
)

type CheckoutHandler struct {
	identityService service.IdentityService
	codeService     service.CodeService
}

func NewCheckoutHandler(identityService service.IdentityService, codeService service.CodeService) *CheckoutHandler {
	return &CheckoutHandler{
		identityService: identityService,
		codeService:     codeService,
	}
}

func (h *CheckoutHandler) CheckExisting(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CheckExistingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	if err := h.identityService.CheckExisting(ctx, req.Email, req.Phone); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (h *CheckoutHandler) BootstrapSession(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.BootstrapRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	session, err := h.identityService.Bootstrap(ctx, req.Name, req.Email, req.Phone)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, session)
}

func (h *CheckoutHandler) ValidateCode(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.ValidateCodeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	code, err := h.codeService.Validate(ctx, req.Code, req.Kind, req.Amount)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, dto.CodeDescriptor{
		Code:          code.Code,
		Kind:          code.Kind,
		Percent:       code.Percent,
		MinimumAmount: code.MinimumAmount,
	})
}
