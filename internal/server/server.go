package server

import (
	"net/http"

	"github.com/Kwazak/umnfestival2026-sub001/internal/apperr"
	"github.com/Kwazak/umnfestival2026-sub001/internal/dto"
	"github.com/Kwazak/umnfestival2026-sub001/internal/handler"
	custommw "github.com/Kwazak/umnfestival2026-sub001/internal/middleware"
	"github.com/Kwazak/umnfestival2026-sub001/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Server struct {
	echo            *echo.Echo
	checkoutHandler *handler.CheckoutHandler
	orderHandler    *handler.OrderHandler
	paymentHandler  *handler.PaymentHandler
	identityService service.IdentityService
}

func NewServer(
	checkoutHandler *handler.CheckoutHandler,
	orderHandler *handler.OrderHandler,
	paymentHandler *handler.PaymentHandler,
	identityService service.IdentityService,
) *Server {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.HTTPErrorHandler = errorHandler(e)

	s := &Server{
		echo:            e,
		checkoutHandler: checkoutHandler,
		orderHandler:    orderHandler,
		paymentHandler:  paymentHandler,
		identityService: identityService,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.echo.Group("/api")

	api.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	// -------- checkout bootstrap --------
	checkout := api.Group("/checkout")
	checkout.POST("/check-existing", s.checkoutHandler.CheckExisting)
	checkout.POST("/session", s.checkoutHandler.BootstrapSession)
	checkout.POST("/validate-code", s.checkoutHandler.ValidateCode)

	// -------- orders (session-scoped) --------
	orders := api.Group("/orders", custommw.SessionAuth(s.identityService))
	orders.POST("", s.orderHandler.Create)
	orders.POST("/:number/token", s.orderHandler.CreatePaymentToken)
	orders.POST("/:number/verify", s.orderHandler.VerifyPayment)
	orders.GET("/:number/status", s.orderHandler.PaymentStatus)

	// -------- gateway webhook --------
	api.POST("/payments/notify", s.paymentHandler.Notify)
}

// errorHandler maps the apperr taxonomy onto HTTP codes: validation 422,
// conflicts 409, not-found 404, gateway transport trouble 502, vendor
// rejection and ambiguity 200 with an explicit status (the request itself
// succeeded, only the payment didn't).
func errorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		if ae := apperr.As(err); ae != nil {
			code := http.StatusInternalServerError
			switch ae.Kind {
			case apperr.KindValidation:
				code = http.StatusUnprocessableEntity
			case apperr.KindConflict:
				// duplicate-contact surfaces as a field error on the form;
				// wrong-state transitions are real conflicts
				if ae.Reason == apperr.ReasonDuplicateContact {
					code = http.StatusUnprocessableEntity
				} else {
					code = http.StatusConflict
				}
			case apperr.KindNotFound:
				code = http.StatusNotFound
			case apperr.KindGatewayTransient:
				code = http.StatusBadGateway
			case apperr.KindGatewayRejected:
				code = http.StatusUnprocessableEntity
			case apperr.KindAmbiguous:
				code = http.StatusAccepted
			}

			_ = c.JSON(code, dto.ErrorResponse{
				Error:  ae.Msg,
				Field:  ae.Field,
				Reason: ae.Reason,
			})
			return
		}

		e.DefaultHTTPErrorHandler(err, c)
	}
}

func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

func (s *Server) Shutdown() error {
	return s.echo.Close()
}
