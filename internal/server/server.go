package server

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/deskrelay/deskrelay/internal/handlers"
)

type Server struct {
	echo *echo.Echo
	addr string
}

func NewServer(addr string, pingHandler *handlers.PingHandler, supportHandler *handlers.SupportHandler, notificationsHandler *handlers.NotificationsHandler, wsHandler *handlers.WSHandler) *Server {
	if addr == "" {
		addr = ":5001"
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLogger())
	// The widget is embedded on customer pages and the notification
	// provider posts from its own infrastructure, so CORS stays open.
	e.Use(middleware.CORS())
	e.Validator = handlers.NewValidator()

	if pingHandler != nil {
		pingHandler.Register(e)
	}
	if supportHandler != nil {
		supportHandler.Register(e)
	}
	if notificationsHandler != nil {
		notificationsHandler.Register(e)
	}
	if wsHandler != nil {
		wsHandler.Register(e)
	}

	return &Server{
		echo: e,
		addr: addr,
	}
}

func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
