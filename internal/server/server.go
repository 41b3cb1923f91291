package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/davidpro08/web15-ipconfig/internal/router"
	"github.com/davidpro08/web15-ipconfig/internal/server/middleware"
	"github.com/davidpro08/web15-ipconfig/pkg/config"
	"github.com/davidpro08/web15-ipconfig/pkg/state/statemanager"
	"github.com/davidpro08/web15-ipconfig/pkg/transport"
	"github.com/davidpro08/web15-ipconfig/pkg/widget"
)

// App wires the stores, the event router and the transport broker behind a
// single HTTP server exposing the workspace WebSocket endpoint.
type App struct {
	logger      *slog.Logger
	broker      *transport.Broker
	eventRouter *router.EventRouter
	wg          sync.WaitGroup
	http        *http.Server
	mux         *http.ServeMux
	config      *config.Config

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config) *App {
	broker := transport.NewBroker(logger)
	sessions := statemanager.NewInMemorySessions(logger)
	cursors := statemanager.NewInMemoryCursors(logger)
	widgets := widget.NewStore(logger)
	eventRouter := router.NewEventRouter(logger, sessions, cursors, widgets, broker)

	app := &App{
		logger:      logger,
		broker:      broker,
		eventRouter: eventRouter,
		config:      cfg,
		ctx:         rootCtx,
	}

	connCycler := func(ip string) {
		oldest, found := broker.OldestByIP(ip)
		if found {
			logger.Info("cycling connection: closing oldest", slog.String("ip", ip), slog.String("connID", oldest.ID().String()))
			oldest.Close(errors.New("connection cycled by new connection"))
		}
	}

	mux := http.NewServeMux()
	mux.Handle("/workspace",
		middleware.Chain(http.HandlerFunc(app.upgradeHandler),
			middleware.RequestMetadataMiddleware(),
			middleware.NewRequestLogger(logger),
			middleware.NewConnectionLimiter(
				logger,
				broker.CountByIP,
				connCycler,
				cfg.Server.ConnectionLimit,
			),
		),
	)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	app.mux = mux

	app.http = &http.Server{Addr: cfg.Server.Address, Handler: mux, BaseContext: func(l net.Listener) context.Context {
		return app.ctx
	}}

	return app
}

// Handler exposes the mux, mainly for tests that mount the app on an
// httptest server.
func (a *App) Handler() http.Handler {
	return a.mux
}

func (a *App) Run() error {
	go func() {
		a.logger.Info("server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != http.ErrServerClosed {
			a.logger.Error("HTTP server failed", slog.Any("error", err))
		}
	}()

	<-a.ctx.Done()
	return a.Shutdown()
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, _ := middleware.ReqMetadataFrom(r.Context())
	var ip string
	if reqMeta != nil {
		ip = reqMeta.IP
	}

	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error("failed to accept websocket connection", slog.Any("error", err))
		return
	}

	conn := transport.NewConnection(
		a.ctx,
		&a.wg,
		wsConn,
		transport.ConnectionConfig(a.config.Transport),
		a.logger,
	)
	a.broker.Register(conn, ip)

	conn.SetOnMessage(a.eventRouter.HandleMessage)
	conn.SetOnClose(func(id uuid.UUID, err error) {
		// Disconnect runs the exact same room cleanup as an explicit leave,
		// then drops the connection from the broker table.
		a.eventRouter.HandleDisconnect(id)
		a.broker.Deregister(id)
	})

	a.logger.Info("connection established", slog.String("connID", conn.ID().String()), slog.String("ip", ip))
	conn.Run()
	<-conn.Done()
}

// Shutdown drains the HTTP server and closes every live connection.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	a.logger.Info("closing all active connections...")
	a.broker.CloseAll(errors.New("graceful shutdown"))

	a.wg.Wait()
	a.logger.Info("server shut down gracefully")
	return nil
}
