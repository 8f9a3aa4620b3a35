package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// RunHTTP wires the gin engine into the fx lifecycle.
func RunHTTP(lc fx.Lifecycle, s *Server) {
	gin.SetMode(s.cfg.Server.Mode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	s.RegisterRoutes(engine)

	srv := &http.Server{
		Addr:    s.cfg.Server.Addr,
		Handler: engine,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.log.Info("http server starting", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
