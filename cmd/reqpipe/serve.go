package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/loykin/reqpipe/internal/server"
	"github.com/loykin/reqpipe/pkg/events"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the request API and event stream for a UI process",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := loadRuntime(cmd)
		if err != nil {
			return err
		}
		st, err := rt.doc.OpenStore(rt.dataDir)
		if err != nil {
			return err
		}
		if st != nil {
			defer func() { _ = st.Close() }()
		}

		broker := events.NewBroker()
		svc, err := rt.newService(broker, st)
		if err != nil {
			return err
		}
		if rt.logger.Level().String() != "debug" {
			gin.SetMode(gin.ReleaseMode)
		}
		srv := server.New(server.Config{
			Addr:      rt.doc.Server.Addr,
			JWTSecret: rt.doc.Server.JWTSecret,
			JWTIssuer: rt.doc.Server.JWTIssuer,
		}, svc, broker, rt.logger)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return srv.ListenAndServe(ctx)
	},
}
