package cmd

import (
	"strings"

	"pos-closing-service/api"
	"pos-closing-service/cmd/closing/config"
	"pos-closing-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var servePort string

// serveCmd runs the HTTP API.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the closure and reconciliation HTTP API",
	Long: `Serve starts the HTTP API exposing the cash chain, closures, statement
import and match review endpoints.

Examples:
  closing serve --port 8080 --dsn "user:pass@tcp(localhost:3306)/pos"
  closing serve --port 9090`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&servePort, "port", "8080", "listen port")
	viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))
}

func runServe(cmd *cobra.Command, args []string) error {
	log, err := logger.NewLogger(config.CreateLoggerConfig())
	if err != nil {
		return err
	}
	logger.SetGlobalLogger(log)

	eng, err := config.CreateEngine(viper.GetString("dsn"), viper.GetString("document-dir"))
	if err != nil {
		return err
	}

	cfg := api.DefaultConfig()
	if port := viper.GetString("port"); port != "" {
		if !strings.HasPrefix(port, ":") {
			port = ":" + port
		}
		cfg.Port = port
	}

	server, err := api.New(cfg, eng)
	if err != nil {
		return err
	}
	return server.Start()
}
