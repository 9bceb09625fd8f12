package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"preservia.dev/silo-core/internal/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the silo telemetry server",
	Long: `Run the background server that:
- Simulates sensor telemetry for every active silo
- Evaluates threshold breaches and raises de-duplicated alerts
- Computes periodic spoilage risk predictions
- Publishes real-time events to RabbitMQ for the socket gateway
- Prunes sensor readings past the retention window`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	// Server-specific flags
	serverCmd.Flags().String("db-host", "localhost", "PostgreSQL host")
	serverCmd.Flags().Int("db-port", 5432, "PostgreSQL port")
	serverCmd.Flags().String("db-user", "postgres", "PostgreSQL user")
	serverCmd.Flags().String("db-password", "", "PostgreSQL password")
	serverCmd.Flags().String("db-name", "preservia", "PostgreSQL database name")
	serverCmd.Flags().String("db-sslmode", "disable", "PostgreSQL SSL mode")
	serverCmd.Flags().String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	serverCmd.Flags().String("events-queue", "silo-events", "RabbitMQ queue name for real-time events")
	serverCmd.Flags().String("notifications-queue", "push-notifications", "RabbitMQ queue name for push notification jobs")
	serverCmd.Flags().Duration("simulation-interval", 5*time.Second, "Interval between simulation ticks")
	serverCmd.Flags().Duration("prediction-interval", 30*time.Minute, "Interval between prediction runs")
	serverCmd.Flags().Duration("prediction-initial-delay", 30*time.Second, "Delay before the first prediction run")
	serverCmd.Flags().Bool("push-enabled", false, "Forward push notifications to the delivery queue")
	serverCmd.Flags().Int("metrics-port", 9100, "Prometheus metrics port (0 disables)")

	// Bind flags to viper
	_ = viper.BindPFlag("server.db.host", serverCmd.Flags().Lookup("db-host"))
	_ = viper.BindPFlag("server.db.port", serverCmd.Flags().Lookup("db-port"))
	_ = viper.BindPFlag("server.db.user", serverCmd.Flags().Lookup("db-user"))
	_ = viper.BindPFlag("server.db.password", serverCmd.Flags().Lookup("db-password"))
	_ = viper.BindPFlag("server.db.name", serverCmd.Flags().Lookup("db-name"))
	_ = viper.BindPFlag("server.db.sslmode", serverCmd.Flags().Lookup("db-sslmode"))
	_ = viper.BindPFlag("server.rabbitmq.url", serverCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("server.rabbitmq.events_queue", serverCmd.Flags().Lookup("events-queue"))
	_ = viper.BindPFlag("server.rabbitmq.notifications_queue", serverCmd.Flags().Lookup("notifications-queue"))
	_ = viper.BindPFlag("server.simulation_interval", serverCmd.Flags().Lookup("simulation-interval"))
	_ = viper.BindPFlag("server.prediction_interval", serverCmd.Flags().Lookup("prediction-interval"))
	_ = viper.BindPFlag("server.prediction_initial_delay", serverCmd.Flags().Lookup("prediction-initial-delay"))
	_ = viper.BindPFlag("server.push_enabled", serverCmd.Flags().Lookup("push-enabled"))
	_ = viper.BindPFlag("server.metrics_port", serverCmd.Flags().Lookup("metrics-port"))
}

func runServer(_ *cobra.Command, _ []string) error {
	logger := GetLogger()
	logger.Info("starting silo-core service")

	// Create server configuration from viper
	config := &server.Config{
		Logger:                 logger,
		DBHost:                 viper.GetString("server.db.host"),
		DBPort:                 viper.GetInt("server.db.port"),
		DBUser:                 viper.GetString("server.db.user"),
		DBPassword:             viper.GetString("server.db.password"),
		DBName:                 viper.GetString("server.db.name"),
		DBSSLMode:              viper.GetString("server.db.sslmode"),
		RabbitMQURL:            viper.GetString("server.rabbitmq.url"),
		EventsQueue:            viper.GetString("server.rabbitmq.events_queue"),
		NotificationsQueue:     viper.GetString("server.rabbitmq.notifications_queue"),
		SimulationInterval:     viper.GetDuration("server.simulation_interval"),
		PredictionInterval:     viper.GetDuration("server.prediction_interval"),
		PredictionInitialDelay: viper.GetDuration("server.prediction_initial_delay"),
		PushEnabled:            viper.GetBool("server.push_enabled"),
		MetricsPort:            viper.GetInt("server.metrics_port"),
	}

	srv, err := server.NewServer(config)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		return err
	}

	logger.Info("server configuration",
		"db_host", config.DBHost,
		"db_port", config.DBPort,
		"db_name", config.DBName,
		"rabbitmq_url", config.RabbitMQURL,
		"events_queue", config.EventsQueue,
		"simulation_interval", config.SimulationInterval,
		"prediction_interval", config.PredictionInterval,
		"push_enabled", config.PushEnabled,
		"metrics_port", config.MetricsPort,
	)

	if err := srv.Run(context.Background()); err != nil {
		logger.Error("server error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}
