package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/clock"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/handlers"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"github.com/ukydev/fleet-maintenance/internal/notify"
	"github.com/ukydev/fleet-maintenance/internal/scheduling"
	"github.com/ukydev/fleet-maintenance/internal/sweep"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found, relying on environment")
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	client, err := db.ConnectMongo()
	if err != nil {
		log.WithError(err).Fatal("failed to connect to MongoDB")
	}
	defer client.Disconnect(context.Background())
	log.Info("connected to MongoDB")

	dbName := os.Getenv("MONGO_DB")
	if dbName == "" {
		dbName = "fleet"
	}
	database := client.Database(dbName)
	if err := db.EnsureIndexes(context.Background(), database); err != nil {
		log.WithError(err).Fatal("failed to create indexes")
	}

	tasks := &db.MongoTaskCollection{Collection: database.Collection("maintenance_tasks")}
	vehicles := &db.MongoVehicleCollection{Collection: database.Collection("vehicles")}
	notifications := &db.MongoNotificationCollection{Collection: database.Collection("notifications")}
	users := &db.MongoUserCollection{Collection: database.Collection("users")}

	var publisher notify.Publisher
	if broker := os.Getenv("MQTT_BROKER"); broker != "" {
		mqttPublisher, err := notify.NewMQTTPublisher(broker, "fleet-maintenance")
		if err != nil {
			log.WithError(err).Warn("MQTT broker unreachable, notifications will not be mirrored")
		} else {
			publisher = mqttPublisher
			defer mqttPublisher.Close()
			log.WithField("broker", broker).Info("mirroring notifications to MQTT")
		}
	}
	notifier := notify.NewService(notifications, publisher, os.Getenv("MQTT_TOPIC_PREFIX"))

	clk := clock.System{}
	engine := scheduling.NewEngine(tasks, vehicles, notifier, clk)
	sweeper := sweep.NewSweeper(tasks, vehicles, notifications, notifier, clk)

	scheduler := sweep.NewScheduler(sweeper, sweep.Config{
		ReminderHour: envInt("REMINDER_HOUR", 8),
		Timezone:     os.Getenv("SWEEP_TIMEZONE"),
	})
	if err := scheduler.Start(); err != nil {
		log.WithError(err).Fatal("failed to start sweep scheduler")
	}
	defer scheduler.Stop()

	authService := auth.NewService()
	seedAdmin(authService, users)

	mux := http.NewServeMux()
	handlers.NewAuthHandler(authService, users).Register(mux)
	handlers.NewMaintenanceHandler(engine).Register(mux)
	handlers.NewVehicleHandler(vehicles).Register(mux)
	handlers.NewNotificationHandler(notifications).Register(mux)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	authMiddleware := middleware.NewAuthMiddleware(authService)
	handler := authMiddleware.Authenticate(authMiddleware.RequireMaintenanceManager(mux))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	server := &http.Server{Addr: ":" + port, Handler: handler}

	go func() {
		log.WithField("port", port).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("HTTP shutdown incomplete")
	}
}

// seedAdmin creates the initial admin account when no users exist yet.
func seedAdmin(authService *auth.Service, users db.UserCollection) {
	username := os.Getenv("ADMIN_USERNAME")
	if username == "" {
		username = "admin"
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if password == "" {
		password = "admin123"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := users.FindUserByUsername(ctx, username); err == nil {
		return
	} else if !errors.Is(err, db.ErrNotFound) {
		log.WithError(err).Warn("failed to check for admin account")
		return
	}

	hash, err := authService.HashPassword(password)
	if err != nil {
		log.WithError(err).Warn("failed to hash admin password")
		return
	}
	err = users.InsertUser(ctx, models.User{
		Username:     username,
		Email:        username + "@fleet.local",
		PasswordHash: hash,
		Role:         models.RoleAdmin,
	})
	if err != nil {
		log.WithError(err).Warn("failed to seed admin account")
		return
	}
	log.WithField("username", username).Info("seeded admin account")
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			return parsed
		}
	}
	return fallback
}
