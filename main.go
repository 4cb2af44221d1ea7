package main

import (
	"context"
	"time"

	api "kidsnest-backend/cmd/api"
	directoryDomain "kidsnest-backend/internal/directory/domain"
	directoryRepo "kidsnest-backend/internal/directory/repository"
	notificationDelivery "kidsnest-backend/internal/notification/delivery"
	notificationDomain "kidsnest-backend/internal/notification/domain"
	notificationRepo "kidsnest-backend/internal/notification/repository"
	"kidsnest-backend/internal/notification/usecase"
	"kidsnest-backend/pkg/config"
	"kidsnest-backend/pkg/database"
	"kidsnest-backend/pkg/fcm"
	"kidsnest-backend/pkg/logger"
	"kidsnest-backend/pkg/mailer"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer log.Sync()

	db, err := database.NewPostgresConnection(cfg.Database.DSN())
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&directoryDomain.Guardian{},
		&notificationDomain.NotificationTemplate{},
		&notificationDomain.NotificationPreference{},
		&notificationDomain.DeviceToken{},
		&notificationDomain.QueuedNotification{},
	); err != nil {
		log.Fatal("failed to migrate database", zap.Error(err))
	}

	// Repositories
	guardianRepo := directoryRepo.NewGuardianRepository(db)
	templateRepo := notificationRepo.NewTemplateRepository(db)
	preferenceRepo := notificationRepo.NewPreferenceRepository(db)
	tokenRepo := notificationRepo.NewDeviceTokenRepository(db)
	queueRepo := notificationRepo.NewQueueRepository(
		db,
		cfg.Notifications.MaxRetryAttempts,
		time.Duration(cfg.Notifications.RetryDelayMinutes)*time.Minute,
	)

	if err := seedTemplates(templateRepo); err != nil {
		log.Fatal("failed to seed templates", zap.Error(err))
	}

	// Email transport: Postmark in production, log-only without a token.
	var mail mailer.Mailer
	if cfg.Email.PostmarkServerToken != "" {
		mail, err = mailer.NewPostmark(cfg.Email.PostmarkServerToken, cfg.Email.PostmarkAccountToken, cfg.Email.FromAddress)
		if err != nil {
			log.Fatal("failed to initialize mailer", zap.Error(err))
		}
	} else {
		log.Warn("no Postmark token configured, using dev mailer")
		mail = mailer.NewDev(log)
	}

	// Push gateway: optional, the dispatcher treats an absent client as
	// a globally disabled push channel.
	var pushClient *fcm.Client
	if cfg.Notifications.FCMEnabled && cfg.Firebase.CredentialsFile != "" {
		pushClient, err = fcm.NewClient(
			context.Background(),
			cfg.Firebase.CredentialsFile,
			usecase.RegistryTokenSource{Tokens: tokenRepo},
			log,
		)
		if err != nil {
			log.Warn("failed to initialize FCM client, push notifications disabled", zap.Error(err))
		}
	}

	notifier := usecase.NewNotifierUsecase(templateRepo, preferenceRepo, tokenRepo, queueRepo, log)

	dispatcherCfg := usecase.DispatcherConfig{
		BatchSize:       cfg.Notifications.QueueBatchSize,
		Concurrency:     cfg.Notifications.DispatchConcurrency,
		Interval:        time.Duration(cfg.Notifications.DispatchIntervalSeconds) * time.Second,
		StaleClaimAfter: time.Duration(cfg.Notifications.StaleClaimMinutes) * time.Minute,
		DeliveryTimeout: time.Duration(cfg.Notifications.DeliveryTimeoutSeconds) * time.Second,
		EmailEnabled:    cfg.Notifications.EmailEnabled,
		FCMEnabled:      cfg.Notifications.FCMEnabled && pushClient != nil,
	}
	var push usecase.PushSender
	if pushClient != nil {
		push = pushClient
	}
	dispatcher := usecase.NewDispatcher(queueRepo, tokenRepo, guardianRepo, mail, push, dispatcherCfg, log)
	dispatcher.Start(context.Background())
	defer dispatcher.Stop()

	notificationHandler := notificationDelivery.NewNotificationHandler(notifier)
	adminHandler := notificationDelivery.NewAdminHandler(notifier, dispatcher)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	api.SetupRoutes(r, cfg, notificationHandler, adminHandler)

	log.Info("server starting", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

// seedTemplates installs the built-in message templates on first boot.
// Existing installations keep their admin-edited copies.
func seedTemplates(templates notificationRepo.TemplateRepository) error {
	existing, err := templates.List()
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	defaults := []notificationDomain.NotificationTemplate{
		{
			Type:              notificationDomain.TypeCheckIn,
			DisplayName:       "Check-in",
			SubjectTemplate:   "{{childName}} checked in at {{time}}",
			BodyTemplate:      "{{childName}} was checked in to {{roomName}} at {{time}}.",
			PushTitleTemplate: "{{childName}} checked in",
			PushBodyTemplate:  "Arrived at {{time}}",
			Active:            true,
		},
		{
			Type:            notificationDomain.TypeIncident,
			DisplayName:     "Incident report",
			SubjectTemplate: "Incident report for {{childName}}",
			BodyTemplate:    "An incident involving {{childName}} was recorded: {{description}}",
			Active:          true,
		},
		{
			Type:            notificationDomain.TypeMeal,
			DisplayName:     "Meal",
			SubjectTemplate: "{{childName}} had {{mealType}}",
			BodyTemplate:    "{{childName}} ate {{mealType}} at {{time}}: {{details}}",
			Active:          true,
		},
		{
			Type:            notificationDomain.TypeNap,
			DisplayName:     "Nap",
			SubjectTemplate: "{{childName}} napped",
			BodyTemplate:    "{{childName}} slept from {{start}} to {{end}}.",
			Active:          true,
		},
		{
			Type:              notificationDomain.TypePhoto,
			DisplayName:       "New photo",
			SubjectTemplate:   "New photo of {{childName}}",
			BodyTemplate:      "A new photo of {{childName}} was shared.",
			PushTitleTemplate: "New photo",
			PushBodyTemplate:  "A new photo of {{childName}} was shared",
			Active:            true,
		},
		{
			Type:            notificationDomain.TypeAnnouncement,
			DisplayName:     "Announcement",
			SubjectTemplate: "{{title}}",
			BodyTemplate:    "{{message}}",
			Active:          true,
		},
	}
	for i := range defaults {
		if err := templates.Upsert(&defaults[i]); err != nil {
			return err
		}
	}
	return nil
}
