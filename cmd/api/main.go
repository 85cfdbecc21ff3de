package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	cloudstorage "cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/hanko-field/commerce/internal/di"
	"github.com/hanko-field/commerce/internal/handlers"
	"github.com/hanko-field/commerce/internal/jobs"
	"github.com/hanko-field/commerce/internal/notifications"
	"github.com/hanko-field/commerce/internal/payments"
	"github.com/hanko-field/commerce/internal/platform/auth"
	"github.com/hanko-field/commerce/internal/platform/config"
	pfirestore "github.com/hanko-field/commerce/internal/platform/firestore"
	"github.com/hanko-field/commerce/internal/platform/idempotency"
	"github.com/hanko-field/commerce/internal/platform/observability"
	"github.com/hanko-field/commerce/internal/platform/secrets"
	platformstorage "github.com/hanko-field/commerce/internal/platform/storage"
	"github.com/hanko-field/commerce/internal/repositories"
	firestoreRepo "github.com/hanko-field/commerce/internal/repositories/firestore"
)

const (
	stripeWebhookTolerance = 5 * time.Minute
	checkoutRateLimit      = 10
	shutdownTimeout        = 10 * time.Second
)

func main() {
	ctx := context.Background()
	startedAt := time.Now().UTC()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()

	logger := baseLogger.Named("api")
	ctx = observability.WithLogger(ctx, logger)

	fetcher, err := newSecretFetcher(ctx, logger)
	if err != nil {
		logger.Fatal("failed to initialise secret fetcher", zap.Error(err))
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx,
		config.WithSecretResolver(fetcher),
		config.WithRequiredSecrets(requiredSecretNames()...),
	)
	if err != nil {
		var missing *config.MissingSecretsError
		if errors.As(err, &missing) {
			logger.Fatal("missing required secrets", zap.Strings("secrets", missing.RedactedNames()))
		}
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)

	var redisClient *redis.Client
	if addr := strings.TrimSpace(cfg.Redis.Addr); addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	healthRepo, err := newHealthRepository(firestoreProvider, redisClient)
	if err != nil {
		logger.Fatal("failed to initialise health checks", zap.Error(err))
	}

	registry, err := firestoreRepo.NewRegistry(firestoreProvider, healthRepo)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}

	gateway, err := newPaymentGateway(cfg, logger.Named("payments"))
	if err != nil {
		logger.Fatal("failed to initialise payment providers", zap.Error(err))
	}

	storageClient, err := cloudstorage.NewClient(ctx)
	if err != nil {
		logger.Fatal("failed to initialise storage client", zap.Error(err))
	}
	defer func() {
		if err := storageClient.Close(); err != nil {
			logger.Warn("storage close error", zap.Error(err))
		}
	}()
	receipts, err := newReceiptStore(cfg, storageClient)
	if err != nil {
		logger.Fatal("failed to initialise receipt store", zap.Error(err))
	}

	hub := notifications.NewHub(
		notifications.WithHubLogger(logger.Named("ws")),
		notifications.WithAllowedOrigins(originOf(cfg.Checkout.SuccessURL)),
	)
	delivery, err := newEventDelivery(ctx, cfg, logger.Named("events"))
	if err != nil {
		logger.Fatal("failed to initialise event delivery", zap.Error(err))
	}
	renderer, err := notifications.NewMailRenderer()
	if err != nil {
		logger.Fatal("failed to parse mail templates", zap.Error(err))
	}
	dispatcherDeps := notifications.DispatcherDeps{
		Hub:      hub,
		Renderer: renderer,
		Logger:   logger,
	}
	if delivery.bus != nil {
		dispatcherDeps.Bus = delivery.bus
	}
	if delivery.mail != nil {
		dispatcherDeps.Mail = delivery.mail
	}
	dispatcher, err := notifications.NewDispatcher(dispatcherDeps)
	if err != nil {
		logger.Fatal("failed to initialise notification dispatcher", zap.Error(err))
	}

	infra := di.Infrastructure{
		Events: dispatcher,
		Mailer: dispatcher,
		Meter:  otel.Meter("github.com/hanko-field/commerce"),
		Logger: logger,
		Clock:  time.Now,
	}
	if gateway != nil {
		infra.Payments = gateway
	} else {
		logger.Warn("no payment provider configured; checkout routes are disabled")
	}
	if receipts != nil {
		infra.Receipts = receipts
	}

	container, err := di.NewContainer(ctx, cfg, registry, infra)
	if err != nil {
		logger.Fatal("failed to initialise services", zap.Error(err))
	}
	svc := container.Services

	scheduler := jobs.NewScheduler(jobs.WithLogger(logger.Named("jobs")))
	purgeJob, err := jobs.NewCartPurgeJob(svc.Carts, cfg.Jobs.CartStaleAfter, cfg.Jobs.CartPurgeBatch)
	if err != nil {
		logger.Fatal("failed to initialise cart purge job", zap.Error(err))
	}
	if err := scheduler.Register(cfg.Jobs.CartPurgeSchedule, purgeJob); err != nil {
		logger.Fatal("failed to register cart purge job", zap.Error(err))
	}
	if cfg.Jobs.Enabled {
		scheduler.Start()
	}

	firebaseVerifier, err := auth.NewFirebaseVerifier(ctx, cfg.Firebase)
	if err != nil {
		logger.Fatal("failed to initialise firebase verifier", zap.Error(err))
	}
	authenticator := auth.NewAuthenticator(firebaseVerifier)
	streamAuthenticator := auth.NewAuthenticator(firebaseVerifier, auth.WithQueryToken())

	idempotencyMiddleware := idempotency.Middleware(
		newIdempotencyStore(redisClient),
		idempotency.WithHeader(cfg.Idempotency.Header),
		idempotency.WithTTL(cfg.Idempotency.TTL),
		idempotency.WithLogger(logger.Named("idempotency")),
	)

	projectID := traceProjectID(cfg)
	middlewares := []func(http.Handler) http.Handler{
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(projectID),
		observability.RecoveryMiddleware(logger.Named("http")),
		observability.RequestLoggerMiddleware(projectID),
	}

	healthHandlers := handlers.NewHealthHandlers(
		handlers.WithHealthBuildInfo(buildInfoFromEnv(cfg, startedAt)),
		handlers.WithHealthReporter(registry.Health()),
	)

	var stripeVerifier handlers.StripeEventVerifier
	if secret := strings.TrimSpace(cfg.PSP.StripeWebhookSecret); secret != "" {
		verifier, err := payments.NewStripeWebhookVerifier(secret, stripeWebhookTolerance)
		if err != nil {
			logger.Fatal("failed to initialise stripe webhook verifier", zap.Error(err))
		}
		stripeVerifier = verifier
	}

	cartHandlers := handlers.NewCartHandlers(svc.Carts)
	wishlistHandlers := handlers.NewWishlistHandlers(svc.Wishlists)
	checkoutHandlers := handlers.NewCheckoutHandlers(svc.Checkout,
		handlers.WithCheckoutRateLimit(checkoutRateLimit, time.Minute, time.Now),
	)
	orderHandlers := handlers.NewOrderHandlers(svc.Orders, svc.Checkout)
	returnHandlers := handlers.NewReturnHandlers(svc.Returns)
	catalogHandlers := handlers.NewCatalogHandlers(svc.Inventory, svc.Deposits)
	adminHandlers := handlers.NewAdminHandlers(handlers.AdminDeps{
		Orders:    svc.Orders,
		Deposits:  svc.Deposits,
		Returns:   svc.Returns,
		Inventory: svc.Inventory,
	})
	webhookHandlers := handlers.NewWebhookHandlers(stripeVerifier, svc.Checkout)
	internalHandlers := handlers.NewInternalHandlers(scheduler)

	opts := []handlers.Option{
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(healthHandlers),
		handlers.WithCustomerMiddlewares(authenticator.RequireFirebaseAuth(), idempotencyMiddleware),
		handlers.WithAdminMiddlewares(authenticator.RequireFirebaseAuth(auth.RoleAdmin, auth.RoleStaff), idempotencyMiddleware),
		handlers.WithCartRoutes(cartHandlers.Routes),
		handlers.WithWishlistRoutes(wishlistHandlers.Routes),
		handlers.WithCheckoutRoutes(checkoutHandlers.Routes),
		handlers.WithOrderRoutes(orderHandlers.Routes),
		handlers.WithReturnRoutes(returnHandlers.Routes),
		handlers.WithCatalogRoutes(catalogHandlers.Routes),
		handlers.WithAdminRoutes(adminHandlers.Routes),
		handlers.WithNotificationStream(http.HandlerFunc(hub.ServeWS), streamAuthenticator.RequireFirebaseAuth()),
		handlers.WithWebhookRoutes(webhookHandlers.Routes),
	}
	if oidcMiddleware := buildOIDCMiddleware(logger.Named("auth"), cfg); oidcMiddleware != nil {
		opts = append(opts,
			handlers.WithInternalMiddlewares(oidcMiddleware),
			handlers.WithInternalRoutes(internalHandlers.Routes),
		)
	} else {
		logger.Warn("auth: OIDC not configured; internal routes are disabled")
	}

	router := handlers.NewRouter(opts...)
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	serverLogger := logger.Named("http").With(zap.String("addr", server.Addr))
	go func() {
		serverLogger.Info("commerce api listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverLogger.Fatal("http server error", zap.Error(err))
		}
	}()

	<-shutdown
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler stop error", zap.Error(err))
	}
	hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	delivery.close(logger)
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close error", zap.Error(err))
		}
	}
	if err := container.Close(shutdownCtx); err != nil {
		logger.Warn("repository close error", zap.Error(err))
	}
}

func buildInfoFromEnv(cfg config.Config, started time.Time) handlers.BuildInfo {
	version := strings.TrimSpace(os.Getenv("API_BUILD_VERSION"))
	if version == "" {
		version = strings.TrimSpace(os.Getenv("K_REVISION"))
	}
	if version == "" {
		version = "dev"
	}
	commit := strings.TrimSpace(os.Getenv("API_BUILD_COMMIT_SHA"))
	if commit == "" {
		commit = "unknown"
	}
	environment := strings.TrimSpace(cfg.Security.Environment)
	if environment == "" {
		environment = "local"
	}
	return handlers.BuildInfo{
		Version:     version,
		CommitSHA:   commit,
		Environment: environment,
		StartedAt:   started,
	}
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger) (*secrets.Fetcher, error) {
	defaultProject := strings.TrimSpace(os.Getenv("API_SECRET_DEFAULT_PROJECT_ID"))
	if defaultProject == "" {
		defaultProject = strings.TrimSpace(os.Getenv("API_FIREBASE_PROJECT_ID"))
	}
	fallbackPath := strings.TrimSpace(os.Getenv("API_SECRET_FALLBACK_FILE"))
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
		secrets.WithMeter(otel.Meter("github.com/hanko-field/commerce/secrets")),
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if credentialsFile := strings.TrimSpace(os.Getenv("API_FIREBASE_CREDENTIALS_FILE")); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}
	return secrets.NewFetcher(ctx, opts...)
}

// requiredSecretNames lists secrets that must resolve before serving. Payment secrets are
// only required when the deployment opts into the matching provider.
func requiredSecretNames() []string {
	var required []string
	if strings.TrimSpace(os.Getenv("API_PSP_STRIPE_API_KEY")) != "" {
		required = append(required, "PSP.StripeAPIKey", "PSP.StripeWebhookSecret")
	}
	if strings.TrimSpace(os.Getenv("API_PSP_PAYPAL_CLIENT_ID")) != "" {
		required = append(required, "PSP.PayPalSecret")
	}
	return required
}

func newHealthRepository(provider *pfirestore.Provider, redisClient *redis.Client) (repositories.HealthRepository, error) {
	checks := []repositories.DependencyCheck{
		{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check:   provider.Ping,
		},
	}
	if redisClient != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:    "redis",
			Timeout: 500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				return redisClient.Ping(ctx).Err()
			},
		})
	}
	return repositories.NewDependencyHealthRepository(checks)
}

// newPaymentGateway returns nil when no provider has credentials.
func newPaymentGateway(cfg config.Config, logger *zap.Logger) (*payments.Manager, error) {
	providers := make(map[string]payments.Provider)

	if key := strings.TrimSpace(cfg.PSP.StripeAPIKey); key != "" {
		stripeProvider, err := payments.NewStripeProvider(payments.StripeProviderConfig{
			APIKey:     key,
			SessionTTL: cfg.Checkout.SessionTTL,
			Logger:     payments.StripeLogger(observability.NewEventLogger(logger.Named("stripe"))),
			Clock:      time.Now,
		})
		if err != nil {
			return nil, fmt.Errorf("stripe: %w", err)
		}
		providers[payments.ProviderStripe] = stripeProvider
	}

	if strings.TrimSpace(cfg.PSP.PayPalClientID) != "" && strings.TrimSpace(cfg.PSP.PayPalSecret) != "" {
		paypalProvider, err := payments.NewPayPalProvider(payments.PayPalProviderConfig{
			ClientID:   cfg.PSP.PayPalClientID,
			Secret:     cfg.PSP.PayPalSecret,
			BaseURL:    cfg.PSP.PayPalBaseURL,
			HTTPClient: &http.Client{Timeout: 15 * time.Second},
			Logger:     observability.NewEventLogger(logger.Named("paypal")),
			Clock:      time.Now,
		})
		if err != nil {
			return nil, fmt.Errorf("paypal: %w", err)
		}
		providers[payments.ProviderPayPal] = paypalProvider
	}

	if len(providers) == 0 {
		return nil, nil
	}

	defaultProvider := strings.ToLower(strings.TrimSpace(cfg.PSP.DefaultProvider))
	if _, ok := providers[defaultProvider]; !ok {
		if _, hasStripe := providers[payments.ProviderStripe]; hasStripe {
			defaultProvider = payments.ProviderStripe
		} else {
			defaultProvider = payments.ProviderPayPal
		}
		logger.Warn("default payment provider unavailable; falling back",
			zap.String("configured", cfg.PSP.DefaultProvider),
			zap.String("provider", defaultProvider),
		)
	}
	return payments.NewManager(providers, payments.WithDefaultProvider(defaultProvider))
}

// newReceiptStore returns nil when no receipts bucket is configured.
func newReceiptStore(cfg config.Config, client *cloudstorage.Client) (*platformstorage.ReceiptStore, error) {
	bucket := strings.TrimSpace(cfg.Storage.ReceiptsBucket)
	if bucket == "" {
		return nil, nil
	}
	opts := []platformstorage.ReceiptOption{platformstorage.WithUploadTTL(cfg.Storage.ReceiptURLTTL)}
	if key := strings.TrimSpace(cfg.Storage.SignerKey); key != "" {
		signer, err := platformstorage.ParseSignerKey(key, cfg.Storage.SignerEmail)
		if err != nil {
			return nil, fmt.Errorf("parse signer key: %w", err)
		}
		opts = append(opts, platformstorage.WithSigner(signer))
	} else {
		opts = append(opts, platformstorage.WithClient(client))
	}
	return platformstorage.NewReceiptStore(bucket, opts...)
}

type eventDelivery struct {
	bus    notifications.EventBus
	mail   notifications.MailQueue
	topics []*pubsub.Topic
	client *pubsub.Client
	kafka  *notifications.KafkaEventPublisher
}

// newEventDelivery connects the configured event bus. Mail jobs always travel over Pub/Sub
// when a project is configured, regardless of the event backend.
func newEventDelivery(ctx context.Context, cfg config.Config, logger *zap.Logger) (*eventDelivery, error) {
	delivery := &eventDelivery{}
	backend := strings.ToLower(strings.TrimSpace(cfg.Events.Backend))

	projectID := strings.TrimSpace(cfg.Events.PubSubProjectID)
	if projectID != "" && backend != config.EventsBackendNone {
		client, err := pubsub.NewClient(ctx, projectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub client: %w", err)
		}
		delivery.client = client

		if topicName := strings.TrimSpace(cfg.Events.MailTopic); topicName != "" {
			topic := client.Topic(topicName)
			delivery.topics = append(delivery.topics, topic)
			mail, err := notifications.NewPubSubMailPublisher(topic)
			if err != nil {
				return nil, err
			}
			delivery.mail = mail
		}
		if backend == config.EventsBackendPubSub {
			if topicName := strings.TrimSpace(cfg.Events.OrderEventsTopic); topicName != "" {
				topic := client.Topic(topicName)
				delivery.topics = append(delivery.topics, topic)
				bus, err := notifications.NewPubSubEventPublisher(topic)
				if err != nil {
					return nil, err
				}
				delivery.bus = bus
			}
		}
	}

	if backend == config.EventsBackendKafka {
		publisher, err := notifications.NewKafkaEventPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
		if err != nil {
			return nil, fmt.Errorf("kafka publisher: %w", err)
		}
		delivery.kafka = publisher
		delivery.bus = publisher
	}

	if delivery.bus == nil {
		logger.Warn("event bus disabled; events reach websocket clients only", zap.String("backend", backend))
	}
	if delivery.mail == nil {
		logger.Warn("mail topic not configured; order mail is dropped")
	}
	return delivery, nil
}

func (d *eventDelivery) close(logger *zap.Logger) {
	for _, topic := range d.topics {
		topic.Stop()
	}
	if d.kafka != nil {
		if err := d.kafka.Close(); err != nil {
			logger.Warn("kafka writer close error", zap.Error(err))
		}
	}
	if d.client != nil {
		if err := d.client.Close(); err != nil {
			logger.Warn("pubsub close error", zap.Error(err))
		}
	}
}

func newIdempotencyStore(client *redis.Client) idempotency.Store {
	if client == nil {
		return idempotency.NewMemoryStore()
	}
	return idempotency.NewRedisStore(client)
}

func buildOIDCMiddleware(logger *zap.Logger, cfg config.Config) func(http.Handler) http.Handler {
	if strings.TrimSpace(cfg.Security.OIDC.JWKSURL) == "" {
		return nil
	}

	cache := auth.NewJWKSCache(cfg.Security.OIDC.JWKSURL)
	validator := auth.NewOIDCValidator(cache, logger)

	audience := strings.TrimSpace(cfg.Security.OIDC.Audience)
	if audience == "" {
		logger.Warn("auth: OIDC audience not configured; internal routes will reject requests")
	}
	issuers := cfg.Security.OIDC.Issuers
	if len(issuers) == 0 {
		logger.Warn("auth: OIDC issuers not configured; internal routes will reject requests")
	}
	return validator.RequireOIDC(audience, issuers)
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func originOf(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	scheme, rest, ok := strings.Cut(rawURL, "://")
	if !ok {
		return ""
	}
	host, _, _ := strings.Cut(rest, "/")
	return scheme + "://" + host
}
