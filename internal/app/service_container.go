package app

import (
	"fmt"
	"log"
	"sync"
	"time"

	"moveregistry-backend/internal/anchor"
	"moveregistry-backend/internal/cache"
	"moveregistry-backend/internal/clients"
	"moveregistry-backend/internal/config"
	"moveregistry-backend/internal/db"
	"moveregistry-backend/internal/events"
	"moveregistry-backend/internal/repository"
	"moveregistry-backend/internal/services"
	"moveregistry-backend/internal/x402"

	"github.com/gagliardetto/solana-go"
	"gorm.io/gorm"
)

// ServiceContainer holds every wired component of the service.
type ServiceContainer struct {
	// Database
	DB *gorm.DB

	// Repositories
	MoveRepo    repository.MoveRepository
	AttemptRepo repository.AttemptRepository
	RoyaltyRepo repository.RoyaltyRepository
	AdminRepo   repository.AdminRepository

	// Chain & payment clients
	Program        *anchor.Program
	SolanaClient   *clients.SolanaClient
	RelayClient    *clients.RelayClient
	MetadataClient *clients.MetadataClient
	Resolver       *x402.RequirementResolver
	Facilitator    *x402.FacilitatorClient

	// Event & push services
	NATSClient           *clients.NATSClient
	Publisher            *events.Publisher
	WebSocketPushService *services.WebSocketPushService
	WalletBridge         *services.WalletBridge

	// Cache
	RequirementCache *cache.RequirementCache

	// Core services
	MintService    *services.MintService
	RoyaltyService *services.RoyaltyService
}

// Global service container instance
var Container *ServiceContainer
var containerOnce sync.Once

// InitializeContainer wires the container once.
func InitializeContainer() (*ServiceContainer, error) {
	var initErr error

	containerOnce.Do(func() {
		log.Println("🚀 Initializing Service Container...")

		container := &ServiceContainer{
			DB: db.DB,
		}

		container.initRepositories()

		if err := container.initClients(); err != nil {
			initErr = fmt.Errorf("failed to initialize clients: %w", err)
			return
		}

		// Event services are optional.
		if err := container.initEventServices(); err != nil {
			log.Printf("⚠️ Event services initialization skipped or failed: %v", err)
		}

		if err := container.initCoreServices(); err != nil {
			initErr = fmt.Errorf("failed to initialize core services: %w", err)
			return
		}

		Container = container
		log.Println("✅ Service Container initialized successfully")
	})

	return Container, initErr
}

func (c *ServiceContainer) initRepositories() {
	log.Println("📦 Initializing Repositories...")

	c.MoveRepo = repository.NewMoveRepository(c.DB)
	c.AttemptRepo = repository.NewAttemptRepository(c.DB)
	c.RoyaltyRepo = repository.NewRoyaltyRepository(c.DB)
	c.AdminRepo = repository.NewAdminRepository(c.DB)
}

func (c *ServiceContainer) initClients() error {
	log.Println("🔌 Initializing Clients...")
	cfg := config.AppConfig

	program, err := anchor.NewProgram(cfg.Chain.ProgramID, cfg.Chain.USDCMint)
	if err != nil {
		return err
	}
	c.Program = program

	c.SolanaClient = clients.NewSolanaClient(cfg.Chain.RPCURL)
	c.RelayClient = clients.NewRelayClient(cfg.Payment.RelayURL, clients.NewHTTPFetcher(30*time.Second))
	c.Resolver = x402.NewRequirementResolver(c.RelayClient)
	c.Facilitator = x402.NewFacilitatorClient(c.RelayClient)

	if cfg.Metadata.BaseURL != "" {
		c.MetadataClient = clients.NewMetadataClient(cfg.Metadata.BaseURL)
	}

	if cfg.Redis.Host != "" {
		rdb, err := cache.NewRedisClient(config.GetRedisAddr(), cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Printf("⚠️ Redis unavailable, requirement caching disabled: %v", err)
		} else {
			ttl := time.Duration(cfg.Payment.CacheTTLSeconds) * time.Second
			c.RequirementCache = cache.NewRequirementCache(rdb, ttl)
		}
	}

	return nil
}

func (c *ServiceContainer) initEventServices() error {
	cfg := config.AppConfig
	if cfg.NATS.URL == "" {
		log.Println("📭 NATS not configured, event publishing disabled")
		c.Publisher = events.NewPublisher(nil)
		return nil
	}

	natsClient, err := clients.NewNATSClient(cfg.NATS.URL, cfg.NATS.StreamName)
	if err != nil {
		c.Publisher = events.NewPublisher(nil)
		return err
	}
	c.NATSClient = natsClient
	c.Publisher = events.NewPublisher(natsClient)
	return nil
}

func (c *ServiceContainer) initCoreServices() error {
	log.Println("⚙️ Initializing Core Services...")
	cfg := config.AppConfig

	c.WebSocketPushService = services.NewWebSocketPushService()
	c.WalletBridge = services.NewWalletBridge()

	var verifierKey *solana.PrivateKey
	if cfg.Chain.VerifierKey != "" {
		key, err := solana.PrivateKeyFromBase58(cfg.Chain.VerifierKey)
		if err != nil {
			return fmt.Errorf("invalid verifier key: %w", err)
		}
		verifierKey = &key
	}

	var metadata services.MetadataAttacher
	if c.MetadataClient != nil {
		metadata = c.MetadataClient
	}

	c.MintService = services.NewMintService(
		c.Program,
		c.SolanaClient,
		c.Resolver,
		c.Facilitator,
		metadata,
		c.WalletBridge,
		c.WebSocketPushService,
		c.Publisher,
		c.MoveRepo,
		c.AttemptRepo,
		c.RequirementCache,
		services.MintServiceOptions{
			PaymentEndpoint:   cfg.Payment.EndpointURL,
			NativeFeeLamports: cfg.Chain.NativeFeeLamports,
			ConfirmTimeout:    time.Duration(cfg.Chain.ConfirmTimeoutSeconds) * time.Second,
			VerifierKey:       verifierKey,
		},
	)

	c.RoyaltyService = services.NewRoyaltyService(
		c.Program,
		c.RoyaltyRepo,
		c.MoveRepo,
		c.Publisher,
		c.WebSocketPushService,
	)

	return nil
}

// Shutdown releases external connections.
func (c *ServiceContainer) Shutdown() {
	if c.NATSClient != nil {
		c.NATSClient.Close()
	}
}
