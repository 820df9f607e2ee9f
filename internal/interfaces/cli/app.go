package cli

import (
	"context"

	"github.com/turtacn/CoverIQ-Intelligence/internal/application/contracts"
	"github.com/turtacn/CoverIQ-Intelligence/internal/application/export"
	"github.com/turtacn/CoverIQ-Intelligence/internal/application/extractions"
	"github.com/turtacn/CoverIQ-Intelligence/internal/application/members"
	"github.com/turtacn/CoverIQ-Intelligence/internal/application/portfolios"
	"github.com/turtacn/CoverIQ-Intelligence/internal/config"
	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/authority"
	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/contract"
	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/extraction"
	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/gwp"
	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/portfolio"
	"github.com/turtacn/CoverIQ-Intelligence/internal/domain/prompt"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/database/postgres/repositories"
	redisdb "github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/CoverIQ-Intelligence/internal/infrastructure/storage/minio"
	"github.com/turtacn/CoverIQ-Intelligence/internal/intelligence/extractor"
)

// app wires configuration into infrastructure and application services.
// newApp connects the stores every command needs (Postgres, Redis);
// subcommands attach MinIO, Kafka, and the LLM engine on top as required.
type app struct {
	cfg    *config.Config
	logger logging.Logger

	pg       *postgres.Connection
	rdb      *redisdb.Client
	objects  *minio.Client
	producer *kafka.Producer

	memberRepo     gwp.MemberRepository
	dimensionRepo  gwp.DimensionRepository
	breakdownRepo  gwp.BreakdownRepository
	contractRepo   contract.Repository
	extractionRepo extraction.Repository
	modelRepo      extraction.ModelRepository
	authorityRepo  authority.Repository
	portfolioRepo  portfolio.Repository

	prompts    *prompt.Store
	members    *members.Service
	portfolios *portfolios.Service
	contracts  *contracts.Service
	exports    *export.Service
}

func newApp(cfg *config.Config, log logging.Logger) (*app, error) {
	pg, err := postgres.NewConnection(cfg.Database, log)
	if err != nil {
		return nil, err
	}

	rdb, err := redisdb.NewClient(cfg.Redis, log)
	if err != nil {
		pg.Close()
		return nil, err
	}

	var cacheOpts []redisdb.CacheOption
	if cfg.Redis.KeyPrefix != "" {
		cacheOpts = append(cacheOpts, redisdb.WithPrefix(cfg.Redis.KeyPrefix))
	}
	if cfg.Redis.DefaultTTL > 0 {
		cacheOpts = append(cacheOpts, redisdb.WithDefaultTTL(cfg.Redis.DefaultTTL))
	}
	cache := redisdb.NewCache(rdb, log.Named("cache"), cacheOpts...)

	a := &app{
		cfg:    cfg,
		logger: log,
		pg:     pg,
		rdb:    rdb,

		memberRepo:     repositories.NewMemberRepo(pg, log),
		dimensionRepo:  repositories.NewDimensionRepo(pg, log),
		breakdownRepo:  repositories.NewBreakdownRepo(pg, log),
		contractRepo:   repositories.NewContractRepo(pg, log),
		extractionRepo: repositories.NewExtractionRepo(pg, log),
		modelRepo:      repositories.NewModelRepo(pg, log),
		authorityRepo:  repositories.NewAuthorityRepo(pg, log),
		portfolioRepo:  repositories.NewPortfolioRepo(pg, log),
	}

	a.prompts = prompt.NewStore(repositories.NewPromptRepo(pg, log))
	a.members = members.NewService(a.memberRepo, a.dimensionRepo, a.breakdownRepo, log.Named("members"))
	a.portfolios = portfolios.NewService(a.portfolioRepo, a.authorityRepo, cache, log.Named("portfolios"))
	a.exports = export.NewService(a.portfolios, a.members, log.Named("export"))
	return a, nil
}

// Close releases connections in reverse dependency order.  Safe to call with
// optional components never attached.
func (a *app) Close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("Failed to close Kafka producer", logging.Err(err))
		}
	}
	if a.objects != nil {
		a.objects.Close()
	}
	if err := a.rdb.Close(); err != nil {
		a.logger.Error("Failed to close Redis client", logging.Err(err))
	}
	a.pg.Close()
}

// connectObjectStore attaches MinIO and the contract service.
func (a *app) connectObjectStore() error {
	client, err := minio.NewClient(a.cfg.MinIO, a.logger)
	if err != nil {
		return err
	}
	a.objects = client
	store := minio.NewObjectStore(client, a.logger.Named("minio"))
	a.contracts = contracts.NewService(a.contractRepo, store, a.logger.Named("contracts"))
	return nil
}

// connectProducer attaches the Kafka producer.
func (a *app) connectProducer() {
	a.producer = kafka.NewProducer(a.cfg.Kafka, a.logger.Named("kafka"))
}

// buildExtractions builds the extraction job service over the attached
// producer.
func (a *app) buildExtractions() *extractions.Service {
	return extractions.NewService(a.extractionRepo, a.modelRepo, a.contractRepo,
		a.producer, a.logger.Named("extractions"))
}

// buildEngine assembles the LLM engine.  OpenAI-compatible gateways are
// always registered; Gemini only when a key is configured.
func (a *app) buildEngine(ctx context.Context, metrics *prometheus.AppMetrics) (*extractor.Engine, error) {
	providers := []extractor.Provider{
		extractor.NewOpenAIProvider(a.cfg.LLM, a.logger.Named("openai")),
	}
	if a.cfg.LLM.GeminiAPIKey != "" {
		gemini, err := extractor.NewGeminiProvider(ctx, a.cfg.LLM, a.logger.Named("gemini"))
		if err != nil {
			return nil, err
		}
		providers = append(providers, gemini)
	}
	registry := extractor.NewRegistry(providers...)
	return extractor.NewEngine(a.prompts, registry, a.cfg.LLM, metrics, a.logger.Named("extractor")), nil
}
