package container

import (
	"fmt"

	"github.com/opendataplatform/registry/cmd/registry/service"
	"github.com/opendataplatform/registry/common/bootstrap"
	"github.com/opendataplatform/registry/common/clients"
	"github.com/opendataplatform/registry/common/models"
	"github.com/opendataplatform/registry/common/queue"
	"github.com/opendataplatform/registry/common/ratelimit"
)

// Container holds all initialized services (singleton pattern)
type Container struct {
	// Components
	Components *bootstrap.Components
	Limiter    *ratelimit.Limiter // nil unless rate limiting is enabled
	Queue      queue.Queue        // background publication requests

	// Services
	Audit       *service.AuditRecorder
	AuditLog    *service.AuditService
	Keywords    *service.KeywordService
	Providers   *service.ProviderService
	Collections *service.CollectionService
	Packages    *service.PackageService
	Records     *service.RecordService
	Taggers     map[models.EntityKind]*service.Tagger
	Publisher   *service.Publisher
}

// NewContainer initializes all services once
func NewContainer(components *bootstrap.Components) (*Container, error) {
	if components.Store == nil {
		return nil, fmt.Errorf("container requires an entity store")
	}
	if components.Schemas == nil {
		return nil, fmt.Errorf("container requires a schema registry")
	}

	cfg := components.Config
	log := components.Logger
	store := components.Store
	schemas := components.Schemas
	metrics := components.Metrics()

	// Initialize services (bottom-up: dependencies first)
	audit := service.NewAuditRecorder(metrics, log)

	taggers := make(map[models.EntityKind]*service.Tagger, 3)
	for _, kind := range []service.TagKind{service.CollectionTags, service.PackageTags, service.RecordTags} {
		taggers[kind.Kind] = service.NewTagger(kind, store, schemas, audit, metrics, log)
	}

	publisher := service.NewPublisher(store, metrics, components.Telemetry, log,
		service.NewSAEONCatalog(models.CatalogSAEON, schemas),
		service.NewMIMSCatalog(models.CatalogMIMS, schemas),
		service.NewDataCiteCatalog(models.CatalogDataCite, cfg.Catalog.DOIReturnURL, schemas, doiRegistry(components), log),
	)

	c := &Container{
		Components:  components,
		Audit:       audit,
		AuditLog:    service.NewAuditService(store, log),
		Keywords:    service.NewKeywordService(store, schemas, components.Cache, cfg.Cache.DefaultTTL, audit, metrics, log),
		Providers:   service.NewProviderService(store, audit, log),
		Collections: service.NewCollectionService(store, audit, log),
		Packages:    service.NewPackageService(store, schemas, audit, metrics, log),
		Records:     service.NewRecordService(store, schemas, audit, log),
		Taggers:     taggers,
		Publisher:   publisher,
	}

	if components.Redis != nil {
		c.Queue = queue.NewRedisQueue(components.Redis.GetUnderlying(), cfg.Service.Name+":", log)
	} else {
		c.Queue = queue.NewMemoryQueue(log)
	}

	if cfg.RateLimit.Enabled {
		if components.Redis == nil {
			return nil, fmt.Errorf("rate limiting requires a redis connection")
		}
		c.Limiter = ratelimit.NewLimiter(components.Redis.GetUnderlying(), cfg.Service.Name+":", log)
	}

	return c, nil
}

// doiRegistry returns the DataCite client, or a disabled registry when no
// DataCite credentials are configured
func doiRegistry(components *bootstrap.Components) service.DOIRegistry {
	cfg := components.Config.Catalog
	if cfg.DataCiteUsername == "" {
		components.Logger.Warn("DataCite credentials not configured; DOI sync disabled")
		return service.DisabledDOIRegistry{}
	}
	return clients.NewDataCiteClient(
		cfg.DataCiteURL,
		cfg.DOIPrefix,
		cfg.DataCiteUsername,
		cfg.DataCitePassword,
		cfg.DataCiteTimeout,
		components.Logger,
	)
}
