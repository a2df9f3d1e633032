package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nextcoretech/procurement-backend/api/controllers"
	"github.com/nextcoretech/procurement-backend/api/middleware"
	"github.com/nextcoretech/procurement-backend/internal/chain"
	"github.com/nextcoretech/procurement-backend/internal/comparison"
	"github.com/nextcoretech/procurement-backend/internal/documents"
	"github.com/nextcoretech/procurement-backend/internal/flows"
	"github.com/nextcoretech/procurement-backend/internal/rules"
	"github.com/nextcoretech/procurement-backend/pkg/config"
	"github.com/nextcoretech/procurement-backend/pkg/db"
	"github.com/nextcoretech/procurement-backend/pkg/logger"
	"github.com/nextcoretech/procurement-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	registry *prometheus.Registry,
	documentsService documents.Service,
	chainService chain.Service,
	rulesService rules.Service,
	flowsService flows.Service,
	comparisonService comparison.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisPinger(redisClient)))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/documents", func(r chi.Router) {
			r.Post("/", controllers.DocumentCreate(documentsService, logg))
			r.Post("/from-source", controllers.DocumentFromSource(documentsService, logg))
			r.Route("/{kind}/{docNo}", func(r chi.Router) {
				r.Get("/", controllers.DocumentGet(documentsService, logg))
				r.Post("/submit", controllers.DocumentSubmit(documentsService, logg))
				r.Post("/cancel", controllers.DocumentCancel(documentsService, logg))
				r.Get("/available-quantities", controllers.DocumentAvailableQuantities(documentsService, logg))
				r.Get("/chain", controllers.DocumentChain(chainService, logg))
			})
		})

		r.Route("/rules", func(r chi.Router) {
			r.Get("/", controllers.RuleList(rulesService, logg))
			r.Post("/", controllers.RuleCreate(rulesService, logg))
			r.Get("/applicable", controllers.RuleApplicable(rulesService, logg))
		})

		r.Route("/flows", func(r chi.Router) {
			r.Get("/active", controllers.FlowActive(flowsService, logg))
			r.Put("/active", controllers.FlowReplaceActive(flowsService, logg))
		})

		r.Get("/rfqs/{docNo}/comparison", controllers.RFQComparison(comparisonService, logg))
		r.Post("/quotations/{docNo}/award", controllers.QuotationAward(comparisonService, logg))
	})

	return r
}

// redisPinger keeps the typed-nil pointer out of the Pinger interface.
func redisPinger(client *redis.Client) redis.Pinger {
	if client == nil {
		return nil
	}
	return client
}
