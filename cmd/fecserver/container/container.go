// Package container wires fecserver's singletons: the scheduler, its
// collaborators, and the Tool Registry's handle factories.
package container

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	redisv9 "github.com/redis/go-redis/v9"

	"github.com/lyzr/orchestrator/common/bootstrap"
	"github.com/lyzr/orchestrator/common/metrics"
	"github.com/lyzr/orchestrator/common/ratelimit"
	"github.com/lyzr/orchestrator/executor"
	"github.com/lyzr/orchestrator/flow"
	"github.com/lyzr/orchestrator/flowstore"
	"github.com/lyzr/orchestrator/gml"
	"github.com/lyzr/orchestrator/persistence"
	"github.com/lyzr/orchestrator/scheduler"
	"github.com/lyzr/orchestrator/tools"
	"github.com/lyzr/orchestrator/value"
)

// Container holds every service fecserver's HTTP handlers depend on.
type Container struct {
	Components *bootstrap.Components
	Scheduler  *scheduler.Scheduler
	Flows      *flowstore.Store
	Tools      *tools.Registry
	Metrics    *metrics.Registry
	RateLimit  *ratelimit.RateLimiter

	dbPool *pgxpool.Pool
}

// lateBoundSubflowRunner satisfies executor.SubflowRunner while the
// Scheduler it forwards to is still under construction. executor.Deps
// must reference a concrete SubflowRunner before scheduler.New can run,
// but the Scheduler is the only thing able to drive a subflow's own
// dependency-graph dispatch loop — this indirection breaks that cycle
// without either package importing the other.
type lateBoundSubflowRunner struct {
	target executor.SubflowRunner
}

func (r *lateBoundSubflowRunner) RunSubflow(ctx context.Context, sf *flow.Subflow, parent *value.Context) (*value.Context, error) {
	if r.target == nil {
		return nil, fmt.Errorf("container: subflow runner not yet wired")
	}
	return r.target.RunSubflow(ctx, sf, parent)
}

// New constructs the Container: the persistence backend picked per
// cfg.Persistence.Backend, the Tool Registry with its per-type handle
// factories, the dependency-resolved node-executor dispatch table, and
// finally the Scheduler itself.
func New(ctx context.Context, flowDir string, components *bootstrap.Components) (*Container, error) {
	c := &Container{Components: components}

	persist, err := c.buildPersistence(ctx)
	if err != nil {
		return nil, fmt.Errorf("container: building persistence manager: %w", err)
	}

	c.Metrics = metrics.NewRegistry(prometheus.DefaultRegisterer)
	c.Flows = flowstore.New(flowDir)
	c.RateLimit = ratelimit.NewRateLimiter(c.redisClient(), components.Logger)

	c.Tools = tools.NewRegistry(components.Config.Tool, components.Logger)
	c.registerToolHandlers()

	subflow := &lateBoundSubflowRunner{}
	dispatch := executor.NewDispatch(executor.Deps{
		Tools:   c.Tools,
		Model:   buildModelRuntime(),
		Subflow: subflow,
		Log:     components.Logger,
	})

	c.Scheduler = scheduler.New(scheduler.Config{
		Dispatch:  dispatch,
		Eval:      gml.NewEvaluator(),
		Persist:   persist,
		Approvals: scheduler.NewMemoryApprovalStore(),
		Flows:     c.Flows,
		Metrics:   c.Metrics,
		Log:       components.Logger,
		Scheduler: components.Config.Scheduler,
	})
	subflow.target = c.Scheduler

	c.registerToolFactories(ctx)

	return c, nil
}

// buildPersistence constructs the configured backend and, when
// components.Cache was initialized by bootstrap, wraps it with a
// read-through CachedManager so repeated LoadSnapshot polling (a running
// execution's status/wait endpoint) doesn't hit Redis/Postgres on every
// call.
func (c *Container) buildPersistence(ctx context.Context) (persistence.Manager, error) {
	cfg := c.Components.Config
	var mgr persistence.Manager
	switch cfg.Persistence.Backend {
	case "memory":
		mgr = persistence.NewMemoryManager()
	case "redis":
		mgr = persistence.NewRedisBackend(c.redisClient(), c.Components.Logger, 0)
	case "postgres":
		if c.Components.DB == nil {
			return nil, fmt.Errorf("persistence backend %q requires a database connection", cfg.Persistence.Backend)
		}
		hot := persistence.NewRedisBackend(c.redisClient(), c.Components.Logger, 0)
		archival := persistence.NewPostgresBackend(c.Components.DB)
		mgr = &persistence.ArchivingManager{Hot: hot, Archival: archival}
	default:
		return nil, fmt.Errorf("unknown persistence backend %q", cfg.Persistence.Backend)
	}

	if c.Components.Cache != nil {
		mgr = persistence.NewCachedManager(mgr, c.Components.Cache, cfg.Cache.TTL)
	}
	return mgr, nil
}

func (c *Container) redisClient() *redisv9.Client {
	cfg := c.Components.Config.Persistence
	return redisv9.NewClient(&redisv9.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

func (c *Container) registerToolHandlers() {
	c.Tools.RegisterHandler(tools.TypeAPI, tools.APIHandler{})
	c.Tools.RegisterHandler(tools.TypeDB, tools.DBHandler{})
	c.Tools.RegisterHandler(tools.TypeOSS, tools.OSSHandler{})
	c.Tools.RegisterHandler(tools.TypeMQ, tools.MQHandler{})
	c.Tools.RegisterHandler(tools.TypeMail, tools.NotifyHandler{})
	c.Tools.RegisterHandler(tools.TypeSMS, tools.NotifyHandler{})
	c.Tools.RegisterHandler(tools.TypeSvc, tools.SvcHandler{})
	c.Tools.RegisterHandler(tools.TypeMCP, tools.McpHandler{})
	c.Tools.RegisterHandler(tools.TypeFlow, tools.FlowHandler{})
	c.Tools.RegisterHandler(tools.TypeAgent, tools.AgentHandler{})
}

// registerToolFactories wires a default HandleFactory per tool type. api
// and oss need nothing beyond a shared HTTP client/root dir; db lazily
// opens the configured Postgres pool; flow/agent close over c.Scheduler,
// which by this point (called after scheduler.New) is already set.
func (c *Container) registerToolFactories(ctx context.Context) {
	httpClient := tools.DefaultHTTPClient()

	c.Tools.RegisterFactory(tools.TypeAPI, func(tenantID, service string) (*tools.ServiceHandle, error) {
		return &tools.ServiceHandle{
			HTTPClient: httpClient,
			BaseURL:    service,
			AuthMode:   "none",
		}, nil
	})

	c.Tools.RegisterFactory(tools.TypeOSS, func(tenantID, service string) (*tools.ServiceHandle, error) {
		return &tools.ServiceHandle{OSSRoot: c.Components.Config.Tool.OssRootDir}, nil
	})

	c.Tools.RegisterFactory(tools.TypeDB, func(tenantID, service string) (*tools.ServiceHandle, error) {
		pool, err := c.dbPoolFor(ctx)
		if err != nil {
			return nil, err
		}
		return &tools.ServiceHandle{DBQuerier: pool}, nil
	})

	c.Tools.RegisterFactory(tools.TypeFlow, func(tenantID, service string) (*tools.ServiceHandle, error) {
		return &tools.ServiceHandle{FlowRunner: tools.FlowRunner(c.Scheduler)}, nil
	})
	c.Tools.RegisterFactory(tools.TypeAgent, func(tenantID, service string) (*tools.ServiceHandle, error) {
		return &tools.ServiceHandle{FlowRunner: tools.FlowRunner(c.Scheduler)}, nil
	})
}

// buildModelRuntime wires a RoutingRuntime that sends "gpt-"/"o1-"-named
// models to OpenAI, "gemini-"-named models to Gemini, and everything else
// (including the empty model name) to Anthropic. Provider API keys come
// straight from the environment rather than Config, since they're
// per-provider secrets rather than service configuration.
func buildModelRuntime() executor.ModelRuntime {
	router := executor.NewRoutingRuntime(executor.NewAnthropicRuntime(os.Getenv("ANTHROPIC_API_KEY"), ""))
	router.Register("gpt-", executor.NewOpenAIRuntime(os.Getenv("OPENAI_API_KEY"), ""))
	router.Register("o1-", executor.NewOpenAIRuntime(os.Getenv("OPENAI_API_KEY"), ""))
	router.Register("gemini-", executor.NewGeminiRuntime(os.Getenv("GOOGLE_API_KEY"), ""))
	return router
}

// dbPoolFor lazily opens the shared pgxpool used by db-type tool handles,
// separate from bootstrap's own components.DB connection since the
// latter is sized/pooled for the archival store, not arbitrary
// caller-authored queries.
func (c *Container) dbPoolFor(ctx context.Context) (*pgxpool.Pool, error) {
	if c.dbPool != nil {
		return c.dbPool, nil
	}
	pool, err := pgxpool.New(ctx, c.Components.Config.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("container: opening tool db pool: %w", err)
	}
	c.dbPool = pool
	return pool, nil
}
