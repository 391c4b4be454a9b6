// Binario del servicio: arma el core de confianza completo (resolver de
// permisos, servicio de tokens, registro de revocación, manager de secretos)
// y sirve la superficie admin por HTTP.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/trustcore/internal/authz"
	"github.com/dropDatabas3/trustcore/internal/config"
	"github.com/dropDatabas3/trustcore/internal/http/admin"
	"github.com/dropDatabas3/trustcore/internal/metrics"
	"github.com/dropDatabas3/trustcore/internal/observability/logger"
	"github.com/dropDatabas3/trustcore/internal/revocation"
	"github.com/dropDatabas3/trustcore/internal/secrets"
	secretspg "github.com/dropDatabas3/trustcore/internal/secrets/pg"
	"github.com/dropDatabas3/trustcore/internal/security/secretbox"
	"github.com/dropDatabas3/trustcore/internal/token"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "config.yaml", "ruta del archivo de configuración")
	flag.Parse()

	// .env para desarrollo local; en prod las vars vienen del entorno real.
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("%v", err)
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, ServiceName: "trustcore"})
	defer func() { _ = logger.Sync() }()

	if !secretbox.Ready() {
		log.Fatalf("TRUSTCORE_MASTER_KEY no configurada: los secretos no se pueden cifrar en reposo")
	}
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		log.Fatalf("metrics: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rev, err := buildRevocationStore(cfg)
	if err != nil {
		log.Fatalf("revocation: %v", err)
	}
	defer func() { _ = rev.Close() }()

	mgr, err := buildSecretManager(ctx, cfg)
	if err != nil {
		log.Fatalf("secrets: %v", err)
	}
	if err := mgr.EnsureBootstrap(ctx); err != nil {
		log.Fatalf("secrets bootstrap: %v", err)
	}

	table := authz.DefaultRoleTable()
	if cfg.Roles.TablePath != "" {
		table, err = authz.LoadRoleTable(cfg.Roles.TablePath)
		if err != nil {
			log.Fatalf("roles: %v", err)
		}
	}
	resolver, err := authz.NewResolver(table)
	if err != nil {
		log.Fatalf("roles: %v", err)
	}

	tsvc := token.NewService(token.Config{
		Issuer:            cfg.JWT.Issuer,
		Audience:          cfg.JWT.Audience,
		AccessTTL:         cfg.AccessTTL(),
		RefreshTTL:        cfg.RefreshTTL(),
		SigningSecretName: cfg.JWT.SigningSecretName,
	}, resolver, mgr, rev)

	sched := secrets.NewScheduler(mgr, cfg.SweepInterval())

	handler := admin.NewRouter(&admin.Handlers{
		Revocations: rev,
		Secrets:     mgr,
		Tokens:      tsvc,
		RefreshTTL:  cfg.RefreshTTL(),
	}, admin.RouterConfig{
		APIKey: cfg.Server.AdminAPIKey,
		Ready: func(r *http.Request) error {
			return rev.Ping(r.Context())
		},
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// el scheduler de rotación, el barrido de revocaciones y el server corren
	// bajo el mismo group: si el server muere, los loops caen con él
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sched.Run(gctx)
		return nil
	})
	g.Go(func() error {
		cleanupLoop(gctx, rev, cfg.CleanupInterval())
		return nil
	})
	g.Go(func() error {
		logger.L().Info("service listening",
			logger.Component("main"),
			logger.String("addr", cfg.Server.Addr),
			logger.String("env", cfg.App.Env),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	<-gctx.Done()
	logger.L().Info("shutting down", logger.Component("main"))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)

	if err := g.Wait(); err != nil {
		logger.L().Error("server stopped", logger.Err(err))
	}
}

func buildRevocationStore(cfg *config.Config) (revocation.Store, error) {
	mode, err := revocation.ParseFailMode(cfg.Revocation.FailMode)
	if err != nil {
		return nil, err
	}

	var base revocation.Store
	switch cfg.Revocation.Backend {
	case "memory":
		base = revocation.NewMemoryStore()
	default:
		base, err = revocation.NewRedisStore(
			cfg.Revocation.Redis.Addr,
			cfg.Revocation.Redis.Password,
			cfg.Revocation.Redis.DB,
			cfg.Revocation.Prefix,
		)
		if err != nil {
			return nil, err
		}
	}
	return revocation.NewGuard(base, mode), nil
}

func buildSecretManager(ctx context.Context, cfg *config.Config) (*secrets.Manager, error) {
	var store secrets.Store
	var err error
	switch cfg.Secrets.Store {
	case "memory":
		store = secrets.NewMemStore()
	default:
		store, err = secretspg.New(ctx, cfg.Secrets.DSN)
		if err != nil {
			return nil, err
		}
	}
	return secrets.NewManager(store, specsFromConfig(cfg), secrets.WithRetention(cfg.Secrets.Retention))
}

// specsFromConfig convierte los specs del YAML y garantiza que la clave de
// firma JWT esté siempre declarada, aunque el archivo no la mencione.
func specsFromConfig(cfg *config.Config) []secrets.Spec {
	specs := make([]secrets.Spec, 0, len(cfg.Secrets.Specs)+1)
	haveSigning := false
	for _, s := range cfg.Secrets.Specs {
		rotate, _ := time.ParseDuration(s.RotateEvery)
		specs = append(specs, secrets.Spec{
			Name:        s.Name,
			Kind:        secrets.Kind(s.Kind),
			RotateEvery: rotate,
			Alg:         s.Alg,
		})
		if s.Name == cfg.JWT.SigningSecretName {
			haveSigning = true
		}
	}
	if !haveSigning {
		specs = append(specs, secrets.Spec{
			Name:        cfg.JWT.SigningSecretName,
			Kind:        secrets.KindSigningKey,
			RotateEvery: 30 * 24 * time.Hour,
			Alg:         "HS256",
		})
	}
	return specs
}

// cleanupLoop barre registros de revocación lógicamente expirados. Es
// mantenimiento, no corrección: el TTL del backend ya acota la vida de cada
// registro.
func cleanupLoop(ctx context.Context, store revocation.Store, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := store.Cleanup(ctx)
			if err != nil {
				logger.L().Warn("revocation cleanup failed",
					logger.Component("cleanup"),
					logger.Err(err),
				)
				continue
			}
			if n > 0 {
				logger.L().Info("revocation cleanup",
					logger.Component("cleanup"),
					logger.Count(n),
				)
			}
		}
	}
}
