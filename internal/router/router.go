package router

import (
	"database/sql"
	"net/http"

	mem "medicine-history/internal/adapters/storage/memory"
	pg "medicine-history/internal/adapters/storage/postgres"
	"medicine-history/internal/domain/history"
	"medicine-history/internal/domain/medicines"
	"medicine-history/internal/domain/reminders"
	"medicine-history/internal/middleware"
	"medicine-history/internal/notify"
	"medicine-history/internal/platform/bus"
	"medicine-history/internal/ports/store"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

type Options struct {
	// Opcional: si viene, usa Postgres. Si no, in-memory.
	DB *sql.DB

	// Opcional: store explícito (tests). Gana sobre DB.
	Store store.KV

	Logger   *zap.Logger
	Signals  *bus.Bus
	Notifier notify.Notifier // nil = LogNotifier
}

// App es el servicio cableado: el handler HTTP y el scheduler de avisos
// (lo arranca main, no el router).
type App struct {
	Handler   http.Handler
	Scheduler *notify.Scheduler
}

func New(opts Options) *App {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	signals := opts.Signals
	if signals == nil {
		signals = bus.New()
	}

	kv := opts.Store
	if kv == nil {
		if opts.DB != nil {
			kv = pg.NewKV(opts.DB)
		} else {
			kv = mem.NewKV()
		}
	}

	// Servicios por módulo
	medsRepo := medicines.NewRepository(kv)
	histSvc := history.NewService(kv, log.Named("history"))
	histSvc.SetScheduleSource(medsRepo)
	medsSvc := medicines.NewService(medsRepo, histSvc, signals, log.Named("medicines"))
	remSvc := reminders.NewService(medsRepo, histSvc)

	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.NewLogNotifier(log.Named("notify"))
	}
	scheduler := notify.NewScheduler(remSvc, notifier, signals, log.Named("notify"))

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(log.Named("http")))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/swagger/*", httpSwagger.WrapHandler)

	// Rutas por módulo
	medicines.RegisterRoutes(r, medsSvc)
	history.RegisterRoutes(r, histSvc, signals)
	reminders.RegisterRoutes(r, remSvc)

	return &App{
		Handler:   r,
		Scheduler: scheduler,
	}
}
