// Command core is the composition root for the ERP core: it wires every domain module
// together and runs the background scheduler. HTTP routing, auth, and the admin UI are
// external collaborators and are intentionally not part of this binary.
package main

import (
	"context"

	"github.com/baytretail/core/internal/accountdefaults"
	"github.com/baytretail/core/internal/ai"
	aiservice "github.com/baytretail/core/internal/ai/service"
	"github.com/baytretail/core/internal/audit"
	"github.com/baytretail/core/internal/banking"
	"github.com/baytretail/core/internal/batch"
	"github.com/baytretail/core/internal/catalog"
	"github.com/baytretail/core/internal/company"
	"github.com/baytretail/core/internal/config"
	"github.com/baytretail/core/internal/events"
	"github.com/baytretail/core/internal/gl"
	glservice "github.com/baytretail/core/internal/gl/service"
	"github.com/baytretail/core/internal/inventory"
	"github.com/baytretail/core/internal/invoiceimport"
	invoiceimportsvc "github.com/baytretail/core/internal/invoiceimport/service"
	"github.com/baytretail/core/internal/migration"
	"github.com/baytretail/core/internal/observability"
	"github.com/baytretail/core/internal/purchasing"
	"github.com/baytretail/core/internal/scheduler"
	"github.com/baytretail/core/internal/seed"
	"github.com/baytretail/core/internal/suppliercredit"
	"github.com/baytretail/core/pkg/db"
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	app := fx.New(
		observability.Module,
		fx.Provide(func() (*snowflake.Node, error) {
			return snowflake.NewNode(1)
		}),
		config.Module,
		db.Module,
		migration.Module,
		events.Module,
		audit.Module,
		company.Module,
		accountdefaults.Module,
		catalog.Module,
		batch.Module,
		inventory.Module,
		gl.Module,
		purchasing.Module,
		suppliercredit.Module,
		invoiceimport.Module,
		banking.Module,
		ai.Module,
		scheduler.Module,
		seed.Module,
		fx.Invoke(wireEventHandlers),
		fx.Invoke(wireJobHandlers),
		fx.Invoke(seedDemoData),
	)
	app.Run()
}

// wireEventHandlers registers the outbox event types purchasing emits so the scheduler's
// drain loop has somewhere to send them. These are currently logged rather than forwarded,
// pending the downstream consumers (AI recommendations, bank reconciliation) that will
// subscribe to them.
func wireEventHandlers(sched *scheduler.Scheduler, log *zap.Logger) {
	log = log.Named("event_wiring")
	handler := func(_ context.Context, ev scheduler.OutboxEvent) error {
		log.Info("outbox event drained", zap.String("event_type", ev.EventType), zap.Int64("company_id", int64(ev.CompanyID)))
		return nil
	}
	for _, eventType := range []string{events.TypePurchaseOrdered, events.TypePurchaseReceived, events.TypePurchaseInvoiced, events.TypeSupplierCreditPosted} {
		sched.RegisterEventHandler(eventType, handler)
	}
}

// wireJobHandlers registers the recurring background jobs each company's
// background_job_schedules row can point at.
func wireJobHandlers(sched *scheduler.Scheduler, imports *invoiceimportsvc.Service, aiSvc *aiservice.Service, glSvc *glservice.Service, gdb *gorm.DB) {
	sched.RegisterJobHandler("invoice_import.extract", imports.ExtractDueJob)
	sched.RegisterJobHandler("ai.execute_actions", aiSvc.ExecuteDueJob)
	sched.RegisterJobHandler("ai.generate_reorder_recommendations", aiSvc.GenerateReorderRecommendationsJob)
	sched.RegisterJobHandler("gl.recurring_journals", func(ctx context.Context, companyID snowflake.ID, _ map[string]any) error {
		return glSvc.RunRecurringJob(ctx, gdb, companyID)
	})
}

// seedDemoData provisions the dev demo tenant on boot; a no-op outside local/dev.
func seedDemoData(lc fx.Lifecycle, seeder *seed.Seeder) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return seeder.EnsureDemoCompany(ctx)
		},
	})
}
