package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/mailhookoss/delivery-engine/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		createWebhooksTable(),
		createScheduledDeliveriesTable(),
		createDeliveryAttemptsTable(),
	})

	return m.Migrate()
}

func createWebhooksTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000001_create_webhooks",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.WebhookModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE INDEX IF NOT EXISTS idx_webhooks_tenant_enabled ON webhooks (tenant_id, enabled)`,
				`CREATE INDEX IF NOT EXISTS idx_webhooks_ephemeral_expiry ON webhooks (expires_at) WHERE ephemeral = true`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.WebhookModel{})
		},
	}
}

func createScheduledDeliveriesTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_scheduled_deliveries",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.DeliveryModel{}); err != nil {
				return err
			}
			indexes := []string{
				// Due-scan path: claimable rows ordered by due time.
				`CREATE INDEX IF NOT EXISTS idx_deliveries_due ON scheduled_deliveries (next_attempt_at) WHERE status IN ('pending', 'failed')`,
				`CREATE INDEX IF NOT EXISTS idx_deliveries_lease ON scheduled_deliveries (lease_expires_at) WHERE status = 'processing'`,
				`CREATE INDEX IF NOT EXISTS idx_deliveries_tenant_status_created ON scheduled_deliveries (tenant_id, status, created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_deliveries_webhook_created ON scheduled_deliveries (webhook_id, created_at)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.DeliveryModel{})
		},
	}
}

func createDeliveryAttemptsTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000003_create_delivery_attempts",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.DeliveryAttemptModel{}); err != nil {
				return err
			}
			indexes := []string{
				`CREATE UNIQUE INDEX IF NOT EXISTS idx_attempts_delivery_seq ON delivery_attempts (delivery_id, attempt_number)`,
				`CREATE INDEX IF NOT EXISTS idx_attempts_webhook_created ON delivery_attempts (webhook_id, created_at)`,
				`CREATE INDEX IF NOT EXISTS idx_attempts_tenant_created ON delivery_attempts (tenant_id, created_at)`,
			}
			for _, sql := range indexes {
				if err := tx.Exec(sql).Error; err != nil {
					return err
				}
			}
			return nil
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.DeliveryAttemptModel{})
		},
	}
}
