package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// mysqlSchema and postgresSchema create the four tables used by the
// storefront.  held_tickets is keyed by ticket number so at most one hold
// row can exist per ticket.
var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS purchases (
		id CHAR(36) NOT NULL PRIMARY KEY,
		reference_id VARCHAR(32) NOT NULL UNIQUE,
		total_cost DECIMAL(12,2) NOT NULL,
		purchase_date DATETIME(6) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS purchase_tickets (
		purchase_id CHAR(36) NOT NULL,
		ticket_number INT NOT NULL,
		position INT NOT NULL,
		payment_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (purchase_id, ticket_number),
		KEY idx_purchase_tickets_ticket (ticket_number),
		CONSTRAINT fk_purchase_tickets_purchase FOREIGN KEY (purchase_id) REFERENCES purchases (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS held_tickets (
		ticket_number INT NOT NULL PRIMARY KEY,
		reference_id VARCHAR(32) NOT NULL,
		hold_start_time DATETIME(6) NOT NULL,
		hold_expiry DATETIME(6) NOT NULL,
		is_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
		KEY idx_held_tickets_expiry (hold_expiry)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS ticket_pricing (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		price DECIMAL(12,2) NOT NULL,
		last_updated DATETIME(6) NOT NULL,
		updated_by VARCHAR(255) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS purchases (
		id UUID PRIMARY KEY,
		reference_id VARCHAR(32) NOT NULL UNIQUE,
		total_cost NUMERIC(12,2) NOT NULL,
		purchase_date TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS purchase_tickets (
		purchase_id UUID NOT NULL REFERENCES purchases (id) ON DELETE CASCADE,
		ticket_number INT NOT NULL,
		position INT NOT NULL,
		payment_confirmed BOOLEAN NOT NULL DEFAULT FALSE,
		PRIMARY KEY (purchase_id, ticket_number)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_purchase_tickets_ticket ON purchase_tickets (ticket_number)`,
	`CREATE TABLE IF NOT EXISTS held_tickets (
		ticket_number INT PRIMARY KEY,
		reference_id VARCHAR(32) NOT NULL,
		hold_start_time TIMESTAMPTZ NOT NULL,
		hold_expiry TIMESTAMPTZ NOT NULL,
		is_confirmed BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_held_tickets_expiry ON held_tickets (hold_expiry)`,
	`CREATE TABLE IF NOT EXISTS ticket_pricing (
		id BIGSERIAL PRIMARY KEY,
		price NUMERIC(12,2) NOT NULL,
		last_updated TIMESTAMPTZ NOT NULL,
		updated_by VARCHAR(255) NOT NULL
	)`,
}

// InitSchema creates the storefront tables when they do not exist yet.
// The statements are chosen from the driver db was opened with.
func InitSchema(ctx context.Context, db *sqlx.DB) error {
	var stmts []string
	switch db.DriverName() {
	case DriverMySQL:
		stmts = mysqlSchema
	case DriverPostgres:
		stmts = postgresSchema
	default:
		return fmt.Errorf("unsupported driver %q", db.DriverName())
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("could not initialize schema: %w", err)
		}
	}
	return nil
}
