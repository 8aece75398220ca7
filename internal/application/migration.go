package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bnema/pathfinder/internal/domain"
	"github.com/bnema/pathfinder/internal/ports"
)

// OwnershipMigrator re-points rows owned by one user id to another, one
// table at a time. The sequence is not transactional: it stops at the first
// failing table and reports what was done.
type OwnershipMigrator struct {
	data   ports.DataService
	tables []domain.OwnedTable
	clock  ports.Clock
	logger *slog.Logger
}

func NewOwnershipMigrator(data ports.DataService, clock ports.Clock, logger *slog.Logger, tables ...domain.OwnedTable) *OwnershipMigrator {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if len(tables) == 0 {
		tables = domain.OwnedTables
	}
	return &OwnershipMigrator{data: data, tables: tables, clock: clock, logger: logger}
}

// Migrate moves ownership from -> to. Rows already owned by to are left
// alone, so running it again after a partial failure only finishes the
// remaining tables.
func (m *OwnershipMigrator) Migrate(ctx context.Context, from, to domain.UserID) (domain.MigrationReport, error) {
	report := domain.MigrationReport{
		From:      from,
		To:        to,
		Rows:      map[string]int{},
		StartedAt: m.clock.Now(),
	}
	if from == "" || to == "" || from == to {
		report.EndedAt = report.StartedAt
		return report, domain.NewError(domain.KindValidation, "migrate ownership",
			fmt.Sprintf("invalid identities %q -> %q", from, to))
	}

	for i, table := range m.tables {
		n, err := m.data.Update(ctx, table.Name,
			ports.Where(ports.Eq(table.OwnerColumn, string(from))),
			ports.Row{table.OwnerColumn: string(to)},
		)
		if err != nil {
			report.Failed = append(report.Failed, domain.TableFailure{Table: table.Name, Err: err})
			for _, rest := range m.tables[i+1:] {
				report.Pending = append(report.Pending, rest.Name)
			}
			report.EndedAt = m.clock.Now()
			m.logger.Error("ownership migration stopped",
				"from", from, "to", to, "table", table.Name, "migrated", len(report.Migrated), "error", err)
			return report, &domain.MigrationError{Report: report, Cause: err}
		}

		report.Migrated = append(report.Migrated, table.Name)
		report.Rows[table.Name] = n
		m.logger.Debug("table ownership migrated", "table", table.Name, "rows", n)
	}

	report.EndedAt = m.clock.Now()
	m.logger.Info("ownership migration complete", "from", from, "to", to, "tables", len(report.Migrated))
	return report, nil
}
