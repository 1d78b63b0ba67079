package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/panel-extractor/internal/common"
	"github.com/joseph-ayodele/panel-extractor/internal/layout"
)

// Provisioner creates and checks the per-layout relations. It never drops or alters
// anything, so running it against a live database is safe.
type Provisioner struct {
	store  *Store
	logger *slog.Logger
}

func NewProvisioner(store *Store, logger *slog.Logger) *Provisioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provisioner{store: store, logger: logger}
}

// Provision creates every missing relation of reg.
func (p *Provisioner) Provision(ctx context.Context, reg *layout.Registry) error {
	for _, d := range reg.All() {
		stmt := CreateTableSQL(p.store.Dialect(), d)
		if _, err := p.store.DB().ExecContext(ctx, stmt); err != nil {
			p.logger.Error("repository.provision.failed", "table", d.Relation.Table, "error", err)
			return common.NewAppError(common.CodeProvision, "create "+d.Relation.Table, err)
		}
		p.logger.Info("repository.provision.ok", "table", d.Relation.Table, "columns", len(d.Relation.Columns))
	}
	return nil
}

// Verify checks that every relation of reg exists with all of its columns.
// The returned error names each relation that is missing or incomplete.
func (p *Provisioner) Verify(ctx context.Context, reg *layout.Registry) error {
	var errs []error
	for _, d := range reg.All() {
		b := entsql.Dialect(p.store.Dialect())
		query, args := b.Select(append([]string{layout.IdentityColumn}, d.Relation.Columns...)...).
			From(b.Table(d.Relation.Table)).
			Limit(0).
			Query()
		rows, err := p.store.DB().QueryContext(ctx, query, args...)
		if err != nil {
			p.logger.Warn("repository.verify.relation_unusable", "table", d.Relation.Table, "error", err)
			errs = append(errs, fmt.Errorf("relation %s: %w", d.Relation.Table, err))
			continue
		}
		if err := rows.Close(); err != nil {
			errs = append(errs, fmt.Errorf("relation %s: %w", d.Relation.Table, err))
		}
	}
	if len(errs) > 0 {
		return common.NewAppError(common.CodeSchemaDrift, fmt.Sprintf("%d of %d relations do not match the layouts", len(errs), reg.Len()), errors.Join(errs...))
	}
	p.logger.Info("repository.verify.ok", "relations", reg.Len())
	return nil
}

// CreateTableSQL renders the idempotent CREATE TABLE statement for d.
func CreateTableSQL(dialectName string, d *layout.Descriptor) string {
	b := entsql.Dialect(dialectName)
	cols := make([]entsql.Querier, 0, len(d.Fields)+1)
	cols = append(cols, b.Column(layout.IdentityColumn).Type(identityType(dialectName)))
	for _, f := range d.Fields {
		cols = append(cols, b.Column(f.Name).Type(columnType(dialectName, f.Type)))
	}
	return b.String(func(sb *entsql.Builder) {
		sb.WriteString("CREATE TABLE IF NOT EXISTS ").Ident(d.Relation.Table).Pad().Wrap(func(nb *entsql.Builder) {
			nb.JoinComma(cols...)
		})
	})
}

func identityType(dialectName string) string {
	switch dialectName {
	case dialect.Postgres:
		return "BIGSERIAL PRIMARY KEY"
	case dialect.MySQL:
		return "BIGINT AUTO_INCREMENT PRIMARY KEY"
	default:
		return "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
}

func columnType(dialectName string, t layout.SemanticType) string {
	switch t {
	case layout.TypeInteger:
		if dialectName == dialect.SQLite {
			return "INTEGER"
		}
		return "BIGINT"
	case layout.TypeReal:
		switch dialectName {
		case dialect.Postgres:
			return "DOUBLE PRECISION"
		case dialect.MySQL:
			return "DOUBLE"
		default:
			return "REAL"
		}
	default:
		// strings and JSON-encoded lists
		return "TEXT"
	}
}
