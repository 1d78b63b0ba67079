package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/panel-extractor/internal/extract"
	"github.com/joseph-ayodele/panel-extractor/internal/layout"
)

// Row is one stored record read back from a layout's relation.
type Row struct {
	ID     int64
	Values map[string]any
}

type RecordRepository interface {
	// Persist inserts rec as one row of desc's relation inside its own transaction.
	// Errors are always *PersistFailure.
	Persist(ctx context.Context, rec extract.Record, desc *layout.Descriptor) error
	// List returns up to limit rows of desc's relation in insertion order. limit <= 0 means all.
	List(ctx context.Context, desc *layout.Descriptor, limit int) ([]Row, error)
}

type recordRepo struct {
	store  *Store
	logger *slog.Logger
}

func NewRecordRepository(store *Store, logger *slog.Logger) RecordRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &recordRepo{
		store:  store,
		logger: logger,
	}
}

func (r *recordRepo) Persist(ctx context.Context, rec extract.Record, desc *layout.Descriptor) error {
	table := desc.Relation.Table
	args, err := encodeRecord(rec, desc)
	if err != nil {
		r.logger.Error("repository.persist.encode_failed", "table", table, "error", err)
		return &PersistFailure{Kind: FailureSerialization, Relation: table, Err: err}
	}
	query, qargs := entsql.Dialect(r.store.Dialect()).
		Insert(table).
		Columns(desc.Relation.Columns...).
		Values(args...).
		Query()

	conn, err := r.store.DB().Conn(ctx)
	if err != nil {
		r.logger.Error("repository.persist.acquire_failed", "table", table, "error", err)
		return classifyError(table, err)
	}
	defer func() {
		if err := conn.Close(); err != nil {
			r.logger.Warn("repository.persist.release_failed", "table", table, "error", err)
		}
	}()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		r.logger.Error("repository.persist.begin_failed", "table", table, "error", err)
		return classifyError(table, err)
	}
	if _, err := tx.ExecContext(ctx, query, qargs...); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			r.logger.Warn("repository.persist.rollback_failed", "table", table, "error", rbErr)
		}
		f := classifyError(table, err)
		r.logger.Error("repository.persist.failed", "table", table, "kind", f.Kind, "error", err)
		return f
	}
	if err := tx.Commit(); err != nil {
		f := classifyError(table, err)
		r.logger.Error("repository.persist.commit_failed", "table", table, "kind", f.Kind, "error", err)
		return f
	}

	r.logger.Debug("repository.persist.ok", "table", table, "layout_id", desc.ID)
	return nil
}

// encodeRecord returns the insert arguments in column order. Lists become JSON text.
func encodeRecord(rec extract.Record, desc *layout.Descriptor) ([]any, error) {
	if rec.Layout != 0 && rec.Layout != desc.ID {
		return nil, fmt.Errorf("record of layout %d cannot be stored as layout %d", rec.Layout, desc.ID)
	}
	args := make([]any, len(desc.Fields))
	for i, f := range desc.Fields {
		v := rec.Values[f.Name]
		if v == nil {
			if f.Required {
				return nil, fmt.Errorf("%s: required field is null", f.Name)
			}
			continue
		}
		enc, err := encodeValue(f, v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Name, err)
		}
		args[i] = enc
	}
	return args, nil
}

func encodeValue(f layout.Field, v any) (any, error) {
	switch f.Type {
	case layout.TypeString:
		if s, ok := v.(string); ok {
			return s, nil
		}
	case layout.TypeInteger:
		switch n := v.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		}
	case layout.TypeReal:
		if n, ok := v.(float64); ok {
			return n, nil
		}
	case layout.TypeStringList:
		if l, ok := v.([]string); ok {
			return listText(l)
		}
	case layout.TypeRealList:
		if l, ok := v.([]float64); ok {
			return listText(l)
		}
	}
	return nil, fmt.Errorf("cannot store %T as %s", v, f.Type)
}

func listText[T any](l []T) (string, error) {
	if l == nil {
		l = []T{}
	}
	bs, err := json.Marshal(l)
	if err != nil {
		return "", err
	}
	return string(bs), nil
}

func (r *recordRepo) List(ctx context.Context, desc *layout.Descriptor, limit int) ([]Row, error) {
	b := entsql.Dialect(r.store.Dialect())
	sel := b.Select(append([]string{layout.IdentityColumn}, desc.Relation.Columns...)...).
		From(b.Table(desc.Relation.Table)).
		OrderBy(layout.IdentityColumn)
	if limit > 0 {
		sel.Limit(limit)
	}
	query, args := sel.Query()

	rows, err := r.store.DB().QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("repository.list.failed", "table", desc.Relation.Table, "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var id int64
		cells := make([]any, len(desc.Fields))
		dest := make([]any, len(desc.Fields)+1)
		dest[0] = &id
		for i := range cells {
			dest[i+1] = &cells[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan %s: %w", desc.Relation.Table, err)
		}
		row := Row{ID: id, Values: make(map[string]any, len(desc.Fields))}
		for i, f := range desc.Fields {
			v, err := decodeCell(f, cells[i])
			if err != nil {
				return nil, fmt.Errorf("row %d of %s: %s: %w", id, desc.Relation.Table, f.Name, err)
			}
			row.Values[f.Name] = v
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// decodeCell normalizes driver values back to record types.
func decodeCell(f layout.Field, cell any) (any, error) {
	if cell == nil {
		return nil, nil
	}
	if b, ok := cell.([]byte); ok {
		cell = string(b)
	}
	switch f.Type {
	case layout.TypeStringList:
		var l []string
		if err := json.Unmarshal([]byte(fmt.Sprint(cell)), &l); err != nil {
			return nil, err
		}
		return l, nil
	case layout.TypeRealList:
		var l []float64
		if err := json.Unmarshal([]byte(fmt.Sprint(cell)), &l); err != nil {
			return nil, err
		}
		return l, nil
	case layout.TypeInteger:
		switch n := cell.(type) {
		case int64:
			return n, nil
		case int32:
			return int64(n), nil
		case float64:
			return int64(n), nil
		case string:
			var i int64
			_, err := fmt.Sscan(n, &i)
			return i, err
		}
	case layout.TypeReal:
		switch n := cell.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case string:
			var x float64
			_, err := fmt.Sscan(n, &x)
			return x, err
		}
	case layout.TypeString:
		if t, ok := cell.(fmt.Stringer); ok {
			return t.String(), nil
		}
		return fmt.Sprint(cell), nil
	}
	return cell, nil
}
