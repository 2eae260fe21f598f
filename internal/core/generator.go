package core

// generator.go turns a projected table into an ordered list of SQL statements.
//
// One engine serves both output modes:
//
//   - ModePlain:   one INSERT per row, no transaction framing.
//   - ModeGuarded: BEGIN TRANSACTION, one IF NOT EXISTS guarded INSERT per
//     row, COMMIT TRANSACTION. The guard compares every projected column with
//     the row's own literal, so it only deduplicates correctly when those
//     columns identify a row. Callers own that choice.
//
// Rows are walked in batches of Options.BatchSize to bound the working set.
// Batch boundaries never show up in the output: the statement sequence is the
// same for every batch size, and guarded mode always uses one transaction.

import (
	"context"
	"fmt"
	"strings"
)

// DefaultBatchSize is used when Options.BatchSize is zero.
const DefaultBatchSize = 1000

// Transaction markers emitted in guarded mode.
const (
	BeginTransaction  = "BEGIN TRANSACTION;"
	CommitTransaction = "COMMIT TRANSACTION;"
)

// Mode selects the statement shape.
type Mode string

const (
	ModeUnset   Mode = ""
	ModePlain   Mode = "plain"
	ModeGuarded Mode = "guarded"
)

// ParseMode converts user input to a Mode. Matching is case-insensitive.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModePlain:
		return ModePlain, nil
	case ModeGuarded:
		return ModeGuarded, nil
	default:
		return ModeUnset, fmt.Errorf("%w (got %q)", ErrInvalidMode, s)
	}
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModePlain || m == ModeGuarded
}

// Options configures one generation run.
type Options struct {
	TableName string   // used verbatim
	Columns   []string // projected columns, in output order
	BatchSize int      // rows per internal chunk; 0 means DefaultBatchSize
	Mode      Mode     // required, no implicit default
}

// Validate checks the options and returns the effective batch size.
func (o Options) Validate() (int, error) {
	if strings.TrimSpace(o.TableName) == "" {
		return 0, ErrNoTableName
	}
	if len(o.Columns) == 0 {
		return 0, ErrNoColumns
	}
	if !o.Mode.Valid() {
		return 0, fmt.Errorf("%w (got %q)", ErrInvalidMode, string(o.Mode))
	}
	switch {
	case o.BatchSize == 0:
		return DefaultBatchSize, nil
	case o.BatchSize < 0:
		return 0, fmt.Errorf("%w (got %d)", ErrInvalidBatchSize, o.BatchSize)
	default:
		return o.BatchSize, nil
	}
}

// Generate produces the full statement list for t.
// t must already be projected to opts.Columns (see Project).
func Generate(t *Table, opts Options) (*Script, error) {
	return GenerateContext(context.Background(), t, opts)
}

// GenerateContext is Generate with cancellation checked between batches.
func GenerateContext(ctx context.Context, t *Table, opts Options) (*Script, error) {
	size := len(t.Rows)
	if opts.Mode == ModeGuarded {
		size += 2
	}

	script := &Script{
		TableName:  opts.TableName,
		Mode:       opts.Mode,
		Statements: make([]string, 0, size),
	}

	err := Emit(ctx, t, opts, func(stmt string) error {
		script.Statements = append(script.Statements, stmt)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return script, nil
}

// Emit streams statements for t to fn in output order. It stops at the
// first error returned by fn, or when ctx is done between batches.
func Emit(ctx context.Context, t *Table, opts Options, fn func(stmt string) error) error {
	batchSize, err := opts.Validate()
	if err != nil {
		return err
	}

	g := newStatementBuilder(opts.TableName, opts.Columns)

	if opts.Mode == ModeGuarded {
		if err := fn(BeginTransaction); err != nil {
			return err
		}
	}

	for start := 0; start < len(t.Rows); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+batchSize, len(t.Rows))
		for _, row := range t.Rows[start:end] {
			lits := g.literals(row)

			var stmt string
			if opts.Mode == ModeGuarded {
				stmt = g.guardedInsert(lits)
			} else {
				stmt = g.insert(lits)
			}
			if err := fn(stmt); err != nil {
				return err
			}
		}
	}

	if opts.Mode == ModeGuarded {
		if err := fn(CommitTransaction); err != nil {
			return err
		}
	}
	return nil
}

// statementBuilder holds the per-run pieces that do not change across rows.
type statementBuilder struct {
	table   string
	columns []string
	colList string
}

func newStatementBuilder(table string, columns []string) *statementBuilder {
	return &statementBuilder{
		table:   table,
		columns: columns,
		colList: strings.Join(columns, ", "),
	}
}

// literals encodes row values in column order. A row without one of the
// projected columns means the table was not projected first.
func (g *statementBuilder) literals(row Row) []string {
	lits := make([]string, len(g.columns))
	for i, c := range g.columns {
		v, ok := row[c]
		if !ok {
			panic(fmt.Sprintf("core: row has no value for column %q; project the table before generating", c))
		}
		lits[i] = v.Literal()
	}
	return lits
}

func (g *statementBuilder) insert(lits []string) string {
	var b strings.Builder
	g.writeInsert(&b, lits)
	return b.String()
}

func (g *statementBuilder) writeInsert(b *strings.Builder, lits []string) {
	b.WriteString("INSERT INTO ")
	b.WriteString(g.table)
	b.WriteString(" (")
	b.WriteString(g.colList)
	b.WriteString(") VALUES (")
	b.WriteString(strings.Join(lits, ", "))
	b.WriteString(");")
}

func (g *statementBuilder) guardedInsert(lits []string) string {
	var b strings.Builder
	b.WriteString("IF NOT EXISTS (SELECT 1 FROM ")
	b.WriteString(g.table)
	b.WriteString(" WHERE ")
	for i, c := range g.columns {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString(c)
		b.WriteString(" = ")
		b.WriteString(lits[i])
	}
	b.WriteString(") BEGIN ")
	g.writeInsert(&b, lits)
	b.WriteString(" IF @@ERROR <> 0 BEGIN ROLLBACK TRANSACTION; THROW; END END")
	return b.String()
}
