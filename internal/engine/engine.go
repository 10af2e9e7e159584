package engine

import (
	"io"
	"log/slog"

	"github.com/roach88/pathql/internal/filter"
	"github.com/roach88/pathql/internal/meta"
	"github.com/roach88/pathql/internal/pathexpr"
	"github.com/roach88/pathql/internal/plansql"
	"github.com/roach88/pathql/internal/queryerr"
	"github.com/roach88/pathql/internal/reassemble"
	"github.com/roach88/pathql/internal/record"
	"github.com/roach88/pathql/internal/store"
)

const (
	// DefaultPageSize is used when a page is requested with a size below one.
	DefaultPageSize = 20

	// DefaultMaxPageSize caps requested page sizes.
	DefaultMaxPageSize = 200

	// DefaultBatchSize is the number of parent keys per secondary
	// collection query.
	DefaultBatchSize = 500
)

// Engine runs field-path queries against one store.
//
// Thread-safety: an Engine holds no per-query state and is safe for
// concurrent use. Every call builds its own spec and plans.
type Engine struct {
	registry    *meta.Registry
	resolver    *pathexpr.Resolver
	db          store.Executor
	reassembler *reassemble.Reassembler

	dialect     plansql.Dialect
	logger      *slog.Logger
	ids         IDGenerator
	defaultSize int
	maxSize     int
	batchSize   int
}

// Option configures an Engine.
type Option func(*Engine)

// WithDialect selects the SQL dialect. Default: SQLite.
func WithDialect(d plansql.Dialect) Option {
	return func(e *Engine) {
		e.dialect = d
	}
}

// WithLogger sets the logger. Default: slog.Default().
// Use slog.New(slog.NewTextHandler(io.Discard, nil)) to silence it.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithIDGenerator sets the query id source. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.ids = g
		}
	}
}

// WithPaging sets the page size used for sizes below one and the largest
// page size served. A max of zero disables the cap.
func WithPaging(defaultSize, maxSize int) Option {
	return func(e *Engine) {
		if defaultSize > 0 {
			e.defaultSize = defaultSize
		}
		if maxSize >= 0 {
			e.maxSize = maxSize
		}
	}
}

// WithBatchSize sets how many parent keys one secondary collection query
// correlates.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// New creates an Engine over a metadata registry and a store.
func New(registry *meta.Registry, db store.Executor, opts ...Option) *Engine {
	e := &Engine{
		registry:    registry,
		resolver:    pathexpr.NewResolver(registry),
		db:          db,
		reassembler: reassemble.New(registry),
		dialect:     plansql.SQLite,
		logger:      slog.Default(),
		ids:         UUIDv7Generator{},
		defaultSize: DefaultPageSize,
		maxSize:     DefaultMaxPageSize,
		batchSize:   DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Resolver returns the path resolver the engine builds specs with.
func (e *Engine) Resolver() *pathexpr.Resolver {
	return e.resolver
}

// Where is one raw where expression: a path and a value string in the
// filter.ParseExpression grammar.
type Where struct {
	Path string
	Expr string
}

// Join is one join directive.
type Join struct {
	Path  string
	Kind  filter.JoinKind
	Fetch bool
}

// Query describes one logical query. Raw strings are resolved against the
// root type; Build runs last and may add anything the strings cannot say.
type Query struct {
	// Root is the registered entity type name.
	Root string
	// Fields is a select list such as "nome,profissao{descricao}".
	// Empty selects whole root objects.
	Fields string
	// Sort is a sort list such as "-idade,nome:asc".
	Sort  string
	Where []Where
	Group string
	Joins []Join
	// Build receives the spec after the raw strings were applied.
	Build func(*filter.Spec)
	// Example is a query-by-example object.
	Example record.Object
}

// Spec builds the filter spec of q.
func (e *Engine) Spec(q Query) (*filter.Spec, error) {
	root, err := e.resolver.Entity(q.Root)
	if err != nil {
		return nil, err
	}

	spec := filter.New(e.resolver, root)
	if q.Fields != "" {
		spec.Select(q.Fields)
	}
	if q.Sort != "" {
		spec.OrderBy(q.Sort)
	}
	for _, w := range q.Where {
		spec.WhereExpression(w.Path, w.Expr)
	}
	if q.Group != "" {
		spec.GroupBy(q.Group)
	}
	for _, j := range q.Joins {
		if j.Fetch {
			spec.JoinFetch(j.Path, j.Kind)
		} else {
			spec.Join(j.Path, j.Kind)
		}
	}
	if q.Build != nil {
		q.Build(spec)
	}

	if err := spec.Err(); err != nil {
		return nil, queryerr.Wrap(queryerr.CodeInvalidExpression, root.Name, err)
	}
	return spec, nil
}
