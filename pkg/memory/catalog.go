package memory

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	sserr "github.com/StricklySoft/agentgate/pkg/errors"
)

// StaticCatalog serves strategies from configuration. Strategies are
// returned for every memory id.
type StaticCatalog []Strategy

// Compile-time interface compliance check.
var _ Catalog = StaticCatalog(nil)

// Strategies returns a copy of the configured strategies.
func (c StaticCatalog) Strategies(_ context.Context, _ string) ([]Strategy, error) {
	out := make([]Strategy, len(c))
	copy(out, c)
	return out, nil
}

// ParseStaticCatalog builds a catalog from "kind:id" entries, such as
// "semantic:facts-abc12", using the default namespace template for each.
// It is the compact form accepted from environment variables.
func ParseStaticCatalog(entries []string) (StaticCatalog, error) {
	cat := make(StaticCatalog, 0, len(entries))
	for _, e := range entries {
		kind, id, ok := strings.Cut(strings.TrimSpace(e), ":")
		if !ok || kind == "" || id == "" {
			return nil, sserr.Newf(sserr.CodeValidationFormat,
				"memory: strategy entry %q must have the form kind:id", e)
		}
		cat = append(cat, Strategy{ID: id, Name: id, Kind: ParseStrategyKind(kind)})
	}
	return cat, nil
}

// Querier runs SQL queries. [*postgres.Client] satisfies it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// strategiesQuery lists a memory's strategies in declaration order.
const strategiesQuery = `SELECT strategy_id, name, kind, namespaces
FROM memory_strategies
WHERE memory_id = $1
ORDER BY position, strategy_id`

// PostgresCatalog reads strategies from the memory_strategies table:
//
//	CREATE TABLE memory_strategies (
//	    memory_id   text   NOT NULL,
//	    strategy_id text   NOT NULL,
//	    name        text   NOT NULL,
//	    kind        text   NOT NULL,
//	    namespaces  text[] NOT NULL DEFAULT '{}',
//	    position    int    NOT NULL DEFAULT 0,
//	    PRIMARY KEY (memory_id, strategy_id)
//	);
type PostgresCatalog struct {
	db Querier
}

// Compile-time interface compliance check.
var _ Catalog = (*PostgresCatalog)(nil)

// NewPostgresCatalog creates a catalog over db.
func NewPostgresCatalog(db Querier) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

// Strategies returns the strategies configured for memoryID. A memory
// with no rows yields an empty slice.
func (c *PostgresCatalog) Strategies(ctx context.Context, memoryID string) ([]Strategy, error) {
	rows, err := c.db.Query(ctx, strategiesQuery, memoryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Strategy
	for rows.Next() {
		var (
			s    Strategy
			kind string
		)
		if err := rows.Scan(&s.ID, &s.Name, &kind, &s.Namespaces); err != nil {
			return nil, sserr.Wrap(err, sserr.CodeInternalStore, "memory: failed to scan strategy row")
		}
		s.Kind = ParseStrategyKind(kind)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, sserr.Wrap(err, sserr.CodeInternalStore, "memory: failed to read strategy rows")
	}
	if out == nil {
		out = []Strategy{}
	}
	return out, nil
}
