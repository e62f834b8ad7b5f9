package query

import (
	"fmt"
	"strings"
)

// BigQuery returns a builder for GoogleSQL with @named parameters.
// Table names are qualified with dataset when it is set.
func BigQuery(tables Tables, dataset string) *SQLBuilder {
	return &SQLBuilder{
		tables: tables.withDefaults(),
		d: dialect{
			name:  "bigquery",
			param: func(name string) string { return "@" + name },
			in: func(col, name string) string {
				return fmt.Sprintf("%s IN UNNEST(@%s)", col, name)
			},
			trunc: func(col, unit, tz string) string {
				return fmt.Sprintf("TIMESTAMP_TRUNC(%s, %s, @%s)", col, unit, tz)
			},
			table: func(name string) string {
				if dataset == "" || strings.Contains(name, ".") {
					return "`" + name + "`"
				}
				return "`" + dataset + "." + name + "`"
			},
		},
	}
}

// Snowflake returns a builder for Snowflake SQL with :named parameters,
// which the warehouse source rewrites into positional ones.
func Snowflake(tables Tables) *SQLBuilder {
	return &SQLBuilder{
		tables: tables.withDefaults(),
		d: dialect{
			name:  "snowflake",
			param: func(name string) string { return ":" + name },
			in: func(col, name string) string {
				return fmt.Sprintf("%s IN (:%s)", col, name)
			},
			trunc: func(col, unit, tz string) string {
				return fmt.Sprintf("DATE_TRUNC('%s', CONVERT_TIMEZONE(:%s, %s))", unit, tz, col)
			},
			table: func(name string) string { return name },
		},
	}
}

// Dialect returns the builder's dialect name.
func (b *SQLBuilder) Dialect() string {
	return b.d.name
}
