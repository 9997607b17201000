package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/SedlarDavid/schemadump/internal/dumperr"
)

// SQLiteSchemaQueryVersion changes whenever SQLiteSchemaQuery changes the
// shape or order of its output.
const SQLiteSchemaQueryVersion = 1

// SQLiteSchemaQuery lists every user-defined object with a stored definition,
// grouped by the table it belongs to: the table first, then its indexes,
// triggers and views.
const SQLiteSchemaQuery = `SELECT name, type, sql
FROM sqlite_schema
WHERE
  sql NOTNULL AND
  name NOT LIKE 'sqlite_%'
ORDER BY tbl_name,
  CASE type WHEN 'table' THEN 0 WHEN 'index' THEN 1 WHEN 'trigger' THEN 2 ELSE 3 END,
  name`

// SchemaObject is one named object in a structure dump.
type SchemaObject struct {
	Name       string
	Kind       string
	Definition string
}

// FetchSchemaObjects runs SQLiteSchemaQuery.
func FetchSchemaObjects(ctx context.Context, q Queryer) ([]SchemaObject, error) {
	rows, err := q.QueryContext(ctx, SQLiteSchemaQuery)
	if err != nil {
		return nil, dumperr.Wrap(dumperr.KindDatabase, "sqlite schema", err)
	}
	defer rows.Close()

	var objs []SchemaObject
	for rows.Next() {
		var o SchemaObject
		if err := rows.Scan(&o.Name, &o.Kind, &o.Definition); err != nil {
			return nil, dumperr.Wrap(dumperr.KindDatabase, "sqlite schema", err)
		}
		objs = append(objs, o)
	}
	if err := rows.Err(); err != nil {
		return nil, dumperr.Wrap(dumperr.KindDatabase, "sqlite schema", err)
	}
	return objs, nil
}

// RenderStructure formats objects as a structure file. Each object becomes
//
//	--
//	--  Name: <name>; Type: <kind>
//	--
//	<definition>;
//
// and blocks are separated by a blank line.
func RenderStructure(objs []SchemaObject) string {
	blocks := make([]string, len(objs))
	for i, o := range objs {
		blocks[i] = fmt.Sprintf("--\n--  Name: %s; Type: %s\n--\n%s;\n", o.Name, o.Kind, o.Definition)
	}
	return strings.Join(blocks, "\n")
}

// DumpSQLite writes the structure of the database behind q to dest.
// dest is only written once the query has succeeded.
func DumpSQLite(ctx context.Context, q Queryer, dest string) error {
	objs, err := FetchSchemaObjects(ctx, q)
	if err != nil {
		return err
	}
	return WriteStructure(dest, []byte(RenderStructure(objs)))
}
