package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBHandler implements the `db` tool type: args provide filter, fields,
// limit/offset, order; built-in operations take/list/count/page/create/
// modify/delete/native produce parameterised queries against a
// pgxpool.Pool. Follows common/repository's query style, generalized
// from a fixed `run`/`tag` schema to an arbitrary table named
// by the tool path.
type DBHandler struct{}

func (DBHandler) Invoke(ctx context.Context, handle *ServiceHandle, spec ToolSpec, args map[string]interface{}, deadline time.Time) (interface{}, error) {
	pool, ok := handle.DBQuerier.(*pgxpool.Pool)
	if !ok || pool == nil {
		return nil, fmt.Errorf("tools: db handle for service %q has no pgxpool.Pool wired", handle.Service)
	}

	ctx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	op, _ := args["op"].(string)
	table := spec.Code

	switch op {
	case "", "take", "list":
		return dbSelect(ctx, pool, table, args, false)
	case "count":
		return dbSelect(ctx, pool, table, args, true)
	case "page":
		return dbSelect(ctx, pool, table, args, false)
	case "create":
		return dbInsert(ctx, pool, table, args)
	case "modify":
		return dbUpdate(ctx, pool, table, args)
	case "delete":
		return dbDelete(ctx, pool, table, args)
	case "native":
		query, _ := args["query"].(string)
		params, _ := args["params"].([]interface{})
		return dbNative(ctx, pool, query, params)
	default:
		return nil, fmt.Errorf("tools: db unknown op %q", op)
	}
}

func dbSelect(ctx context.Context, pool *pgxpool.Pool, table string, args map[string]interface{}, countOnly bool) (interface{}, error) {
	cols := "*"
	if countOnly {
		cols = "count(*)"
	} else if fields, ok := args["fields"].([]interface{}); ok && len(fields) > 0 {
		strs := make([]string, len(fields))
		for i, f := range fields {
			strs[i] = fmt.Sprintf("%v", f)
		}
		cols = strings.Join(strs, ", ")
	}

	query := fmt.Sprintf("SELECT %s FROM %s", cols, table)
	var params []interface{}
	if filter, ok := args["filter"].(map[string]interface{}); ok && len(filter) > 0 {
		clauses := make([]string, 0, len(filter))
		i := 1
		for k, v := range filter {
			clauses = append(clauses, fmt.Sprintf("%s = $%d", k, i))
			params = append(params, v)
			i++
		}
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	if order, ok := args["order"].(string); ok && order != "" && !countOnly {
		query += " ORDER BY " + order
	}
	if limit, ok := args["limit"].(float64); ok && !countOnly {
		query += fmt.Sprintf(" LIMIT %d", int(limit))
	}
	if offset, ok := args["offset"].(float64); ok && !countOnly {
		query += fmt.Sprintf(" OFFSET %d", int(offset))
	}

	rows, err := pool.Query(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("tools: db select on %s: %w", table, err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	var out []map[string]interface{}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(vals))
		for i, fd := range fieldDescs {
			row[string(fd.Name)] = vals[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if countOnly {
		if len(out) == 1 {
			for _, v := range out[0] {
				return v, nil
			}
		}
		return 0, nil
	}
	return out, nil
}

func dbInsert(ctx context.Context, pool *pgxpool.Pool, table string, args map[string]interface{}) (interface{}, error) {
	fields, _ := args["fields"].(map[string]interface{})
	if len(fields) == 0 {
		return nil, fmt.Errorf("tools: db create requires fields")
	}
	cols := make([]string, 0, len(fields))
	placeholders := make([]string, 0, len(fields))
	params := make([]interface{}, 0, len(fields))
	i := 1
	for k, v := range fields {
		cols = append(cols, k)
		placeholders = append(placeholders, fmt.Sprintf("$%d", i))
		params = append(params, v)
		i++
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))

	rows, err := pool.Query(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("tools: db create on %s: %w", table, err)
	}
	defer rows.Close()
	return scanOne(rows)
}

func dbUpdate(ctx context.Context, pool *pgxpool.Pool, table string, args map[string]interface{}) (interface{}, error) {
	fields, _ := args["fields"].(map[string]interface{})
	filter, _ := args["filter"].(map[string]interface{})
	if len(fields) == 0 || len(filter) == 0 {
		return nil, fmt.Errorf("tools: db modify requires fields and filter")
	}
	sets := make([]string, 0, len(fields))
	var params []interface{}
	i := 1
	for k, v := range fields {
		sets = append(sets, fmt.Sprintf("%s = $%d", k, i))
		params = append(params, v)
		i++
	}
	whereClauses := make([]string, 0, len(filter))
	for k, v := range filter {
		whereClauses = append(whereClauses, fmt.Sprintf("%s = $%d", k, i))
		params = append(params, v)
		i++
	}
	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING *",
		table, strings.Join(sets, ", "), strings.Join(whereClauses, " AND "))

	rows, err := pool.Query(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("tools: db modify on %s: %w", table, err)
	}
	defer rows.Close()
	return scanOne(rows)
}

func dbDelete(ctx context.Context, pool *pgxpool.Pool, table string, args map[string]interface{}) (interface{}, error) {
	filter, _ := args["filter"].(map[string]interface{})
	if len(filter) == 0 {
		return nil, fmt.Errorf("tools: db delete requires filter")
	}
	clauses := make([]string, 0, len(filter))
	var params []interface{}
	i := 1
	for k, v := range filter {
		clauses = append(clauses, fmt.Sprintf("%s = $%d", k, i))
		params = append(params, v)
		i++
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE %s", table, strings.Join(clauses, " AND "))
	tag, err := pool.Exec(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("tools: db delete on %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

func dbNative(ctx context.Context, pool *pgxpool.Pool, query string, params []interface{}) (interface{}, error) {
	if query == "" {
		return nil, fmt.Errorf("tools: db native requires query")
	}
	rows, err := pool.Query(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("tools: db native query: %w", err)
	}
	defer rows.Close()

	fieldDescs := rows.FieldDescriptions()
	var out []map[string]interface{}
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		row := make(map[string]interface{}, len(vals))
		for i, fd := range fieldDescs {
			row[string(fd.Name)] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func scanOne(rows pgx.Rows) (interface{}, error) {
	fieldDescs := rows.FieldDescriptions()
	if !rows.Next() {
		return nil, rows.Err()
	}
	vals, err := rows.Values()
	if err != nil {
		return nil, err
	}
	row := make(map[string]interface{}, len(vals))
	for i, fd := range fieldDescs {
		row[string(fd.Name)] = vals[i]
	}
	return row, rows.Err()
}
