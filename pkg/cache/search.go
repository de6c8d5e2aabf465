package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/BigKAA/artStore-sub005/internal/httpserver"
	"github.com/BigKAA/artStore-sub005/pkg/model"
)

// SearchParams is the supported filter/pagination set for §4.6: full-text
// query plus array containment on tags, range on size and timestamps, and
// (limit, offset) pagination with stable ordering.
type SearchParams struct {
	Query        string
	Tags         []string
	UploadedBy   string
	SizeMin      *int64
	SizeMax      *int64
	UploadedFrom *time.Time
	UploadedTo   *time.Time
	Page         httpserver.LimitOffsetParams
}

// SearchResult is one page of matches plus the total count, enough to build
// a LimitOffsetPage.
type SearchResult struct {
	Rows       []model.CacheRow
	TotalItems int
}

// Search runs a filtered, paginated query over the cache table, ordered by
// (uploaded_at desc, file_id asc) for stability across pages (§4.6).
func (s *Store) Search(ctx context.Context, p SearchParams) (SearchResult, error) {
	where := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if p.Query != "" {
		where = append(where, fmt.Sprintf("search_vector @@ plainto_tsquery('english', %s)", arg(p.Query)))
	}
	if len(p.Tags) > 0 {
		where = append(where, fmt.Sprintf("tags @> %s", arg(p.Tags)))
	}
	if p.UploadedBy != "" {
		where = append(where, fmt.Sprintf("uploaded_by = %s", arg(p.UploadedBy)))
	}
	if p.SizeMin != nil {
		where = append(where, fmt.Sprintf("size_bytes >= %s", arg(*p.SizeMin)))
	}
	if p.SizeMax != nil {
		where = append(where, fmt.Sprintf("size_bytes <= %s", arg(*p.SizeMax)))
	}
	if p.UploadedFrom != nil {
		where = append(where, fmt.Sprintf("uploaded_at >= %s", arg(*p.UploadedFrom)))
	}
	if p.UploadedTo != nil {
		where = append(where, fmt.Sprintf("uploaded_at <= %s", arg(*p.UploadedTo)))
	}

	whereClause := ""
	for i, clause := range where {
		if i == 0 {
			whereClause = clause
			continue
		}
		whereClause += " AND " + clause
	}

	countQuery := fmt.Sprintf(`SELECT count(*) FROM %s WHERE %s`, s.tableName, whereClause)
	var total int
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return SearchResult{}, fmt.Errorf("counting search results: %w", err)
	}

	limitArg := arg(p.Page.Limit)
	offsetArg := arg(p.Page.Offset)
	selectQuery := fmt.Sprintf(`
		SELECT file_id, original_filename, storage_filename, storage_path, size_bytes,
			mime_type, sha256_hash, uploaded_by, uploaded_at, expires_at,
			description, tags, custom, cache_updated_at, cache_ttl_hours
		FROM %s
		WHERE %s
		ORDER BY uploaded_at DESC, file_id ASC
		LIMIT %s OFFSET %s`, s.tableName, whereClause, limitArg, offsetArg)

	rows, err := s.pool.Query(ctx, selectQuery, args...)
	if err != nil {
		return SearchResult{}, fmt.Errorf("searching cache rows: %w", err)
	}
	defer rows.Close()

	var result []model.CacheRow
	for rows.Next() {
		row, err := s.scanRow(rows)
		if err != nil {
			return SearchResult{}, fmt.Errorf("scanning search result: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return SearchResult{}, err
	}

	return SearchResult{Rows: result, TotalItems: total}, nil
}
