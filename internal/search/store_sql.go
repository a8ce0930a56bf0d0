package search

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"
)

// candidateCap bounds how many filter-matched rows are ranked in memory.
const candidateCap = 500

// SQLStore ranks content chunks by query-term overlap. Filters narrow the
// candidate set in SQL; scoring happens in process, which is plenty for the
// corpus sizes a single school deployment sees.
type SQLStore struct {
	db    *sql.DB
	cache FacetCache // optional
}

func NewSQLStore(db *sql.DB, cache FacetCache) *SQLStore {
	return &SQLStore{db: db, cache: cache}
}

func (s *SQLStore) PutChunk(ctx context.Context, c Chunk) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO content_chunks (id,subject,grade,ctype,title,body,created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (id) DO UPDATE SET subject=EXCLUDED.subject, grade=EXCLUDED.grade,
		   ctype=EXCLUDED.ctype, title=EXCLUDED.title, body=EXCLUDED.body`,
		c.ID, c.Subject, c.Grade, c.CType, c.Title, c.Body, time.Now().Unix())
	if err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Del(ctx)
	}
	return nil
}

func (s *SQLStore) Search(ctx context.Context, q Query) ([]Chunk, error) {
	query := `SELECT id,subject,grade,ctype,title,body FROM content_chunks`
	var conds []string
	var args []any
	addFilter := func(col string, vals []string) {
		if len(vals) == 0 {
			return
		}
		ph := make([]string, len(vals))
		for i, v := range vals {
			args = append(args, v)
			ph[i] = fmt.Sprintf("$%d", len(args))
		}
		conds = append(conds, fmt.Sprintf("%s IN (%s)", col, strings.Join(ph, ",")))
	}
	addFilter("subject", q.Subjects)
	addFilter("grade", q.Grades)
	addFilter("ctype", q.CTypes)
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, candidateCap)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	terms := queryTerms(q.Q)
	var out []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ID, &c.Subject, &c.Grade, &c.CType, &c.Title, &c.Body); err != nil {
			return nil, err
		}
		c.Score = scoreChunk(c, terms)
		if len(terms) > 0 && c.Score == 0 {
			continue
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	k := q.K
	if k <= 0 {
		k = 8
	}
	if len(out) > k {
		out = out[:k]
	}
	if out == nil {
		out = []Chunk{}
	}
	return out, nil
}

func (s *SQLStore) Facets(ctx context.Context) (Facets, error) {
	if s.cache != nil {
		if f, ok := s.cache.Get(ctx); ok {
			return f, nil
		}
	}
	var f Facets
	var err error
	if f.Subjects, err = s.facetColumn(ctx, "subject"); err != nil {
		return Facets{}, err
	}
	if f.Grades, err = s.facetColumn(ctx, "grade"); err != nil {
		return Facets{}, err
	}
	if f.CTypes, err = s.facetColumn(ctx, "ctype"); err != nil {
		return Facets{}, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, f)
	}
	return f, nil
}

func (s *SQLStore) facetColumn(ctx context.Context, col string) ([]FacetValue, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT %s, COUNT(*) FROM content_chunks WHERE %s != '' GROUP BY %s ORDER BY %s`,
		col, col, col, col))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []FacetValue{}
	for rows.Next() {
		var v FacetValue
		if err := rows.Scan(&v.Value, &v.Count); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func queryTerms(q string) []string {
	fields := strings.Fields(strings.ToLower(q))
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) >= 2 {
			out = append(out, f)
		}
	}
	return out
}

// scoreChunk counts query-term hits; title hits weigh double.
func scoreChunk(c Chunk, terms []string) float64 {
	if len(terms) == 0 {
		return 0
	}
	title := strings.ToLower(c.Title)
	body := strings.ToLower(c.Body)
	var score float64
	for _, t := range terms {
		if strings.Contains(title, t) {
			score += 2
		}
		if strings.Contains(body, t) {
			score++
		}
	}
	return score
}
