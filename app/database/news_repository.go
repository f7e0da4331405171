package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const newsColumns = `id, content_id, url, title, summary, source, trust, source_tickers,
	published_at, created_at, tickers, ticker_confidence, sentiment, impact_score,
	category, sector, ai_summary, key_facts, topics, is_breaking, relevance_score,
	impact_assessment, classified, classified_at, classified_by, event_group_id`

// NewsRepo handles database operations for news items
type NewsRepo struct {
	db  *DB
	now func() time.Time
}

func NewNewsRepository(db *DB) *NewsRepo {
	return &NewsRepo{db: db, now: time.Now}
}

// InsertIfAbsent stores the item unless its content id is already present.
// Existing rows, including their classification, are never touched.
func (r *NewsRepo) InsertIfAbsent(ctx context.Context, item NewItem) (bool, error) {
	if item.ContentID == "" {
		return false, fmt.Errorf("content id is required")
	}

	sourceTickers, err := marshalJSON(nonNilStrings(item.SourceTickers))
	if err != nil {
		return false, err
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO news_items (content_id, url, title, summary, source, trust, source_tickers, published_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (content_id) DO NOTHING
	`, item.ContentID, item.URL, item.Title, item.Summary, item.Source, item.Trust, sourceTickers,
		formatNullTime(item.PublishedAt), formatTime(r.now()))
	if err != nil {
		return false, fmt.Errorf("failed to insert news item: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected == 1, nil
}

// ClaimUnclassified atomically tags up to limit unclassified items with a fresh claim token and
// returns them. Claims older than staleAfter are considered abandoned and can be taken over.
func (r *NewsRepo) ClaimUnclassified(ctx context.Context, limit int, staleAfter time.Duration) ([]NewsItem, error) {
	if limit <= 0 {
		return nil, nil
	}

	token := uuid.New().String()
	now := r.now()
	staleBefore := now.Add(-staleAfter)

	_, err := r.db.ExecContext(ctx, `
		UPDATE news_items
		SET claim_token = ?, claimed_at = ?
		WHERE id IN (
			SELECT id FROM news_items
			WHERE classified = 0
			  AND (claimed_at IS NULL OR claimed_at < ?)
			ORDER BY COALESCE(published_at, created_at) DESC, id DESC
			LIMIT ?
		)
	`, token, formatTime(now), formatTime(staleBefore), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim unclassified items: %w", err)
	}

	return r.queryNews(ctx, `
		SELECT `+newsColumns+`
		FROM news_items
		WHERE claim_token = ? AND classified = 0
		ORDER BY COALESCE(published_at, created_at) ASC, id ASC
	`, token)
}

// SaveClassification writes the classification and flips classified to true. It reports false when
// the item was already classified by someone else, in which case nothing is written.
func (r *NewsRepo) SaveClassification(ctx context.Context, id int64, c Classification) (bool, error) {
	tickers, err := marshalJSON(nonNilStrings(c.Tickers))
	if err != nil {
		return false, err
	}
	confidence := c.TickerConfidence
	if confidence == nil {
		confidence = map[string]float64{}
	}
	confidenceJSON, err := marshalJSON(confidence)
	if err != nil {
		return false, err
	}
	keyFacts := c.KeyFacts
	if keyFacts == nil {
		keyFacts = []KeyFact{}
	}
	keyFactsJSON, err := marshalJSON(keyFacts)
	if err != nil {
		return false, err
	}
	topics, err := marshalJSON(nonNilStrings(c.Topics))
	if err != nil {
		return false, err
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE news_items
		SET tickers = ?, ticker_confidence = ?, sentiment = ?, impact_score = ?, category = ?,
		    sector = ?, ai_summary = ?, key_facts = ?, topics = ?, is_breaking = ?,
		    relevance_score = ?, impact_assessment = ?, classified_by = ?,
		    classified = 1, classified_at = ?, claim_token = NULL
		WHERE id = ? AND classified = 0
	`, tickers, confidenceJSON, c.Sentiment, c.ImpactScore, c.Category,
		c.Sector, c.AISummary, keyFactsJSON, topics, c.IsBreaking,
		c.RelevanceScore, c.ImpactAssessment, c.ClassifiedBy,
		formatTime(r.now()), id)
	if err != nil {
		return false, fmt.Errorf("failed to save classification: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected == 1, nil
}

// FindGroupCandidates returns classified items other than excludeID that share at least one of the
// tickers and whose publish time (creation time when unknown) falls in [from, to].
func (r *NewsRepo) FindGroupCandidates(ctx context.Context, excludeID int64, tickers []string, from, to time.Time) ([]GroupCandidate, error) {
	if len(tickers) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tickers)), ",")
	args := []any{excludeID, formatTime(from), formatTime(to)}
	for _, t := range tickers {
		args = append(args, t)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, COALESCE(event_group_id, ''), COALESCE(published_at, created_at)
		FROM news_items
		WHERE classified = 1
		  AND id != ?
		  AND COALESCE(published_at, created_at) BETWEEN ? AND ?
		  AND EXISTS (
			SELECT 1 FROM json_each(news_items.tickers) WHERE json_each.value IN (`+placeholders+`)
		  )
		ORDER BY COALESCE(published_at, created_at) ASC, id ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find group candidates: %w", err)
	}
	defer rows.Close()

	var candidates []GroupCandidate
	for rows.Next() {
		var c GroupCandidate
		var published string
		if err := rows.Scan(&c.ID, &c.EventGroupID, &published); err != nil {
			return nil, fmt.Errorf("failed to scan group candidate: %w", err)
		}
		if c.PublishedAt, err = parseTime(published); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating group candidates: %w", err)
	}

	return candidates, nil
}

func (r *NewsRepo) SetEventGroup(ctx context.Context, id int64, groupID string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE news_items SET event_group_id = ? WHERE id = ?`, groupID, id)
	if err != nil {
		return fmt.Errorf("failed to set event group: %w", err)
	}
	return nil
}

func (r *NewsRepo) GetNews(ctx context.Context, id int64) (*NewsItem, error) {
	items, err := r.queryNews(ctx, `SELECT `+newsColumns+` FROM news_items WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}
	return &items[0], nil
}

func (r *NewsRepo) ListNews(ctx context.Context, filter NewsFilter) ([]NewsItem, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	var where []string
	var args []any
	if filter.ClassifiedOnly {
		where = append(where, "classified = 1")
	}
	if filter.Ticker != "" {
		where = append(where, "EXISTS (SELECT 1 FROM json_each(news_items.tickers) WHERE json_each.value = ?)")
		args = append(args, strings.ToUpper(filter.Ticker))
	}

	query := `SELECT ` + newsColumns + ` FROM news_items`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY COALESCE(published_at, created_at) DESC, id DESC LIMIT ?"
	args = append(args, limit)

	return r.queryNews(ctx, query, args...)
}

func (r *NewsRepo) ListByEventGroup(ctx context.Context, groupID string) ([]NewsItem, error) {
	return r.queryNews(ctx, `
		SELECT `+newsColumns+`
		FROM news_items
		WHERE event_group_id = ?
		ORDER BY COALESCE(published_at, created_at) ASC, id ASC
	`, groupID)
}

func (r *NewsRepo) GetNewsCount(ctx context.Context) (int, int, error) {
	var total, unclassified int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN classified = 0 THEN 1 ELSE 0 END), 0)
		FROM news_items
	`).Scan(&total, &unclassified)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get news count: %w", err)
	}
	return total, unclassified, nil
}

func (r *NewsRepo) queryNews(ctx context.Context, query string, args ...any) ([]NewsItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query news items: %w", err)
	}
	defer rows.Close()

	var items []NewsItem
	for rows.Next() {
		item, err := scanNews(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating news rows: %w", err)
	}

	return items, nil
}

func scanNews(rows *sql.Rows) (NewsItem, error) {
	var item NewsItem
	var sourceTickers, created string
	var published, classifiedAt sql.NullString
	var tickers, confidence, keyFacts, topics sql.NullString
	var category, sector, aiSummary, assessment, by, eventGroup sql.NullString
	var sentiment, relevance sql.NullFloat64
	var impact sql.NullInt64
	var isBreaking, classified bool

	err := rows.Scan(
		&item.ID, &item.ContentID, &item.URL, &item.Title, &item.Summary, &item.Source, &item.Trust, &sourceTickers,
		&published, &created, &tickers, &confidence, &sentiment, &impact,
		&category, &sector, &aiSummary, &keyFacts, &topics, &isBreaking, &relevance,
		&assessment, &classified, &classifiedAt, &by, &eventGroup,
	)
	if err != nil {
		return NewsItem{}, fmt.Errorf("failed to scan news row: %w", err)
	}

	if err := json.Unmarshal([]byte(sourceTickers), &item.SourceTickers); err != nil {
		return NewsItem{}, fmt.Errorf("failed to decode source tickers: %w", err)
	}
	if item.PublishedAt, err = parseNullTime(published); err != nil {
		return NewsItem{}, err
	}
	if item.CreatedAt, err = parseTime(created); err != nil {
		return NewsItem{}, err
	}
	if item.ClassifiedAt, err = parseNullTime(classifiedAt); err != nil {
		return NewsItem{}, err
	}
	item.Classified = classified
	item.EventGroupID = eventGroup.String

	if !classified {
		return item, nil
	}

	c := &Classification{
		Sentiment:        sentiment.Float64,
		ImpactScore:      int(impact.Int64),
		Category:         category.String,
		Sector:           sector.String,
		AISummary:        aiSummary.String,
		IsBreaking:       isBreaking,
		RelevanceScore:   relevance.Float64,
		ImpactAssessment: assessment.String,
		ClassifiedBy:     by.String,
	}
	for _, field := range []struct {
		raw  sql.NullString
		dest any
	}{
		{tickers, &c.Tickers},
		{confidence, &c.TickerConfidence},
		{keyFacts, &c.KeyFacts},
		{topics, &c.Topics},
	} {
		if !field.raw.Valid || field.raw.String == "" {
			continue
		}
		if err := json.Unmarshal([]byte(field.raw.String), field.dest); err != nil {
			return NewsItem{}, fmt.Errorf("failed to decode classification of item %d: %w", item.ID, err)
		}
	}
	item.Classification = c

	return item, nil
}

func marshalJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode JSON column: %w", err)
	}
	return string(data), nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
