package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/author31/tinysignal/internal/model"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// clusterWriteLock keys the advisory lock taken by every cluster replace.
const clusterWriteLock int64 = 0x74736967

type ClusterRepository struct {
	db *sql.DB
}

func NewClusterRepository(db *sql.DB) *ClusterRepository {
	return &ClusterRepository{db: db}
}

// InsertRecord stores an embedded post. It reports false when a record with the
// same hn_post_id already exists.
func (r *ClusterRepository) InsertRecord(ctx context.Context, record *model.EmbeddedRecord) (bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO hn_embedding(title, url, embedding, hn_post_id, created_at)
		VALUES($1, $2, $3, $4, $5)
		ON CONFLICT (hn_post_id) DO NOTHING
		RETURNING id
	`, record.Title, record.URL, pgvector.NewVector(record.Embedding), record.SourcePostID, record.CreatedAt).Scan(&id)

	if err == sql.ErrNoRows {
		return false, nil
	}

	if err != nil {
		return false, err
	}

	record.ID = id
	return true, nil
}

func (r *ClusterRepository) HasRecord(ctx context.Context, hnPostID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM hn_embedding WHERE hn_post_id = $1)
	`, hnPostID).Scan(&exists)
	return exists, err
}

func (r *ClusterRepository) GetRecords(ctx context.Context) ([]model.EmbeddedRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, url, embedding, hn_post_id, created_at
		FROM hn_embedding
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.EmbeddedRecord
	for rows.Next() {
		var rec model.EmbeddedRecord
		var vec pgvector.Vector
		err := rows.Scan(&rec.ID, &rec.Title, &rec.URL, &vec, &rec.SourcePostID, &rec.CreatedAt)
		if err != nil {
			return nil, err
		}
		rec.Embedding = vec.Slice()
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func (r *ClusterRepository) CountRecords(ctx context.Context) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM hn_embedding`).Scan(&total)
	return total, err
}

func (r *ClusterRepository) GetClusters(ctx context.Context) ([]model.ClusterAssignment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT hn_embedding_id, cluster_idx
		FROM hn_cluster
		ORDER BY cluster_idx ASC, hn_embedding_id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clusters []model.ClusterAssignment
	for rows.Next() {
		var c model.ClusterAssignment
		if err := rows.Scan(&c.EmbeddingID, &c.ClusterIdx); err != nil {
			return nil, err
		}
		clusters = append(clusters, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return clusters, nil
}

func (r *ClusterRepository) HasClusters(ctx context.Context) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM hn_cluster)`).Scan(&exists)
	return exists, err
}

func (r *ClusterRepository) GetClusterTitles(ctx context.Context) ([]model.ClusterTitle, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT hn_cluster_idx, title
		FROM hn_cluster_title
		ORDER BY hn_cluster_idx ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var titles []model.ClusterTitle
	for rows.Next() {
		var t model.ClusterTitle
		if err := rows.Scan(&t.ClusterIdx, &t.Title); err != nil {
			return nil, err
		}
		titles = append(titles, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return titles, nil
}

// ReplaceClusters swaps the stored clustering for assignments and titles in one
// transaction. Writers are serialized on an advisory lock. Unless overwrite is
// set, nothing is written when clusters already exist, and false is returned.
func (r *ClusterRepository) ReplaceClusters(ctx context.Context, assignments []model.ClusterAssignment, titles []model.ClusterTitle, overwrite bool) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, clusterWriteLock); err != nil {
		return false, fmt.Errorf("acquiring cluster lock: %w", err)
	}

	if !overwrite {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM hn_cluster)`).Scan(&exists); err != nil {
			return false, err
		}
		if exists {
			return false, nil
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM hn_cluster`); err != nil {
		return false, fmt.Errorf("clearing assignments: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM hn_cluster_title`); err != nil {
		return false, fmt.Errorf("clearing titles: %w", err)
	}

	if err := insertClusterAssignments(ctx, tx, assignments); err != nil {
		return false, fmt.Errorf("saving assignments: %w", err)
	}
	if err := upsertClusterTitles(ctx, tx, titles); err != nil {
		return false, fmt.Errorf("saving titles: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func insertClusterAssignments(ctx context.Context, tx *sql.Tx, assignments []model.ClusterAssignment) error {
	if len(assignments) == 0 {
		return nil
	}

	ids := make([]int64, len(assignments))
	idxs := make([]int64, len(assignments))
	for i, a := range assignments {
		ids[i] = a.EmbeddingID
		idxs[i] = int64(a.ClusterIdx)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO hn_cluster(hn_embedding_id, cluster_idx)
		SELECT * FROM unnest($1::bigint[], $2::int[])
	`, pq.Array(ids), pq.Array(idxs))
	return err
}

func upsertClusterTitles(ctx context.Context, tx *sql.Tx, titles []model.ClusterTitle) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO hn_cluster_title(hn_cluster_idx, title)
		VALUES($1, $2)
		ON CONFLICT (hn_cluster_idx) DO UPDATE SET title = EXCLUDED.title
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range titles {
		if _, err := stmt.ExecContext(ctx, t.ClusterIdx, t.Title); err != nil {
			return err
		}
	}
	return nil
}

func (r *ClusterRepository) GetPostsByCluster(ctx context.Context, clusterIdx int32, limit int) ([]model.Post, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT e.title, e.url, e.hn_post_id
		FROM hn_embedding e
		JOIN hn_cluster c ON c.hn_embedding_id = e.id
		WHERE c.cluster_idx = $1
		ORDER BY e.id ASC
		LIMIT $2
	`, clusterIdx, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []model.Post
	for rows.Next() {
		var p model.Post
		if err := rows.Scan(&p.Title, &p.URL, &p.HNPostID); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return posts, nil
}
