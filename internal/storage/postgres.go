// Package storage holds the relational and object storage layers.
//
// Relational schema:
//
//	CREATE TABLE events (
//	    id          UUID PRIMARY KEY,
//	    name        TEXT NOT NULL,
//	    description TEXT NOT NULL DEFAULT '',
//	    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//
//	CREATE TABLE images (
//	    id         UUID PRIMARY KEY,
//	    event_id   UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
//	    object_key TEXT NOT NULL,
//	    thumb_key  TEXT NOT NULL DEFAULT '',
//	    width      INT NOT NULL,
//	    height     INT NOT NULL,
//	    scene_type TEXT NOT NULL DEFAULT '',
//	    brightness DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    sharpness  DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    face_count INT NOT NULL DEFAULT 0,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//	CREATE INDEX idx_images_event ON images(event_id);
//
//	CREATE TABLE faces (
//	    id              UUID PRIMARY KEY,
//	    image_id        UUID NOT NULL REFERENCES images(id) ON DELETE CASCADE,
//	    embedding_id    TEXT NOT NULL,
//	    bbox_x          DOUBLE PRECISION NOT NULL,
//	    bbox_y          DOUBLE PRECISION NOT NULL,
//	    bbox_w          DOUBLE PRECISION NOT NULL,
//	    bbox_h          DOUBLE PRECISION NOT NULL,
//	    detection_score DOUBLE PRECISION NOT NULL,
//	    age             INT NOT NULL DEFAULT 0,
//	    gender          TEXT NOT NULL DEFAULT '',
//	    quality         DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    yaw             DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    pitch           DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    roll            DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    prominence      DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    center_dist     DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    is_frontal      BOOLEAN NOT NULL DEFAULT false,
//	    metadata_text   TEXT NOT NULL DEFAULT '',
//	    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//	CREATE UNIQUE INDEX idx_faces_embedding ON faces(embedding_id);
//
//	CREATE TABLE feedback (
//	    id                    UUID PRIMARY KEY,
//	    event_id              UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
//	    image_id              UUID NOT NULL,
//	    selfie_hash           TEXT NOT NULL,
//	    rejected_embedding_id TEXT NOT NULL,
//	    rejected_face_id      UUID,
//	    created_at            TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    UNIQUE (event_id, selfie_hash, rejected_embedding_id)
//	);
//
//	CREATE TABLE reputation_scores (
//	    event_id       UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
//	    embedding_id   TEXT NOT NULL,
//	    times_shown    INT NOT NULL DEFAULT 0,
//	    times_rejected INT NOT NULL DEFAULT 0,
//	    rejection_rate DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    score_penalty  DOUBLE PRECISION NOT NULL DEFAULT 0,
//	    updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    PRIMARY KEY (event_id, embedding_id)
//	);
//
//	CREATE TABLE ingest_jobs (
//	    id          UUID PRIMARY KEY,
//	    event_id    UUID NOT NULL REFERENCES events(id) ON DELETE CASCADE,
//	    status      TEXT NOT NULL,
//	    total       INT NOT NULL DEFAULT 0,
//	    processed   INT NOT NULL DEFAULT 0,
//	    failed      INT NOT NULL DEFAULT 0,
//	    faces       INT NOT NULL DEFAULT 0,
//	    error       TEXT NOT NULL DEFAULT '',
//	    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/facematch/internal/config"
	"github.com/your-org/facematch/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Pool exposes the underlying pool so the vector store can share connections.
func (s *PostgresStore) Pool() *pgxpool.Pool {
	return s.pool
}

// Begin starts a transaction for ingest's per-image atomic writes.
func (s *PostgresStore) Begin(ctx context.Context) (pgx.Tx, error) {
	return s.pool.Begin(ctx)
}

// --- Events ---

func (s *PostgresStore) CreateEvent(ctx context.Context, name, description string) (*models.Event, error) {
	e := &models.Event{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO events (id, name, description) VALUES ($1, $2, $3) RETURNING created_at, updated_at`,
		e.ID, e.Name, e.Description,
	).Scan(&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return e, nil
}

func (s *PostgresStore) ListEvents(ctx context.Context) ([]models.Event, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, description, created_at, updated_at FROM events ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.Name, &e.Description, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, e)
	}
	return events, nil
}

func (s *PostgresStore) GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	e := &models.Event{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, description, created_at, updated_at FROM events WHERE id = $1`, id,
	).Scan(&e.ID, &e.Name, &e.Description, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// DeleteEvent removes the event row; images, faces, feedback and reputations
// cascade. Vector store and object storage cleanup are the caller's job.
func (s *PostgresStore) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

// --- Images ---

func (s *PostgresStore) InsertImageTx(ctx context.Context, tx pgx.Tx, img *models.Image) error {
	if img.ID == uuid.Nil {
		img.ID = uuid.New()
	}
	err := tx.QueryRow(ctx,
		`INSERT INTO images (id, event_id, object_key, thumb_key, width, height, scene_type, brightness, sharpness, face_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING created_at`,
		img.ID, img.EventID, img.ObjectKey, img.ThumbKey, img.Width, img.Height,
		img.SceneType, img.Brightness, img.Sharpness, img.FaceCount,
	).Scan(&img.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert image: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListImages(ctx context.Context, eventID uuid.UUID) ([]models.Image, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, event_id, object_key, thumb_key, width, height, scene_type, brightness, sharpness, face_count, created_at
		 FROM images WHERE event_id = $1 ORDER BY created_at DESC`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()
	return scanImages(rows)
}

// ImagesByIDs batch-loads images. Missing ids are omitted from the result.
func (s *PostgresStore) ImagesByIDs(ctx context.Context, imageIDs []uuid.UUID) ([]models.Image, error) {
	if len(imageIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, event_id, object_key, thumb_key, width, height, scene_type, brightness, sharpness, face_count, created_at
		 FROM images WHERE id = ANY($1)`, imageIDs)
	if err != nil {
		return nil, fmt.Errorf("images by ids: %w", err)
	}
	defer rows.Close()
	return scanImages(rows)
}

func scanImages(rows pgx.Rows) ([]models.Image, error) {
	var images []models.Image
	for rows.Next() {
		var img models.Image
		if err := rows.Scan(&img.ID, &img.EventID, &img.ObjectKey, &img.ThumbKey, &img.Width, &img.Height,
			&img.SceneType, &img.Brightness, &img.Sharpness, &img.FaceCount, &img.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// ImageObjectKeys returns every stored object key for the event, originals
// and thumbnails, for object storage cleanup on event deletion.
func (s *PostgresStore) ImageObjectKeys(ctx context.Context, eventID uuid.UUID) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT object_key, thumb_key FROM images WHERE event_id = $1`, eventID)
	if err != nil {
		return nil, fmt.Errorf("image object keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var objectKey, thumbKey string
		if err := rows.Scan(&objectKey, &thumbKey); err != nil {
			return nil, fmt.Errorf("scan object keys: %w", err)
		}
		keys = append(keys, objectKey)
		if thumbKey != "" {
			keys = append(keys, thumbKey)
		}
	}
	return keys, rows.Err()
}

// --- Faces ---

func (s *PostgresStore) InsertFaceTx(ctx context.Context, tx pgx.Tx, f *models.Face) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	err := tx.QueryRow(ctx,
		`INSERT INTO faces (id, image_id, embedding_id, bbox_x, bbox_y, bbox_w, bbox_h, detection_score,
		                    age, gender, quality, yaw, pitch, roll, prominence, center_dist, is_frontal, metadata_text)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		 RETURNING created_at`,
		f.ID, f.ImageID, f.EmbeddingID, f.BBoxX, f.BBoxY, f.BBoxW, f.BBoxH, f.DetectionScore,
		f.Age, f.Gender, f.Quality, f.Yaw, f.Pitch, f.Roll, f.Prominence, f.CenterDist, f.IsFrontal, f.MetadataText,
	).Scan(&f.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert face: %w", err)
	}
	return nil
}

// FacesByEmbeddingIDs resolves embedding ids to their relational descriptors
// in one query. Ids with no descriptor are omitted.
func (s *PostgresStore) FacesByEmbeddingIDs(ctx context.Context, embeddingIDs []string) ([]models.Face, error) {
	if len(embeddingIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, image_id, embedding_id, bbox_x, bbox_y, bbox_w, bbox_h, detection_score,
		        age, gender, quality, yaw, pitch, roll, prominence, center_dist, is_frontal, metadata_text, created_at
		 FROM faces WHERE embedding_id = ANY($1)`, embeddingIDs)
	if err != nil {
		return nil, fmt.Errorf("faces by embedding ids: %w", err)
	}
	defer rows.Close()

	var faces []models.Face
	for rows.Next() {
		var f models.Face
		if err := rows.Scan(&f.ID, &f.ImageID, &f.EmbeddingID, &f.BBoxX, &f.BBoxY, &f.BBoxW, &f.BBoxH,
			&f.DetectionScore, &f.Age, &f.Gender, &f.Quality, &f.Yaw, &f.Pitch, &f.Roll,
			&f.Prominence, &f.CenterDist, &f.IsFrontal, &f.MetadataText, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan face: %w", err)
		}
		faces = append(faces, f)
	}
	return faces, rows.Err()
}

// --- Feedback ---

func (s *PostgresStore) InsertFeedbackOnce(ctx context.Context, fb *models.Feedback) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO feedback (id, event_id, image_id, selfie_hash, rejected_embedding_id, rejected_face_id)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (event_id, selfie_hash, rejected_embedding_id) DO NOTHING`,
		fb.ID, fb.EventID, fb.ImageID, fb.SelfieHash, fb.RejectedEmbeddingID, fb.RejectedFaceID)
	if err != nil {
		return false, fmt.Errorf("insert feedback: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) RejectedEmbeddingIDs(ctx context.Context, eventID uuid.UUID, selfieHash string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT rejected_embedding_id FROM feedback WHERE event_id = $1 AND selfie_hash = $2`,
		eventID, selfieHash)
	if err != nil {
		return nil, fmt.Errorf("rejected embedding ids: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (s *PostgresStore) ConfusingEmbeddingIDs(ctx context.Context, eventID uuid.UUID, minRate float64, minShown int) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT embedding_id FROM reputation_scores
		 WHERE event_id = $1 AND rejection_rate > $2 AND times_shown >= $3`,
		eventID, minRate, minShown)
	if err != nil {
		return nil, fmt.Errorf("confusing embedding ids: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (s *PostgresStore) FeedbackCounts(ctx context.Context, eventID uuid.UUID, selfieHash string) (models.FeedbackStats, error) {
	var stats models.FeedbackStats
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE selfie_hash = $2), COUNT(*) FROM feedback WHERE event_id = $1`,
		eventID, selfieHash,
	).Scan(&stats.PersonalFeedbackCount, &stats.TotalFeedbackCount)
	if err != nil {
		return models.FeedbackStats{}, fmt.Errorf("feedback counts: %w", err)
	}
	return stats, nil
}

// --- Reputation scores ---

func (s *PostgresStore) GetReputations(ctx context.Context, eventID uuid.UUID, embeddingIDs []string) (map[string]*models.ReputationScore, error) {
	if len(embeddingIDs) == 0 {
		return map[string]*models.ReputationScore{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT event_id, embedding_id, times_shown, times_rejected, rejection_rate, score_penalty, updated_at
		 FROM reputation_scores WHERE event_id = $1 AND embedding_id = ANY($2)`,
		eventID, embeddingIDs)
	if err != nil {
		return nil, fmt.Errorf("get reputations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*models.ReputationScore)
	for rows.Next() {
		rep := &models.ReputationScore{}
		if err := rows.Scan(&rep.EventID, &rep.EmbeddingID, &rep.TimesShown, &rep.TimesRejected,
			&rep.RejectionRate, &rep.ScorePenalty, &rep.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan reputation: %w", err)
		}
		out[rep.EmbeddingID] = rep
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertReputations(ctx context.Context, reps []*models.ReputationScore) error {
	if len(reps) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, rep := range reps {
		batch.Queue(
			`INSERT INTO reputation_scores (event_id, embedding_id, times_shown, times_rejected, rejection_rate, score_penalty, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 ON CONFLICT (event_id, embedding_id) DO UPDATE SET
			     times_shown = EXCLUDED.times_shown,
			     times_rejected = EXCLUDED.times_rejected,
			     rejection_rate = EXCLUDED.rejection_rate,
			     score_penalty = EXCLUDED.score_penalty,
			     updated_at = EXCLUDED.updated_at`,
			rep.EventID, rep.EmbeddingID, rep.TimesShown, rep.TimesRejected,
			rep.RejectionRate, rep.ScorePenalty, rep.UpdatedAt)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range reps {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert reputation: %w", err)
		}
	}
	return nil
}

// --- Ingest jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, jobID, eventID uuid.UUID, total int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ingest_jobs (id, event_id, status, total) VALUES ($1, $2, $3, $4)`,
		jobID, eventID, models.JobStatusPending, total)
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateJob(ctx context.Context, p models.JobProgress) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE ingest_jobs SET status = $2, processed = $3, failed = $4, faces = $5, error = $6, updated_at = now()
		 WHERE id = $1`,
		p.JobID, p.Status, p.Processed, p.Failed, p.Faces, p.Error)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID uuid.UUID) (*models.JobProgress, error) {
	p := &models.JobProgress{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, event_id, status, total, processed, failed, faces, error, updated_at
		 FROM ingest_jobs WHERE id = $1`, jobID,
	).Scan(&p.JobID, &p.EventID, &p.Status, &p.Total, &p.Processed, &p.Failed, &p.Faces, &p.Error, &p.Timestamp)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return p, nil
}

func scanStrings(rows pgx.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan id: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
