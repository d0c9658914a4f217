package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"learnwithavi-server/models"
)

// InitDB initializes the PostgreSQL database connection pool
func InitDB(connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(context.Background(), connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	// Ping the database to verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// CreateSchema sets up the transcript tables.
// In a production environment, use a proper migration tool (e.g., golang-migrate).
func CreateSchema(pool *pgxpool.Pool) error {
	schemaSQL := `
	CREATE TABLE IF NOT EXISTS videos (
		id VARCHAR(64) PRIMARY KEY,
		title TEXT NOT NULL,
		language VARCHAR(8) NOT NULL DEFAULT 'he',
		duration_seconds INT
	);

	CREATE TABLE IF NOT EXISTS chapters (
		id VARCHAR(64) PRIMARY KEY,
		video_id VARCHAR(64) NOT NULL,
		title TEXT NOT NULL,
		start_time INT NOT NULL,
		end_time INT NOT NULL,
		FOREIGN KEY (video_id) REFERENCES videos(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS transcript_chunks (
		id VARCHAR(64) PRIMARY KEY,
		video_id VARCHAR(64) NOT NULL,
		chapter_id VARCHAR(64),
		chunk_text TEXT NOT NULL,
		start_time INT NOT NULL,
		end_time INT NOT NULL,
		topic TEXT NOT NULL DEFAULT '',
		FOREIGN KEY (video_id) REFERENCES videos(id) ON DELETE CASCADE,
		FOREIGN KEY (chapter_id) REFERENCES chapters(id) ON DELETE SET NULL,
		CHECK (start_time <= end_time)
	);

	CREATE INDEX IF NOT EXISTS idx_transcript_chunks_video ON transcript_chunks (video_id, start_time);
	`
	_, err := pool.Exec(context.Background(), schemaSQL)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// TranscriptStore reads transcript chunks out of Postgres. It satisfies the
// quiz generator's transcript provider interface.
type TranscriptStore struct {
	pool *pgxpool.Pool
}

func NewTranscriptStore(pool *pgxpool.Pool) *TranscriptStore {
	return &TranscriptStore{pool: pool}
}

// ChunksForVideo returns the ordered transcript chunks for a video, optionally
// scoped to one chapter. An empty result is not an error; callers decide.
func (s *TranscriptStore) ChunksForVideo(ctx context.Context, videoID, chapterID string) ([]models.TranscriptChunk, error) {
	query := `
		SELECT id, video_id, COALESCE(chapter_id, ''), chunk_text, start_time, end_time, topic
		FROM transcript_chunks
		WHERE video_id = $1
	`
	args := []interface{}{videoID}
	if chapterID != "" {
		query += ` AND chapter_id = $2`
		args = append(args, chapterID)
	}
	query += ` ORDER BY start_time`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcript chunks for video %s: %w", videoID, err)
	}
	defer rows.Close()

	var chunks []models.TranscriptChunk
	for rows.Next() {
		var c models.TranscriptChunk
		if err := rows.Scan(&c.ID, &c.VideoID, &c.ChapterID, &c.Text, &c.StartTime, &c.EndTime, &c.Topic); err != nil {
			return nil, fmt.Errorf("failed to scan transcript chunk row: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed reading transcript chunk rows: %w", err)
	}
	return chunks, nil
}
