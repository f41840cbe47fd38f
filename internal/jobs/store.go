package jobs

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

const timeLayout = time.RFC3339Nano

// Store persists jobs, transcripts, and selected clips in sqlite. The same
// database file also backs the task broker so a single flock guards both.
type Store struct {
	db *sql.DB
}

// Open creates or opens the sqlite database at path and applies the schema.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	// sqlite serializes writers; a single connection avoids SQLITE_BUSY
	// churn under the worker pool.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying handle so the broker can share the database.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateJob inserts a new job row.
func (s *Store) CreateJob(ctx context.Context, job *Job) error {
	cfg, err := json.Marshal(job.Configuration)
	if err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, video_id, org_id, tier, status, current_step,
			last_successful_step, progress, configuration, error_message,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.VideoID, job.OrgID, string(job.Tier), string(job.Status),
		job.CurrentStep, job.LastSuccessfulStep, job.Progress, string(cfg),
		job.ErrorMessage, job.CreatedAt.UTC().Format(timeLayout),
		job.UpdatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob loads a job by id. Returns (nil, nil) when no row exists.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, video_id, org_id, tier, status, current_step,
			last_successful_step, progress, configuration, error_message,
			created_at, updated_at
		FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

// ListJobsByStatus returns jobs in the given status, oldest first.
func (s *Store) ListJobsByStatus(ctx context.Context, status Status) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, video_id, org_id, tier, status, current_step,
			last_successful_step, progress, configuration, error_message,
			created_at, updated_at
		FROM jobs WHERE status = ? ORDER BY created_at ASC`, string(status))
	if err != nil {
		return nil, fmt.Errorf("list jobs by status %s: %w", status, err)
	}
	defer rows.Close()

	var out []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// TransitionStatus performs a guarded status update: the row changes only
// when its status still matches from. Returns false when another writer won
// the race or the transition is not allowed.
func (s *Store) TransitionStatus(ctx context.Context, id string, from, to Status, currentStep string, progress int) (bool, error) {
	if !from.CanTransition(to) {
		return false, nil
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = ?, current_step = ?, progress = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), currentStep, progress, now(), id, string(from))
	if err != nil {
		return false, fmt.Errorf("transition job %s to %s: %w", id, to, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// RecordStageSuccess marks a stage finished: records the step as the last
// successful one and advances the status ladder.
func (s *Store) RecordStageSuccess(ctx context.Context, id, step string, next Status, progress int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = ?, last_successful_step = ?, progress = ?,
			error_message = '', updated_at = ?
		WHERE id = ?`,
		string(next), step, progress, now(), id)
	if err != nil {
		return fmt.Errorf("record stage success for job %s: %w", id, err)
	}
	return nil
}

// MarkFailed moves a job to the failed terminal status with a user-visible
// message. Jobs already terminal are left alone.
func (s *Store) MarkFailed(ctx context.Context, id, message string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND status NOT IN (?, ?)`,
		string(StatusFailed), message, now(), id,
		string(StatusCompleted), string(StatusFailed))
	if err != nil {
		return fmt.Errorf("mark job %s failed: %w", id, err)
	}
	return nil
}

// UpdateProgress writes a progress checkpoint without touching status.
func (s *Store) UpdateProgress(ctx context.Context, id string, progress int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET progress = ?, updated_at = ? WHERE id = ?`,
		progress, now(), id)
	if err != nil {
		return fmt.Errorf("update progress for job %s: %w", id, err)
	}
	return nil
}

// UpdateConfiguration replaces the job's configuration map. Stages use it
// to hand facts (source duration, category) to later stages.
func (s *Store) UpdateConfiguration(ctx context.Context, id string, configuration map[string]any) error {
	cfg, err := json.Marshal(configuration)
	if err != nil {
		return fmt.Errorf("encode configuration: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE jobs SET configuration = ?, updated_at = ? WHERE id = ?`,
		string(cfg), now(), id)
	if err != nil {
		return fmt.Errorf("update configuration for job %s: %w", id, err)
	}
	return nil
}

// ReplaceCandidates stores the analysis stage's candidate list for a video
// as an opaque JSON payload.
func (s *Store) ReplaceCandidates(ctx context.Context, videoID string, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO candidates (video_id, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		videoID, string(payload), now())
	if err != nil {
		return fmt.Errorf("replace candidates for video %s: %w", videoID, err)
	}
	return nil
}

// GetCandidates loads the stored candidate payload. Returns (nil, nil)
// when the analysis stage has not run.
func (s *Store) GetCandidates(ctx context.Context, videoID string) ([]byte, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM candidates WHERE video_id = ?`, videoID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load candidates for video %s: %w", videoID, err)
	}
	return []byte(payload), nil
}

// UpsertTranscript stores or replaces the transcript for a video.
func (s *Store) UpsertTranscript(ctx context.Context, t *Transcript) error {
	segments, err := json.Marshal(t.Segments)
	if err != nil {
		return fmt.Errorf("encode segments: %w", err)
	}
	stamp := now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO transcripts (video_id, language, text, segments, refined, confidence, storage_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(video_id) DO UPDATE SET
			language = excluded.language,
			text = excluded.text,
			segments = excluded.segments,
			refined = excluded.refined,
			confidence = excluded.confidence,
			storage_path = excluded.storage_path,
			updated_at = excluded.updated_at`,
		t.VideoID, t.Language, t.Text, string(segments), boolToInt(t.Refined),
		t.Confidence, t.StoragePath, stamp, stamp)
	if err != nil {
		return fmt.Errorf("upsert transcript for video %s: %w", t.VideoID, err)
	}
	return nil
}

// GetTranscript loads the transcript for a video. Returns (nil, nil) when
// none exists.
func (s *Store) GetTranscript(ctx context.Context, videoID string) (*Transcript, error) {
	var (
		t         Transcript
		segments  string
		refined   int
		createdAt string
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT video_id, language, text, segments, refined, confidence, storage_path, created_at, updated_at
		FROM transcripts WHERE video_id = ?`, videoID).
		Scan(&t.VideoID, &t.Language, &t.Text, &segments, &refined,
			&t.Confidence, &t.StoragePath, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load transcript for video %s: %w", videoID, err)
	}
	if err := json.Unmarshal([]byte(segments), &t.Segments); err != nil {
		return nil, fmt.Errorf("decode segments for video %s: %w", videoID, err)
	}
	t.Refined = refined != 0
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return &t, nil
}

// ReplaceSelectedClips atomically swaps the selected clip set for a job.
func (s *Store) ReplaceSelectedClips(ctx context.Context, jobID string, clips []SelectedClip) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clip transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM selected_clips WHERE job_id = ?`, jobID); err != nil {
		return fmt.Errorf("clear clips for job %s: %w", jobID, err)
	}
	for _, clip := range clips {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO selected_clips (id, video_id, job_id, rank,
				start_seconds, end_seconds, score, title, reason, artifact_path)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			clip.ID, clip.VideoID, jobID, clip.Rank,
			clip.Start, clip.End, clip.Score, clip.Title, clip.Reason,
			clip.ArtifactPath); err != nil {
			return fmt.Errorf("insert clip %s: %w", clip.ID, err)
		}
	}
	return tx.Commit()
}

// ListSelectedClips returns the clips chosen for a video, ordered by rank.
func (s *Store) ListSelectedClips(ctx context.Context, videoID string) ([]SelectedClip, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, video_id, job_id, rank, start_seconds, end_seconds,
			score, title, reason, artifact_path
		FROM selected_clips WHERE video_id = ? ORDER BY rank ASC`, videoID)
	if err != nil {
		return nil, fmt.Errorf("list clips for video %s: %w", videoID, err)
	}
	defer rows.Close()

	var out []SelectedClip
	for rows.Next() {
		var c SelectedClip
		if err := rows.Scan(&c.ID, &c.VideoID, &c.JobID, &c.Rank,
			&c.Start, &c.End, &c.Score, &c.Title, &c.Reason, &c.ArtifactPath); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetClipArtifact records the rendered artifact path for a clip.
func (s *Store) SetClipArtifact(ctx context.Context, clipID, path string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE selected_clips SET artifact_path = ? WHERE id = ?`, path, clipID)
	if err != nil {
		return fmt.Errorf("set artifact for clip %s: %w", clipID, err)
	}
	return nil
}

// PruneTerminal deletes completed and failed jobs older than the retention
// window, along with their clips. Returns the number of jobs removed.
func (s *Store) PruneTerminal(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention).Format(timeLayout)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin prune transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM selected_clips WHERE job_id IN (
			SELECT id FROM jobs WHERE status IN (?, ?) AND updated_at < ?
		)`, string(StatusCompleted), string(StatusFailed), cutoff); err != nil {
		return 0, fmt.Errorf("prune clips: %w", err)
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM jobs WHERE status IN (?, ?) AND updated_at < ?`,
		string(StatusCompleted), string(StatusFailed), cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return removed, tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job       Job
		tier      string
		status    string
		cfg       string
		createdAt string
		updatedAt string
	)
	err := row.Scan(&job.ID, &job.VideoID, &job.OrgID, &tier, &status,
		&job.CurrentStep, &job.LastSuccessfulStep, &job.Progress, &cfg,
		&job.ErrorMessage, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	job.Tier = PlanTier(tier)
	job.Status = Status(status)
	if err := json.Unmarshal([]byte(cfg), &job.Configuration); err != nil {
		return nil, fmt.Errorf("decode configuration for job %s: %w", job.ID, err)
	}
	job.CreatedAt = parseTime(createdAt)
	job.UpdatedAt = parseTime(updatedAt)
	return &job, nil
}

func parseTime(raw string) time.Time {
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func now() string {
	return time.Now().UTC().Format(timeLayout)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
