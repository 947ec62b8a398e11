package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"horse.fit/polyglot/internal/globaltime"
)

// CreateJob inserts a new job in the queued state and returns its identifier.
func (p *Pool) CreateJob(ctx context.Context, filename string, totalLanguages int) (string, error) {
	if p == nil {
		return "", fmt.Errorf("database pool is not initialized")
	}

	jobID := uuid.NewString()
	now := globaltime.UTC()

	const q = `
INSERT INTO translation_jobs (
	job_id,
	original_filename,
	status,
	total_languages,
	processed_languages,
	created_at,
	updated_at
)
VALUES ($1, $2, $3, $4, 0, $5, $5)
`

	if _, err := p.Exec(ctx, q, jobID, filename, string(JobQueued), totalLanguages, now); err != nil {
		return "", fmt.Errorf("insert translation job: %w", err)
	}
	return jobID, nil
}

// UpdateJobStatus moves a job to the given state. currentLanguage replaces
// the tracked language (nil clears it); errorMessage is only written when
// non-nil, matching the append-only error semantics of the pipeline.
func (p *Pool) UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, currentLanguage, errorMessage *string) error {
	if !status.Valid() {
		return fmt.Errorf("invalid job status %q", status)
	}

	const q = `
UPDATE translation_jobs
SET status = $2,
	current_processing_language = $3,
	error_message = COALESCE($4, error_message),
	updated_at = $5
WHERE job_id = $1
`

	tag, err := p.Exec(ctx, q, strings.TrimSpace(jobID), string(status), currentLanguage, errorMessage, globaltime.UTC())
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrJobNotFound
	}
	return nil
}

// IncrementProcessedLanguages advances the success counter by one. The
// read-modify-write happens inside a single statement so concurrent language
// completions never lose an increment.
func (p *Pool) IncrementProcessedLanguages(ctx context.Context, jobID string) error {
	const q = `
UPDATE translation_jobs
SET processed_languages = processed_languages + 1,
	updated_at = $2
WHERE job_id = $1
  AND processed_languages < total_languages
`

	tag, err := p.Exec(ctx, q, strings.TrimSpace(jobID), globaltime.UTC())
	if err != nil {
		return fmt.Errorf("increment processed languages: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: processed_languages would exceed total_languages", jobID)
	}
	return nil
}

// RecordFile inserts the immutable outcome row for one (job, language).
func (p *Pool) RecordFile(ctx context.Context, file TranslationFile) error {
	const q = `
INSERT INTO translation_files (
	job_id,
	original_filename,
	language,
	status,
	remote_file_id,
	download_url,
	error_message,
	created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

	if _, err := p.Exec(
		ctx,
		q,
		file.JobID,
		file.OriginalFilename,
		file.Language,
		string(file.Status),
		file.RemoteFileID,
		file.DownloadURL,
		file.ErrorMessage,
		globaltime.UTC(),
	); err != nil {
		return fmt.Errorf("insert translation file: %w", err)
	}
	return nil
}

// GetJob loads a single job row.
func (p *Pool) GetJob(ctx context.Context, jobID string) (*TranslationJob, error) {
	const q = `
SELECT
	job_id::text,
	original_filename,
	status,
	total_languages,
	processed_languages,
	current_processing_language,
	error_message,
	created_at,
	updated_at
FROM translation_jobs
WHERE job_id = $1::uuid
LIMIT 1
`

	var row TranslationJob
	var status string
	err := p.QueryRow(ctx, q, strings.TrimSpace(jobID)).Scan(
		&row.JobID,
		&row.OriginalFilename,
		&status,
		&row.TotalLanguages,
		&row.ProcessedLanguages,
		&row.CurrentProcessingLanguage,
		&row.ErrorMessage,
		&row.CreatedAt,
		&row.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("query translation job: %w", err)
	}
	row.Status = JobStatus(status)
	return &row, nil
}

// ListFiles returns the file rows for a job in creation order.
func (p *Pool) ListFiles(ctx context.Context, jobID string) ([]TranslationFile, error) {
	const q = `
SELECT
	file_id,
	job_id::text,
	original_filename,
	language,
	status,
	remote_file_id,
	download_url,
	error_message,
	created_at
FROM translation_files
WHERE job_id = $1::uuid
ORDER BY file_id ASC
`

	rows, err := p.Query(ctx, q, strings.TrimSpace(jobID))
	if err != nil {
		return nil, fmt.Errorf("query translation files: %w", err)
	}
	defer rows.Close()

	items := make([]TranslationFile, 0, 8)
	for rows.Next() {
		var row TranslationFile
		var status string
		if err := rows.Scan(
			&row.FileID,
			&row.JobID,
			&row.OriginalFilename,
			&row.Language,
			&status,
			&row.RemoteFileID,
			&row.DownloadURL,
			&row.ErrorMessage,
			&row.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan translation file row: %w", err)
		}
		row.Status = FileStatus(status)
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate translation files: %w", err)
	}

	return items, nil
}

// FailAbandonedJobs marks jobs left in a non-terminal state as failed. Run
// once at startup so a crashed process does not strand Processing jobs.
func (p *Pool) FailAbandonedJobs(ctx context.Context, message string) (int64, error) {
	const q = `
UPDATE translation_jobs
SET status = $1,
	current_processing_language = NULL,
	error_message = $2,
	updated_at = $3
WHERE status IN ($4, $5)
`

	tag, err := p.Exec(ctx, q, string(JobFailed), message, globaltime.UTC(), string(JobQueued), string(JobProcessing))
	if err != nil {
		return 0, fmt.Errorf("fail abandoned jobs: %w", err)
	}
	return tag.RowsAffected(), nil
}
