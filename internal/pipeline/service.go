// Package pipeline orchestrates asynchronous file-translation jobs: request
// validation, durable job records, background translation fan-out, object
// storage uploads, and incremental status updates.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"horse.fit/polyglot/internal/db"
	"horse.fit/polyglot/internal/language"
	"horse.fit/polyglot/internal/storage"
	"horse.fit/polyglot/internal/translation"
)

// OriginalLabel marks the archived copy of the uploaded source file.
const OriginalLabel = "original"

// ErrUnsupportedFileType rejects anything that is not plain text.
var ErrUnsupportedFileType = errors.New("only .txt files are supported")

// UnsupportedLanguagesError lists the requested languages the catalog cannot
// resolve, along with the supported identifier set.
type UnsupportedLanguagesError struct {
	Languages []string
	Supported []string
}

func (e *UnsupportedLanguagesError) Error() string {
	return fmt.Sprintf(
		"unsupported languages: %s (supported: %s)",
		strings.Join(e.Languages, ", "),
		strings.Join(e.Supported, ", "),
	)
}

// Store is the durable record of jobs and their per-language files.
// *db.Pool satisfies it.
type Store interface {
	CreateJob(ctx context.Context, filename string, totalLanguages int) (string, error)
	UpdateJobStatus(ctx context.Context, jobID string, status db.JobStatus, currentLanguage, errorMessage *string) error
	IncrementProcessedLanguages(ctx context.Context, jobID string) error
	RecordFile(ctx context.Context, file db.TranslationFile) error
}

// Translator fans source text out to the requested target languages.
// *translation.Client satisfies it.
type Translator interface {
	TranslateMany(ctx context.Context, text string, targetLangs []string, sourceLang string) ([]translation.Result, error)
}

// Uploader pushes one staged file to object storage. *storage.Uploader
// satisfies it.
type Uploader interface {
	Upload(ctx context.Context, localPath, languageLabel string) (storage.Object, error)
}

// Service is the file-translation job pipeline.
type Service struct {
	store      Store
	translator Translator
	uploader   Uploader
	catalog    *language.Catalog
	spawner    *Spawner
	logger     zerolog.Logger
	uploadDir  string
}

func NewService(store Store, translator Translator, uploader Uploader, catalog *language.Catalog, logger zerolog.Logger, uploadDir string) (*Service, error) {
	dir := strings.TrimSpace(uploadDir)
	if dir == "" {
		dir = "./upload"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", dir, err)
	}

	return &Service{
		store:      store,
		translator: translator,
		uploader:   uploader,
		catalog:    catalog,
		spawner:    NewSpawner(store, logger),
		logger:     logger,
		uploadDir:  dir,
	}, nil
}

// SubmitInput carries one file-translation request.
type SubmitInput struct {
	Filename        string
	Content         io.Reader
	TargetLanguages []string
	SourceLanguage  string
}

// SubmitFileJob validates the request, creates the durable job record,
// stages the uploaded file, and schedules the background run. The job
// identifier is returned immediately; translation and uploads proceed
// out-of-band.
func (s *Service) SubmitFileJob(ctx context.Context, in SubmitInput) (string, error) {
	if s == nil || s.store == nil {
		return "", fmt.Errorf("pipeline service is not initialized")
	}

	filename := filepath.Base(strings.TrimSpace(in.Filename))
	if !strings.HasSuffix(strings.ToLower(filename), ".txt") {
		return "", ErrUnsupportedFileType
	}

	if len(in.TargetLanguages) == 0 {
		return "", translation.ErrNoTargetLanguage
	}
	if len(in.TargetLanguages) > translation.MaxTargetLanguages {
		return "", translation.ErrTooManyLanguages
	}

	if rejected := s.catalog.Unsupported(in.TargetLanguages); len(rejected) > 0 {
		return "", &UnsupportedLanguagesError{
			Languages: rejected,
			Supported: s.catalog.SupportedIdentifiers(),
		}
	}

	jobID, err := s.store.CreateJob(ctx, filename, len(in.TargetLanguages))
	if err != nil {
		return "", fmt.Errorf("create translation job: %w", err)
	}

	scratchPath, err := s.saveUpload(jobID, filename, in.Content)
	if err != nil {
		message := err.Error()
		if updateErr := s.store.UpdateJobStatus(ctx, jobID, db.JobFailed, nil, &message); updateErr != nil {
			s.logger.Error().Err(updateErr).Str("job_id", jobID).Msg("failed to mark job failed after staging error")
		}
		return "", err
	}

	targets := append([]string(nil), in.TargetLanguages...)
	source := in.SourceLanguage
	s.spawner.Spawn(jobID, func(taskCtx context.Context) error {
		return s.runJob(taskCtx, jobID, scratchPath, filename, targets, source)
	})

	return jobID, nil
}

// Wait blocks until all in-flight background jobs finish.
func (s *Service) Wait() {
	if s != nil && s.spawner != nil {
		s.spawner.Wait()
	}
}

// runJob is the background half of the pipeline. Per-language failures are
// recorded as failed file rows and do not abort the job; only pipeline-wide
// faults (unreadable source, storage unavailable) propagate and fail it.
func (s *Service) runJob(ctx context.Context, jobID, scratchPath, filename string, targets []string, sourceLang string) error {
	defer s.cleanupJobDir(jobID)

	current := OriginalLabel
	if err := s.store.UpdateJobStatus(ctx, jobID, db.JobProcessing, &current, nil); err != nil {
		return err
	}

	raw, err := os.ReadFile(scratchPath)
	if err != nil {
		return fmt.Errorf("read uploaded file: %w", err)
	}

	results, err := s.translator.TranslateMany(ctx, string(raw), targets, sourceLang)
	if err != nil {
		return fmt.Errorf("translate file: %w", err)
	}

	// The original is archived before any translated variant so its file
	// row always comes first.
	originalObj, err := s.uploader.Upload(ctx, scratchPath, OriginalLabel)
	if err != nil {
		return fmt.Errorf("upload original file: %w", err)
	}
	if err := s.store.RecordFile(ctx, db.TranslationFile{
		JobID:            jobID,
		OriginalFilename: filename,
		Language:         OriginalLabel,
		Status:           db.FileCompleted,
		RemoteFileID:     &originalObj.RemoteID,
		DownloadURL:      &originalObj.DownloadURL,
	}); err != nil {
		return err
	}

	for _, result := range results {
		lang := result.Language
		if err := s.store.UpdateJobStatus(ctx, jobID, db.JobProcessing, &lang, nil); err != nil {
			return err
		}

		if result.Err != nil {
			if err := s.recordLanguageFailure(ctx, jobID, filename, lang, result.Err); err != nil {
				return err
			}
			continue
		}

		obj, err := s.uploadTranslation(ctx, jobID, lang, result.Text)
		if err != nil {
			if errors.Is(err, storage.ErrStorageUnavailable) {
				return err
			}
			if recordErr := s.recordLanguageFailure(ctx, jobID, filename, lang, err); recordErr != nil {
				return recordErr
			}
			continue
		}

		if err := s.store.RecordFile(ctx, db.TranslationFile{
			JobID:            jobID,
			OriginalFilename: filename,
			Language:         lang,
			Status:           db.FileCompleted,
			RemoteFileID:     &obj.RemoteID,
			DownloadURL:      &obj.DownloadURL,
		}); err != nil {
			return err
		}
		if err := s.store.IncrementProcessedLanguages(ctx, jobID); err != nil {
			return err
		}
	}

	if err := s.store.UpdateJobStatus(ctx, jobID, db.JobCompleted, nil, nil); err != nil {
		return err
	}

	s.logger.Info().Str("job_id", jobID).Int("languages", len(targets)).Msg("translation job completed")
	return nil
}

func (s *Service) recordLanguageFailure(ctx context.Context, jobID, filename, lang string, cause error) error {
	s.logger.Warn().Err(cause).Str("job_id", jobID).Str("language", lang).Msg("language translation failed")
	message := cause.Error()
	return s.store.RecordFile(ctx, db.TranslationFile{
		JobID:            jobID,
		OriginalFilename: filename,
		Language:         lang,
		Status:           db.FileFailed,
		ErrorMessage:     &message,
	})
}

// uploadTranslation stages the translated text in a per-job scratch file,
// uploads it, and removes the scratch file on success.
func (s *Service) uploadTranslation(ctx context.Context, jobID, lang, text string) (storage.Object, error) {
	scratchPath := filepath.Join(s.jobDir(jobID), fmt.Sprintf("translated_%s.txt", lang))
	if err := os.WriteFile(scratchPath, []byte(text), 0o644); err != nil {
		return storage.Object{}, fmt.Errorf("write translated scratch file: %w", err)
	}

	obj, err := s.uploader.Upload(ctx, scratchPath, lang)
	if err != nil {
		return storage.Object{}, err
	}

	if err := os.Remove(scratchPath); err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Str("language", lang).Msg("failed to remove scratch file")
	}
	return obj, nil
}

func (s *Service) saveUpload(jobID, filename string, content io.Reader) (string, error) {
	dir := s.jobDir(jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create job scratch dir: %w", err)
	}

	path := filepath.Join(dir, filename)
	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("stage uploaded file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, content); err != nil {
		return "", fmt.Errorf("write uploaded file: %w", err)
	}
	return path, nil
}

// jobDir keeps scratch files namespaced per job so concurrent jobs never
// contend on filenames.
func (s *Service) jobDir(jobID string) string {
	return filepath.Join(s.uploadDir, jobID)
}

func (s *Service) cleanupJobDir(jobID string) {
	if err := os.RemoveAll(s.jobDir(jobID)); err != nil {
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("failed to clean job scratch dir")
	}
}
