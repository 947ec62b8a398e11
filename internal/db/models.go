package db

import "time"

// JobStatus is the lifecycle state of a translation job. The set is closed;
// consumers switch exhaustively over it.
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Valid reports whether the value is a member of the closed status set.
func (s JobStatus) Valid() bool {
	switch s {
	case JobQueued, JobProcessing, JobCompleted, JobFailed:
		return true
	}
	return false
}

// Terminal reports whether the job can no longer change state.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed:
		return true
	case JobQueued, JobProcessing:
		return false
	}
	return false
}

// FileStatus is the outcome of a single (job, language) upload. File rows
// are written once their outcome is known, so there is no pending state.
type FileStatus string

const (
	FileCompleted FileStatus = "completed"
	FileFailed    FileStatus = "failed"
)

// APIKey maps api_keys.
type APIKey struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Key         string    `gorm:"column:key;type:text;not null;uniqueIndex"`
	Description string    `gorm:"column:description;type:text;not null;default:''"`
	CreatedBy   string    `gorm:"column:created_by;type:text;not null;default:''"`
	IsActive    bool      `gorm:"column:is_active;type:boolean;not null;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (APIKey) TableName() string { return "api_keys" }

// TranslationJob maps translation_jobs. One row per file-translation request.
type TranslationJob struct {
	JobID                     string    `gorm:"column:job_id;type:uuid;primaryKey"`
	OriginalFilename          string    `gorm:"column:original_filename;type:text;not null"`
	Status                    JobStatus `gorm:"column:status;type:text;not null;default:queued"`
	TotalLanguages            int       `gorm:"column:total_languages;type:integer;not null"`
	ProcessedLanguages        int       `gorm:"column:processed_languages;type:integer;not null;default:0"`
	CurrentProcessingLanguage *string   `gorm:"column:current_processing_language;type:text"`
	ErrorMessage              *string   `gorm:"column:error_message;type:text"`
	CreatedAt                 time.Time `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
	UpdatedAt                 time.Time `gorm:"column:updated_at;type:timestamptz;not null;default:now()"`
}

func (TranslationJob) TableName() string { return "translation_jobs" }

// TranslationFile maps translation_files. One row per (job, language),
// including the "original" archive of the uploaded source file.
type TranslationFile struct {
	FileID           int64      `gorm:"column:file_id;primaryKey;autoIncrement"`
	JobID            string     `gorm:"column:job_id;type:uuid;not null;index"`
	OriginalFilename string     `gorm:"column:original_filename;type:text;not null"`
	Language         string     `gorm:"column:language;type:text;not null"`
	Status           FileStatus `gorm:"column:status;type:text;not null"`
	RemoteFileID     *string    `gorm:"column:remote_file_id;type:text"`
	DownloadURL      *string    `gorm:"column:download_url;type:text"`
	ErrorMessage     *string    `gorm:"column:error_message;type:text"`
	CreatedAt        time.Time  `gorm:"column:created_at;type:timestamptz;not null;default:now()"`
}

func (TranslationFile) TableName() string { return "translation_files" }

func autoMigrateModels() []any {
	return []any{
		&APIKey{},
		&TranslationJob{},
		&TranslationFile{},
	}
}
