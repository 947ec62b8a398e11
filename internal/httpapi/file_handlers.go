package httpapi

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"horse.fit/polyglot/internal/db"
	"horse.fit/polyglot/internal/pipeline"
	"horse.fit/polyglot/internal/translation"
)

type fileJobResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

type jobFileView struct {
	Language     string  `json:"language"`
	Status       string  `json:"status"`
	DownloadURL  *string `json:"download_url"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

type jobStatusView struct {
	JobID                     string        `json:"job_id"`
	Status                    string        `json:"status"`
	Filename                  string        `json:"filename"`
	TotalLanguages            int           `json:"total_languages"`
	ProcessedLanguages        int           `json:"processed_languages"`
	CurrentProcessingLanguage *string       `json:"current_processing_language"`
	ErrorMessage              *string       `json:"error_message"`
	CreatedAt                 time.Time     `json:"created_at"`
	UpdatedAt                 time.Time     `json:"updated_at"`
	Files                     []jobFileView `json:"files"`
}

func (s *Server) handleTranslateFile(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return failValidation(c, "file is required")
	}

	target := strings.TrimSpace(c.FormValue("target_language"))
	if target == "" {
		return failValidation(c, "target_language is required")
	}

	return s.submitFileJob(c, fileHeader, []string{target})
}

func (s *Server) handleTranslateFileMulti(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return failValidation(c, "file is required")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return failValidation(c, "multipart form is required")
	}

	targets := splitLanguageValues(form.Value["target_languages"])
	if len(targets) == 0 {
		return failValidation(c, "at least one target language must be specified")
	}

	return s.submitFileJob(c, fileHeader, targets)
}

func (s *Server) submitFileJob(c echo.Context, fileHeader *multipart.FileHeader, targets []string) error {
	source := defaultSource(c.FormValue("source_language"))

	src, err := fileHeader.Open()
	if err != nil {
		return failValidation(c, "uploaded file could not be read")
	}
	defer src.Close()

	jobID, err := s.submitter.SubmitFileJob(c.Request().Context(), pipeline.SubmitInput{
		Filename:        fileHeader.Filename,
		Content:         src,
		TargetLanguages: targets,
		SourceLanguage:  source,
	})
	if err != nil {
		var unsupported *pipeline.UnsupportedLanguagesError
		switch {
		case errors.Is(err, pipeline.ErrUnsupportedFileType),
			errors.Is(err, translation.ErrTooManyLanguages),
			errors.Is(err, translation.ErrNoTargetLanguage):
			return failValidation(c, err.Error())
		case errors.As(err, &unsupported):
			return failUnsupportedLanguages(c, s.catalog, unsupported.Languages)
		default:
			s.logger.Error().Err(err).Str("filename", fileHeader.Filename).Msg("file job submission failed")
			return internalError(c, "Failed to start translation job")
		}
	}

	return c.JSON(http.StatusOK, fileJobResponse{
		JobID:   jobID,
		Message: "Translation job started",
	})
}

func (s *Server) handleTranslationStatus(c echo.Context) error {
	jobID := strings.TrimSpace(c.Param("job_id"))
	if jobID == "" {
		return failValidation(c, "job_id is required")
	}

	job, err := s.jobs.GetJob(c.Request().Context(), jobID)
	if err != nil {
		if errors.Is(err, db.ErrJobNotFound) {
			return failNotFound(c, "Translation job not found")
		}
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("job status lookup failed")
		return internalError(c, "Failed to load job status")
	}

	files, err := s.jobs.ListFiles(c.Request().Context(), jobID)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("job file listing failed")
		return internalError(c, "Failed to load job status")
	}

	return c.JSON(http.StatusOK, buildJobStatusView(job, files))
}

func buildJobStatusView(job *db.TranslationJob, files []db.TranslationFile) jobStatusView {
	view := jobStatusView{
		JobID:                     job.JobID,
		Status:                    string(job.Status),
		Filename:                  job.OriginalFilename,
		TotalLanguages:            job.TotalLanguages,
		ProcessedLanguages:        job.ProcessedLanguages,
		CurrentProcessingLanguage: job.CurrentProcessingLanguage,
		ErrorMessage:              job.ErrorMessage,
		CreatedAt:                 job.CreatedAt,
		UpdatedAt:                 job.UpdatedAt,
		Files:                     make([]jobFileView, 0, len(files)),
	}

	for _, file := range files {
		item := jobFileView{
			Language: file.Language,
			Status:   string(file.Status),
		}
		// A download URL is only exposed for a completed file; a failed file
		// carries its error message instead.
		switch file.Status {
		case db.FileCompleted:
			item.DownloadURL = file.DownloadURL
		case db.FileFailed:
			item.ErrorMessage = file.ErrorMessage
		}
		view.Files = append(view.Files, item)
	}

	return view
}

// splitLanguageValues flattens repeated form fields and comma-separated
// values into one label list.
func splitLanguageValues(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
