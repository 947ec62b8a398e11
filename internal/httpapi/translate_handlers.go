package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/polyglot/internal/langdetect"
	"horse.fit/polyglot/internal/language"
)

type translateTextRequest struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language"`
	SourceLanguage string `json:"source_language"`
}

type translateTextResponse struct {
	TranslatedText         string `json:"translated_text"`
	SourceLanguage         string `json:"source_language"`
	TargetLanguage         string `json:"target_language"`
	DetectedSourceLanguage string `json:"detected_source_language,omitempty"`
}

type translateMultiRequest struct {
	Text            string   `json:"text"`
	TargetLanguages []string `json:"target_languages"`
	SourceLanguage  string   `json:"source_language"`
}

type translateMultiResponse struct {
	Translations           map[string]string `json:"translations"`
	SourceLanguage         string            `json:"source_language"`
	OriginalText           string            `json:"original_text"`
	DetectedSourceLanguage string            `json:"detected_source_language,omitempty"`
}

func (s *Server) handleTranslateText(c echo.Context) error {
	var req translateTextRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, err.Error())
	}

	if strings.TrimSpace(req.Text) == "" {
		return failValidation(c, "text is required")
	}
	if strings.TrimSpace(req.TargetLanguage) == "" {
		return failValidation(c, "target_language is required")
	}
	if !s.catalog.IsSupported(req.TargetLanguage) {
		return failUnsupportedLanguages(c, s.catalog, []string{req.TargetLanguage})
	}

	source := defaultSource(req.SourceLanguage)

	translated, err := s.translator.Translate(c.Request().Context(), req.Text, req.TargetLanguage, source)
	if err != nil {
		s.logger.Error().Err(err).Str("target_language", req.TargetLanguage).Msg("text translation failed")
		return internalError(c, "Translation failed")
	}

	return c.JSON(http.StatusOK, translateTextResponse{
		TranslatedText:         translated,
		SourceLanguage:         source,
		TargetLanguage:         req.TargetLanguage,
		DetectedSourceLanguage: detectedSource(source, req.Text),
	})
}

func (s *Server) handleTranslateMulti(c echo.Context) error {
	var req translateMultiRequest
	if err := decodeJSONBody(c, &req); err != nil {
		return failValidation(c, err.Error())
	}

	if strings.TrimSpace(req.Text) == "" {
		return failValidation(c, "text is required")
	}
	if err := validateTargetLanguages(s.catalog, req.TargetLanguages); err != nil {
		var unsupported *unsupportedLanguagesDetail
		if errors.As(err, &unsupported) {
			return failUnsupportedLanguages(c, s.catalog, unsupported.labels)
		}
		return failValidation(c, err.Error())
	}

	source := defaultSource(req.SourceLanguage)

	results, err := s.translator.TranslateMany(c.Request().Context(), req.Text, req.TargetLanguages, source)
	if err != nil {
		s.logger.Error().Err(err).Msg("multi-language translation failed")
		return internalError(c, "Translation failed")
	}

	// Failed languages carry a marker string in place of translated text so
	// the response shape stays uniform across partial failures.
	translations := make(map[string]string, len(results))
	for _, result := range results {
		translations[result.Language] = result.Marker()
	}

	return c.JSON(http.StatusOK, translateMultiResponse{
		Translations:           translations,
		SourceLanguage:         source,
		OriginalText:           req.Text,
		DetectedSourceLanguage: detectedSource(source, req.Text),
	})
}

type unsupportedLanguagesDetail struct {
	labels []string
}

func (e *unsupportedLanguagesDetail) Error() string {
	return fmt.Sprintf("unsupported languages: %s", strings.Join(e.labels, ", "))
}

func validateTargetLanguages(catalog *language.Catalog, labels []string) error {
	if len(labels) == 0 {
		return fmt.Errorf("at least one target language must be specified")
	}
	if len(labels) > maxTargetLanguages {
		return fmt.Errorf("a maximum of %d target languages are allowed per request", maxTargetLanguages)
	}
	if rejected := catalog.Unsupported(labels); len(rejected) > 0 {
		return &unsupportedLanguagesDetail{labels: rejected}
	}
	return nil
}

func failUnsupportedLanguages(c echo.Context, catalog *language.Catalog, labels []string) error {
	return failValidation(c, fmt.Sprintf(
		"Unsupported languages: %s. Supported: %s",
		strings.Join(labels, ", "),
		strings.Join(catalog.SupportedIdentifiers(), ", "),
	))
}

func defaultSource(raw string) string {
	source := strings.TrimSpace(raw)
	if source == "" {
		return language.Auto
	}
	return source
}

// detectedSource reports the detected source language for auto requests.
// Detection is best-effort metadata; an empty result is simply omitted.
func detectedSource(source, text string) string {
	if source != language.Auto {
		return ""
	}
	return langdetect.DetectISO6391(text)
}
