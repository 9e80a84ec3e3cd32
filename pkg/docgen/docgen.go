package docgen

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/llms"

	"github.com/joblinkhq/linkedin-agent/pkg/apierror"
)

// Document describes one generated file on disk.
type Document struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"` // resume | cover_letter
	Path        string    `json:"path"`
	Template    string    `json:"template"`
	Format      string    `json:"format"`
	GeneratedAt time.Time `json:"generated_at"`
}

type Service struct {
	model  llms.Model
	outDir string
}

// NewService writes generated documents under outDir. model may be nil, in
// which case content is assembled directly from the profile data instead of
// drafted by a model.
func NewService(model llms.Model, outDir string) (*Service, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("%s - create output dir %s: %w", logPrefix, outDir, err)
	}
	return &Service{model: model, outDir: outDir}, nil
}

func validateOptions(templateName, format string) error {
	var bad []string
	if !validTemplate(templateName) {
		bad = append(bad, "template")
	}
	if format != FormatHTML && format != FormatText {
		bad = append(bad, "format")
	}
	if len(bad) > 0 {
		return apierror.Validation("Invalid parameters", bad...)
	}
	return nil
}

// GenerateResume produces a resume from the profile.
func (s *Service) GenerateResume(ctx context.Context, profile map[string]any, templateName, format string) (*Document, error) {
	if err := validateOptions(templateName, format); err != nil {
		return nil, err
	}

	content := s.draftResume(ctx, fmt.Sprintf(resumePrompt, compactJSON(profile)), profile)
	rendered, err := renderResume(profile, content, templateName, format)
	if err != nil {
		return nil, apierror.Internal("Failed to render resume", err)
	}
	return s.writeDocument("resume", rendered, templateName, format)
}

// TailorResume produces a resume emphasizing fit for one job posting.
func (s *Service) TailorResume(ctx context.Context, profile, job map[string]any, templateName, format string) (*Document, error) {
	if err := validateOptions(templateName, format); err != nil {
		return nil, err
	}

	content := s.draftResume(ctx, fmt.Sprintf(tailorPrompt, compactJSON(profile), compactJSON(job)), profile)
	rendered, err := renderResume(profile, content, templateName, format)
	if err != nil {
		return nil, apierror.Internal("Failed to render resume", err)
	}
	return s.writeDocument("resume", rendered, templateName, format)
}

// GenerateCoverLetter produces a cover letter for one job posting.
func (s *Service) GenerateCoverLetter(ctx context.Context, profile, job map[string]any, templateName, format string) (*Document, error) {
	if err := validateOptions(templateName, format); err != nil {
		return nil, err
	}

	content := &coverLetterContent{}
	if s.model != nil {
		err := draftJSON(ctx, s.model, fmt.Sprintf(coverLetterPrompt, compactJSON(profile), compactJSON(job)), content)
		if err != nil {
			slog.Warn(fmt.Sprintf("%s - cover letter draft failed, using fallback content: %v", logPrefix, err))
			content = nil
		}
	}
	if s.model == nil || content == nil || len(content.Paragraphs) == 0 {
		content = fallbackCoverLetter(profile, job)
	}

	rendered, err := renderCoverLetter(profile, content, templateName, format)
	if err != nil {
		return nil, apierror.Internal("Failed to render cover letter", err)
	}
	return s.writeDocument("cover_letter", rendered, templateName, format)
}

// draftResume runs the model draft and falls back to profile-derived content
// on any failure. Document generation should degrade, not break, when the
// model is unavailable.
func (s *Service) draftResume(ctx context.Context, prompt string, profile map[string]any) *resumeContent {
	if s.model == nil {
		return fallbackResume(profile)
	}
	content := &resumeContent{}
	if err := draftJSON(ctx, s.model, prompt, content); err != nil {
		slog.Warn(fmt.Sprintf("%s - resume draft failed, using fallback content: %v", logPrefix, err))
		return fallbackResume(profile)
	}
	if content.Summary == "" && len(content.Experience) == 0 && len(content.Skills) == 0 {
		return fallbackResume(profile)
	}
	return content
}

func (s *Service) writeDocument(kind, rendered, templateName, format string) (*Document, error) {
	id := uuid.NewString()
	path := filepath.Join(s.outDir, fmt.Sprintf("%s-%s.%s", kind, id, format))
	if err := os.WriteFile(path, []byte(rendered), 0o644); err != nil {
		return nil, apierror.Internal("Failed to write document", err)
	}

	slog.Info(fmt.Sprintf("%s - wrote %s %s", logPrefix, kind, path))
	return &Document{
		ID:          id,
		Kind:        kind,
		Path:        path,
		Template:    templateName,
		Format:      format,
		GeneratedAt: time.Now(),
	}, nil
}
