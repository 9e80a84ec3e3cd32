// Package docgen produces resumes and cover letters from profile data,
// drafted by a language model and rendered through local templates.
package docgen

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/llms"
)

const logPrefix = "docgen:service"

// resumeContent is the structured draft the model produces for a resume.
type resumeContent struct {
	Summary    string            `json:"summary"`
	Skills     []string          `json:"skills"`
	Experience []experienceEntry `json:"experience"`
	Education  []string          `json:"education"`
}

type experienceEntry struct {
	Title    string   `json:"title"`
	Company  string   `json:"company"`
	Duration string   `json:"duration"`
	Bullets  []string `json:"bullets"`
}

// coverLetterContent is the structured draft for a cover letter.
type coverLetterContent struct {
	Greeting   string   `json:"greeting"`
	Paragraphs []string `json:"paragraphs"`
	Closing    string   `json:"closing"`
}

const resumePrompt = `You are a professional resume writer. Using the profile data below,
write resume content. Respond with ONLY a JSON object, no prose, no code fences, with
exactly these keys: "summary" (string), "skills" (array of strings),
"experience" (array of objects with "title", "company", "duration", "bullets"),
"education" (array of strings).

Profile:
%s
`

const tailorPrompt = `You are a professional resume writer. Using the profile and the job
posting below, write resume content emphasizing the experience and skills most relevant
to this job. Respond with ONLY a JSON object, no prose, no code fences, with exactly
these keys: "summary" (string), "skills" (array of strings), "experience" (array of
objects with "title", "company", "duration", "bullets"), "education" (array of strings).

Profile:
%s

Job posting:
%s
`

const coverLetterPrompt = `You are a professional career writer. Using the profile and the
job posting below, write a concise cover letter. Respond with ONLY a JSON object, no
prose, no code fences, with exactly these keys: "greeting" (string), "paragraphs"
(array of strings, 3 to 4 paragraphs), "closing" (string).

Profile:
%s

Job posting:
%s
`

// draftJSON asks the model for structured content and decodes it. Models
// sometimes wrap JSON in code fences despite instructions; those are
// stripped before decoding.
func draftJSON(ctx context.Context, model llms.Model, prompt string, out any) error {
	raw, err := llms.GenerateFromSinglePrompt(ctx, model, prompt)
	if err != nil {
		return fmt.Errorf("%s - model call failed: %w", logPrefix, err)
	}

	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return fmt.Errorf("%s - model returned unparseable content: %w", logPrefix, err)
	}
	return nil
}

// fallbackResume builds serviceable content straight from the profile when
// no model is available or the draft fails.
func fallbackResume(profile map[string]any) *resumeContent {
	content := &resumeContent{}
	if headline, _ := profile["headline"].(string); headline != "" {
		content.Summary = headline
	}
	if summary, _ := profile["summary"].(string); summary != "" {
		content.Summary = summary
	}
	content.Skills = stringSlice(profile["skills"])

	for _, raw := range anySlice(profile["experience"]) {
		entry, _ := raw.(map[string]any)
		if entry == nil {
			continue
		}
		title, _ := entry["title"].(string)
		company, _ := entry["company"].(string)
		duration, _ := entry["duration"].(string)
		if title == "" && company == "" {
			continue
		}
		content.Experience = append(content.Experience, experienceEntry{
			Title:    title,
			Company:  company,
			Duration: duration,
		})
	}

	for _, raw := range anySlice(profile["education"]) {
		entry, _ := raw.(map[string]any)
		if entry == nil {
			continue
		}
		school, _ := entry["school"].(string)
		degree, _ := entry["degree"].(string)
		line := strings.TrimSpace(strings.TrimPrefix(degree+", "+school, ", "))
		line = strings.TrimSuffix(line, ", ")
		if line != "" {
			content.Education = append(content.Education, line)
		}
	}
	return content
}

func fallbackCoverLetter(profile, job map[string]any) *coverLetterContent {
	name, _ := profile["name"].(string)
	title, _ := job["title"].(string)
	company, _ := job["company"].(string)

	body := fmt.Sprintf("I am writing to express my interest in the %s position", title)
	if company != "" {
		body += " at " + company
	}
	body += "."

	about := "My background and experience align well with this role."
	if headline, _ := profile["headline"].(string); headline != "" {
		about = fmt.Sprintf("As a %s, my background aligns well with this role.", headline)
	}

	closing := "Sincerely,"
	if name != "" {
		closing = "Sincerely,\n" + name
	}
	return &coverLetterContent{
		Greeting:   "Dear Hiring Manager,",
		Paragraphs: []string{body, about, "I would welcome the opportunity to discuss how I can contribute to your team."},
		Closing:    closing,
	}
}

func stringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func anySlice(v any) []any {
	switch vv := v.(type) {
	case []any:
		return vv
	case []map[string]any:
		out := make([]any, 0, len(vv))
		for _, item := range vv {
			out = append(out, item)
		}
		return out
	}
	return nil
}

// compactJSON renders a record for prompt embedding.
func compactJSON(record map[string]any) string {
	data, err := json.Marshal(record)
	if err != nil {
		slog.Warn(fmt.Sprintf("%s - failed to encode record for prompt: %v", logPrefix, err))
		return "{}"
	}
	return string(data)
}
