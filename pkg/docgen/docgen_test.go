package docgen

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"github.com/joblinkhq/linkedin-agent/pkg/apierror"
)

// fakeModel returns a canned response for every prompt.
type fakeModel struct {
	response string
	err      error
	prompts  []string
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, msg := range messages {
		for _, part := range msg.Parts {
			if text, ok := part.(llms.TextContent); ok {
				m.prompts = append(m.prompts, text.Text)
			}
		}
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: m.response}},
	}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

var testProfile = map[string]any{
	"name":     "Jane Doe",
	"headline": "Staff Engineer",
	"skills":   []any{"Go", "SQL"},
	"experience": []any{
		map[string]any{"title": "Engineer", "company": "Acme", "duration": "2020-2024"},
	},
}

var testJob = map[string]any{
	"job_id":  "123",
	"title":   "Platform Engineer",
	"company": "Initech",
}

const modelResume = `{
	"summary": "Engineer with a decade of distributed-systems work.",
	"skills": ["Go", "Kubernetes"],
	"experience": [{"title": "Engineer", "company": "Acme", "duration": "2020-2024", "bullets": ["Shipped the thing"]}],
	"education": ["BSc Computer Science"]
}`

func newTestService(t *testing.T, model llms.Model) *Service {
	t.Helper()
	svc, err := NewService(model, t.TempDir())
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestGenerateResumeFromModelDraft(t *testing.T) {
	model := &fakeModel{response: modelResume}
	svc := newTestService(t, model)

	doc, err := svc.GenerateResume(context.Background(), testProfile, TemplateStandard, FormatHTML)
	if err != nil {
		t.Fatalf("GenerateResume: %v", err)
	}
	if doc.Kind != "resume" || doc.Format != FormatHTML {
		t.Fatalf("doc = %+v", doc)
	}

	data, err := os.ReadFile(doc.Path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, "Jane Doe") {
		t.Fatal("rendered resume missing name")
	}
	if !strings.Contains(out, "distributed-systems work") {
		t.Fatal("rendered resume missing model summary")
	}
	if !strings.Contains(out, "Shipped the thing") {
		t.Fatal("rendered resume missing experience bullet")
	}
}

func TestGenerateResumeStripsCodeFences(t *testing.T) {
	model := &fakeModel{response: "```json\n" + modelResume + "\n```"}
	svc := newTestService(t, model)

	doc, err := svc.GenerateResume(context.Background(), testProfile, TemplateModern, FormatText)
	if err != nil {
		t.Fatalf("GenerateResume: %v", err)
	}
	data, _ := os.ReadFile(doc.Path)
	if !strings.Contains(string(data), "distributed-systems work") {
		t.Fatal("fenced model output was not decoded")
	}
}

func TestGenerateResumeFallsBackWhenModelFails(t *testing.T) {
	model := &fakeModel{err: errors.New("provider down")}
	svc := newTestService(t, model)

	doc, err := svc.GenerateResume(context.Background(), testProfile, TemplateStandard, FormatText)
	if err != nil {
		t.Fatalf("GenerateResume: %v", err)
	}
	data, _ := os.ReadFile(doc.Path)
	out := string(data)
	if !strings.Contains(out, "Jane Doe") || !strings.Contains(out, "Acme") {
		t.Fatalf("fallback content missing profile data:\n%s", out)
	}
}

func TestGenerateResumeWithoutModel(t *testing.T) {
	svc := newTestService(t, nil)

	doc, err := svc.GenerateResume(context.Background(), testProfile, TemplateProfessional, FormatHTML)
	if err != nil {
		t.Fatalf("GenerateResume: %v", err)
	}
	data, _ := os.ReadFile(doc.Path)
	if !strings.Contains(string(data), "Staff Engineer") {
		t.Fatal("profile headline missing from fallback resume")
	}
}

func TestTailorResumeIncludesJobInPrompt(t *testing.T) {
	model := &fakeModel{response: modelResume}
	svc := newTestService(t, model)

	if _, err := svc.TailorResume(context.Background(), testProfile, testJob, TemplateStandard, FormatHTML); err != nil {
		t.Fatalf("TailorResume: %v", err)
	}
	if len(model.prompts) == 0 || !strings.Contains(model.prompts[0], "Platform Engineer") {
		t.Fatal("job posting missing from tailor prompt")
	}
}

func TestGenerateCoverLetter(t *testing.T) {
	model := &fakeModel{response: `{
		"greeting": "Dear Initech Team,",
		"paragraphs": ["I want this job.", "I am qualified.", "Please hire me."],
		"closing": "Sincerely,\nJane Doe"
	}`}
	svc := newTestService(t, model)

	doc, err := svc.GenerateCoverLetter(context.Background(), testProfile, testJob, TemplateModern, FormatText)
	if err != nil {
		t.Fatalf("GenerateCoverLetter: %v", err)
	}
	data, _ := os.ReadFile(doc.Path)
	out := string(data)
	if !strings.Contains(out, "Dear Initech Team,") || !strings.Contains(out, "I am qualified.") {
		t.Fatalf("cover letter content wrong:\n%s", out)
	}
}

func TestGenerateCoverLetterFallback(t *testing.T) {
	svc := newTestService(t, nil)

	doc, err := svc.GenerateCoverLetter(context.Background(), testProfile, testJob, TemplateStandard, FormatText)
	if err != nil {
		t.Fatalf("GenerateCoverLetter: %v", err)
	}
	data, _ := os.ReadFile(doc.Path)
	out := string(data)
	if !strings.Contains(out, "Platform Engineer") {
		t.Fatalf("fallback letter missing job title:\n%s", out)
	}
}

func TestValidateOptions(t *testing.T) {
	svc := newTestService(t, nil)
	ctx := context.Background()

	_, err := svc.GenerateResume(ctx, testProfile, "fancy", FormatHTML)
	if !apierror.IsKind(err, apierror.KindValidation) {
		t.Fatalf("bad template: err = %v, want VALIDATION_ERROR", err)
	}

	_, err = svc.GenerateResume(ctx, testProfile, TemplateStandard, "pdf")
	if !apierror.IsKind(err, apierror.KindValidation) {
		t.Fatalf("bad format: err = %v, want VALIDATION_ERROR", err)
	}
}
