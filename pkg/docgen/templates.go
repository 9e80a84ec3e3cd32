package docgen

import (
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

// Template names accepted by the generation operations.
const (
	TemplateStandard     = "standard"
	TemplateModern       = "modern"
	TemplateProfessional = "professional"
)

// Output formats.
const (
	FormatHTML = "html"
	FormatText = "txt"
)

// templateStyles maps a template name to its accent color and font stack.
// The three styles share one HTML skeleton.
var templateStyles = map[string]struct {
	Accent string
	Font   string
}{
	TemplateStandard:     {Accent: "#2c3e50", Font: "Georgia, serif"},
	TemplateModern:       {Accent: "#0a66c2", Font: "'Helvetica Neue', Arial, sans-serif"},
	TemplateProfessional: {Accent: "#1a1a2e", Font: "'Times New Roman', serif"},
}

func validTemplate(name string) bool {
	_, ok := templateStyles[name]
	return ok
}

const resumeHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Name}} - Resume</title>
<style>
body { font-family: {{.Font}}; max-width: 800px; margin: 40px auto; color: #222; }
h1 { color: {{.Accent}}; margin-bottom: 0; }
h2 { color: {{.Accent}}; border-bottom: 2px solid {{.Accent}}; padding-bottom: 4px; }
.headline { color: #555; margin-top: 4px; }
.duration { color: #777; font-size: 0.9em; }
</style>
</head>
<body>
<h1>{{.Name}}</h1>
{{if .Headline}}<p class="headline">{{.Headline}}</p>{{end}}
{{if .Content.Summary}}<h2>Summary</h2><p>{{.Content.Summary}}</p>{{end}}
{{if .Content.Experience}}<h2>Experience</h2>
{{range .Content.Experience}}<div>
<strong>{{.Title}}</strong>{{if .Company}} — {{.Company}}{{end}}
{{if .Duration}}<span class="duration"> ({{.Duration}})</span>{{end}}
{{if .Bullets}}<ul>{{range .Bullets}}<li>{{.}}</li>{{end}}</ul>{{end}}
</div>{{end}}{{end}}
{{if .Content.Skills}}<h2>Skills</h2><p>{{join .Content.Skills ", "}}</p>{{end}}
{{if .Content.Education}}<h2>Education</h2><ul>{{range .Content.Education}}<li>{{.}}</li>{{end}}</ul>{{end}}
</body>
</html>
`

const resumeText = `{{.Name}}
{{if .Headline}}{{.Headline}}
{{end}}
{{if .Content.Summary}}SUMMARY
{{.Content.Summary}}

{{end}}{{if .Content.Experience}}EXPERIENCE
{{range .Content.Experience}}{{.Title}}{{if .Company}} - {{.Company}}{{end}}{{if .Duration}} ({{.Duration}}){{end}}
{{range .Bullets}}  * {{.}}
{{end}}{{end}}
{{end}}{{if .Content.Skills}}SKILLS
{{join .Content.Skills ", "}}

{{end}}{{if .Content.Education}}EDUCATION
{{range .Content.Education}}  {{.}}
{{end}}{{end}}`

const coverLetterHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Name}} - Cover Letter</title>
<style>
body { font-family: {{.Font}}; max-width: 700px; margin: 40px auto; color: #222; line-height: 1.6; }
.closing { white-space: pre-line; }
</style>
</head>
<body>
<p>{{.Content.Greeting}}</p>
{{range .Content.Paragraphs}}<p>{{.}}</p>
{{end}}<p class="closing">{{.Content.Closing}}</p>
</body>
</html>
`

const coverLetterText = `{{.Content.Greeting}}

{{range .Content.Paragraphs}}{{.}}

{{end}}{{.Content.Closing}}
`

type resumeView struct {
	Name     string
	Headline string
	Font     htmltemplate.CSS
	Accent   htmltemplate.CSS
	Content  *resumeContent
}

type coverLetterView struct {
	Name    string
	Font    htmltemplate.CSS
	Content *coverLetterContent
}

var joinFuncs = map[string]any{
	"join": strings.Join,
}

var (
	resumeHTMLTmpl      = htmltemplate.Must(htmltemplate.New("resume").Funcs(joinFuncs).Parse(resumeHTML))
	resumeTextTmpl      = texttemplate.Must(texttemplate.New("resume").Funcs(joinFuncs).Parse(resumeText))
	coverLetterHTMLTmpl = htmltemplate.Must(htmltemplate.New("coverletter").Parse(coverLetterHTML))
	coverLetterTextTmpl = texttemplate.Must(texttemplate.New("coverletter").Parse(coverLetterText))
)

func renderResume(profile map[string]any, content *resumeContent, templateName, format string) (string, error) {
	name, _ := profile["name"].(string)
	headline, _ := profile["headline"].(string)
	style := templateStyles[templateName]
	view := resumeView{
		Name:     name,
		Headline: headline,
		Font:     htmltemplate.CSS(style.Font),
		Accent:   htmltemplate.CSS(style.Accent),
		Content:  content,
	}

	var out strings.Builder
	var err error
	switch format {
	case FormatHTML:
		err = resumeHTMLTmpl.Execute(&out, view)
	case FormatText:
		err = resumeTextTmpl.Execute(&out, view)
	default:
		return "", fmt.Errorf("%s - unknown format %q", logPrefix, format)
	}
	if err != nil {
		return "", fmt.Errorf("%s - render resume: %w", logPrefix, err)
	}
	return out.String(), nil
}

func renderCoverLetter(profile map[string]any, content *coverLetterContent, templateName, format string) (string, error) {
	name, _ := profile["name"].(string)
	style := templateStyles[templateName]
	view := coverLetterView{
		Name:    name,
		Font:    htmltemplate.CSS(style.Font),
		Content: content,
	}

	var out strings.Builder
	var err error
	switch format {
	case FormatHTML:
		err = coverLetterHTMLTmpl.Execute(&out, view)
	case FormatText:
		err = coverLetterTextTmpl.Execute(&out, view)
	default:
		return "", fmt.Errorf("%s - unknown format %q", logPrefix, format)
	}
	if err != nil {
		return "", fmt.Errorf("%s - render cover letter: %w", logPrefix, err)
	}
	return out.String(), nil
}
