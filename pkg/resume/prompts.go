package resume

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"resumetailor-hq/tailor/pkg/metadata"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var prompts = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

func render(name string, data any) (string, error) {
	var b strings.Builder
	if err := prompts.ExecuteTemplate(&b, name, data); err != nil {
		return "", fmt.Errorf("resume: render %s: %w", name, err)
	}
	return b.String(), nil
}

func scorePrompt(resumeText, jobDescription string) (string, error) {
	return render("score.tmpl", struct{ ResumeText, JobDescription string }{resumeText, jobDescription})
}

func structurePrompt(resumeText string) (string, error) {
	return render("structure.tmpl", struct{ ResumeText string }{resumeText})
}

func tailorPrompt(entries []metadata.Entry, jobDescription string) (string, error) {
	raw, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("resume: encode entries: %w", err)
	}
	return render("tailor.tmpl", struct{ EntriesJSON, JobDescription string }{string(raw), jobDescription})
}
