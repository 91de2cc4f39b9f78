package notify

import (
	htmltpl "html/template"
	"strings"
	texttpl "text/template"
)

type contributionView struct {
	Couple      string
	FundTitle   string
	Amount      string
	Currency    string
	Contributor string
	Message     string
	RegistryURL string
}

type resetView struct {
	Name string
	Link string
}

var (
	receiptHTML = htmltpl.Must(htmltpl.New("receipt").Parse(`<p>Thank you{{if .Contributor}}, {{.Contributor}}{{end}}!</p>
<p>Your gift of <strong>{{.Currency}} {{.Amount}}</strong> toward <em>{{.FundTitle}}</em> for {{.Couple}} has been received.</p>
{{if .Message}}<blockquote>{{.Message}}</blockquote>{{end}}
<p><a href="{{.RegistryURL}}">View the registry</a></p>`))
	receiptText = texttpl.Must(texttpl.New("receipt").Parse(`Thank you{{if .Contributor}}, {{.Contributor}}{{end}}!

Your gift of {{.Currency}} {{.Amount}} toward "{{.FundTitle}}" for {{.Couple}} has been received.
{{if .Message}}
Your message: {{.Message}}
{{end}}
{{.RegistryURL}}
`))

	ownerHTML = htmltpl.Must(htmltpl.New("owner").Parse(`<p>New contribution to <em>{{.FundTitle}}</em>.</p>
<p><strong>{{.Currency}} {{.Amount}}</strong> from {{if .Contributor}}{{.Contributor}}{{else}}an anonymous guest{{end}}.</p>
{{if .Message}}<blockquote>{{.Message}}</blockquote>{{end}}
<p><a href="{{.RegistryURL}}">Open your registry</a></p>`))
	ownerText = texttpl.Must(texttpl.New("owner").Parse(`New contribution to "{{.FundTitle}}".

{{.Currency}} {{.Amount}} from {{if .Contributor}}{{.Contributor}}{{else}}an anonymous guest{{end}}.
{{if .Message}}
Message: {{.Message}}
{{end}}
{{.RegistryURL}}
`))

	resetHTML = htmltpl.Must(htmltpl.New("reset").Parse(`<p>Hi {{.Name}},</p>
<p>Use the link below to choose a new password. It expires in one hour.</p>
<p><a href="{{.Link}}">Reset password</a></p>
<p>If you did not ask for this, ignore this email.</p>`))
	resetText = texttpl.Must(texttpl.New("reset").Parse(`Hi {{.Name}},

Use the link below to choose a new password. It expires in one hour.

{{.Link}}

If you did not ask for this, ignore this email.
`))
)

func render(h *htmltpl.Template, t *texttpl.Template, data any) (string, string, error) {
	var hb, tb strings.Builder
	if err := h.Execute(&hb, data); err != nil {
		return "", "", err
	}
	if err := t.Execute(&tb, data); err != nil {
		return "", "", err
	}
	return hb.String(), tb.String(), nil
}
