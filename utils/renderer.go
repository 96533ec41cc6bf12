package utils

import (
	"fmt"
	"strings"

	"leadmailer/models"
)

// RenderTemplate substitutes {{token}} placeholders with lead data. Bodies
// are user-authored HTML, so this is plain token replacement, not a trusted
// Go template.
func RenderTemplate(content string, lead *models.Lead) string {
	firstName := lead.Name
	if idx := strings.IndexByte(firstName, ' '); idx > 0 {
		firstName = firstName[:idx]
	}

	r := strings.NewReplacer(
		"{{name}}", lead.Name,
		"{{first_name}}", firstName,
		"{{email}}", lead.Email,
		"{{nome}}", lead.Name, // legacy alias still present in stored templates
	)
	return r.Replace(content)
}

// WrapWithFooter appends the unsubscribe footer to an email body
func WrapWithFooter(html, unsubscribeURL string) string {
	footer := fmt.Sprintf(
		`<div style="margin-top:24px;padding-top:12px;border-top:1px solid #eee;font-size:12px;color:#7f8c8d;text-align:center">`+
			`<p>If you no longer wish to receive these emails, <a href="%s">unsubscribe here</a>.</p></div>`,
		unsubscribeURL,
	)
	return html + footer
}
