package utils

import (
	"testing"

	"leadmailer/models"

	"github.com/stretchr/testify/assert"
)

func TestRenderTemplate(t *testing.T) {
	lead := &models.Lead{Name: "Maria Silva", Email: "maria@example.com"}

	out := RenderTemplate("Hi {{first_name}} ({{name}}), we emailed {{email}}", lead)
	assert.Equal(t, "Hi Maria (Maria Silva), we emailed maria@example.com", out)
}

func TestRenderTemplateLegacyAlias(t *testing.T) {
	lead := &models.Lead{Name: "Maria", Email: "maria@example.com"}
	assert.Equal(t, "Oi Maria", RenderTemplate("Oi {{nome}}", lead))
}

func TestRenderTemplateSingleWordName(t *testing.T) {
	lead := &models.Lead{Name: "Maria", Email: "maria@example.com"}
	assert.Equal(t, "Maria", RenderTemplate("{{first_name}}", lead))
}

func TestWrapWithFooter(t *testing.T) {
	out := WrapWithFooter("<p>body</p>", "https://app.example.com/unsubscribe/tok")
	assert.Contains(t, out, "<p>body</p>")
	assert.Contains(t, out, `href="https://app.example.com/unsubscribe/tok"`)
	assert.Contains(t, out, "unsubscribe here")
}
