package worker

import (
	"strings"

	"github.com/wintera/fleet/internal/models"
)

// RenderTemplate substitutes recipient placeholders into a message
// template. {name} prefers first name, falls back to username.
func RenderTemplate(text string, m *models.AudienceMember) string {
	name := m.FirstName
	if name == "" {
		name = m.Username
	}

	replacer := strings.NewReplacer(
		"{first_name}", m.FirstName,
		"{last_name}", m.LastName,
		"{username}", m.Username,
		"{name}", name,
	)
	return replacer.Replace(text)
}
