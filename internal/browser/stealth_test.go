package browser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xkilldash9x/flowpilot-cli/internal/config"
)

func TestPersonaFromConfigOverridesSelectively(t *testing.T) {
	p := PersonaFromConfig(config.StealthConfig{
		UserAgent: "CustomAgent/1.0",
		Timezone:  "Europe/Berlin",
	})

	assert.Equal(t, "CustomAgent/1.0", p.UserAgent)
	assert.Equal(t, "Europe/Berlin", p.Timezone)
	// Unset fields keep the default profile.
	assert.Equal(t, DefaultPersona.Platform, p.Platform)
	assert.Equal(t, DefaultPersona.Languages, p.Languages)
	assert.Equal(t, DefaultPersona.Locale, p.Locale)
}

func TestPersonaFromConfigEmptyIsDefault(t *testing.T) {
	assert.Equal(t, DefaultPersona, PersonaFromConfig(config.StealthConfig{}))
}

func TestAcceptLanguageHeader(t *testing.T) {
	assert.Equal(t, "en-US,en;q=0.9", acceptLanguage([]string{"en-US", "en"}))
	assert.Equal(t, "de-DE,de;q=0.9", acceptLanguage([]string{"de-DE", "de", "en"}))
	assert.Equal(t, "fr-FR", acceptLanguage([]string{"fr-FR"}))
	assert.Equal(t, "en-US,en;q=0.9", acceptLanguage(nil))
}

func TestEvasionsScriptEmbedded(t *testing.T) {
	assert.True(t, strings.Contains(evasionsScript, "webdriver"))
	assert.True(t, strings.Contains(evasionsScript, "plugins"))
}
