package api

import (
	"os"
	"strings"
)

// Branding holds the display customization served to the frontend. It is
// presentation-only and never reaches the store or the widget builder.
type Branding struct {
	Name           string   `json:"name"`
	Tagline        string   `json:"tagline"`
	LogoURL        string   `json:"logoUrl"`
	FaviconURL     string   `json:"faviconUrl"`
	PrimaryColor   string   `json:"primaryColor"`
	StarterPrompts []string `json:"starterPrompts,omitempty"`
	Features       []string `json:"features,omitempty"`
}

// BrandingFromEnv reads branding overrides from the environment, falling back
// to neutral defaults.
func BrandingFromEnv() Branding {
	b := Branding{
		Name:         "Todo Assistant",
		Tagline:      "Your tasks, one conversation away",
		PrimaryColor: "#2563eb",
	}
	if v := os.Getenv("BRAND_NAME"); v != "" {
		b.Name = v
	}
	if v := os.Getenv("BRAND_TAGLINE"); v != "" {
		b.Tagline = v
	}
	if v := os.Getenv("BRAND_LOGO_URL"); v != "" {
		b.LogoURL = v
	}
	if v := os.Getenv("BRAND_FAVICON_URL"); v != "" {
		b.FaviconURL = v
	}
	if v := os.Getenv("BRAND_PRIMARY_COLOR"); v != "" {
		b.PrimaryColor = v
	}
	b.StarterPrompts = splitList(os.Getenv("BRAND_STARTER_PROMPTS"))
	b.Features = splitList(os.Getenv("BRAND_FEATURES"))
	return b
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ";") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
