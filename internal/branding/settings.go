package branding

import (
	"strconv"
)

// Settings is the read-only typed view of a merged Document used by the
// presentation projector and the HTML/CSS renderers.
type Settings struct {
	PlatformName   string
	Tagline        string
	LogoURL        string
	FaviconURL     string
	PrimaryColor   string
	SecondaryColor string
	AccentColor    string
	SupportEmail   string
	SupportPhone   string

	// PWA is nil when the document has no pwa section.
	PWA *PWASettings
	SEO SEOSettings
}

// PWASettings holds the web app manifest overrides.
type PWASettings struct {
	AppName         string
	ShortName       string
	Description     string
	ThemeColor      string
	BackgroundColor string
}

// SEOSettings holds head metadata.
type SEOSettings struct {
	MetaTitle       string
	MetaDescription string
	MetaKeywords    string
	OGImage         string
}

// SettingsFrom builds the typed view. Missing or null fields are empty;
// numbers and booleans are formatted as text.
func SettingsFrom(doc Document) Settings {
	s := Settings{
		PlatformName:   text(doc, "platform_name"),
		Tagline:        text(doc, "tagline"),
		LogoURL:        text(doc, "logo_url"),
		FaviconURL:     text(doc, "favicon_url"),
		PrimaryColor:   text(doc, "primary_color"),
		SecondaryColor: text(doc, "secondary_color"),
		AccentColor:    text(doc, "accent_color"),
		SupportEmail:   text(doc, "support_email"),
		SupportPhone:   text(doc, "support_phone"),
	}
	if pwa, ok := asObject(doc["pwa"]); ok {
		s.PWA = &PWASettings{
			AppName:         text(pwa, "app_name"),
			ShortName:       text(pwa, "short_name"),
			Description:     text(pwa, "description"),
			ThemeColor:      text(pwa, "theme_color"),
			BackgroundColor: text(pwa, "background_color"),
		}
	}
	if seo, ok := asObject(doc["seo"]); ok {
		s.SEO = SEOSettings{
			MetaTitle:       text(seo, "meta_title"),
			MetaDescription: text(seo, "meta_description"),
			MetaKeywords:    text(seo, "meta_keywords"),
			OGImage:         text(seo, "og_image"),
		}
	}
	return s
}

func text(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}
