package branding

// Merge overlays persisted on defaults. The top level is a shallow spread
// ({...defaults, ...persisted}); each of MergedSections and each of
// pages.{about,contact,privacy} is spread key by key, so a missing key
// takes the default while an explicit null or "" is kept. A persisted
// section that is null or not an object contributes nothing. Sections not
// listed are replaced wholesale by the persisted value.
//
// Neither input is modified and the result shares no maps with them.
func Merge(defaults, persisted Document) Document {
	out := make(Document, len(defaults)+len(persisted))
	for k, v := range defaults {
		out[k] = cloneValue(v)
	}
	for k, v := range persisted {
		out[k] = cloneValue(v)
	}

	for _, name := range MergedSections {
		out[name] = spread(defaults.Section(name), persisted.Section(name))
	}

	defaultPages := defaults.Section("pages")
	persistedPages := persisted.Section("pages")
	pages := spread(defaultPages, persistedPages)
	for _, name := range PageSections {
		d, _ := asObject(defaultPages[name])
		p, _ := asObject(persistedPages[name])
		pages[name] = spread(d, p)
	}
	out["pages"] = pages

	return out
}

func spread(base, over map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(over))
	for k, v := range base {
		out[k] = cloneValue(v)
	}
	for k, v := range over {
		out[k] = cloneValue(v)
	}
	return out
}
