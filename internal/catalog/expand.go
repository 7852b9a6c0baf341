package catalog

import "strings"

// Expand returns a copy of cat with {user} and {home} substituted in every path.
func (cat Category) Expand(user, home string) Category {
	r := strings.NewReplacer("{user}", user, "{home}", home)

	out := cat
	out.Excludes = append([]string(nil), cat.Excludes...)

	out.Sources = make([]Source, len(cat.Sources))
	for i, src := range cat.Sources {
		src.Path = r.Replace(src.Path)
		src.Excludes = append([]string(nil), src.Excludes...)
		out.Sources[i] = src
	}

	out.Restore.Items = make([]RestoreItem, len(cat.Restore.Items))
	for i, item := range cat.Restore.Items {
		item.To = r.Replace(item.To)
		out.Restore.Items[i] = item
	}
	out.Restore.PostModes = make([]PostMode, len(cat.Restore.PostModes))
	for i, pm := range cat.Restore.PostModes {
		pm.Path = r.Replace(pm.Path)
		out.Restore.PostModes[i] = pm
	}
	out.Restore.Services = append([]string(nil), cat.Restore.Services...)
	return out
}

// SourcePaths lists declared source paths in catalog order.
func (cat Category) SourcePaths() []string {
	out := make([]string, 0, len(cat.Sources))
	for _, src := range cat.Sources {
		out = append(out, src.Path)
	}
	return out
}

// AllExcludes lists category-wide excludes followed by per-source excludes,
// without duplicates, in declaration order.
func (cat Category) AllExcludes() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for _, ex := range cat.Excludes {
		add(ex)
	}
	for _, src := range cat.Sources {
		for _, ex := range src.Excludes {
			add(ex)
		}
	}
	return out
}
