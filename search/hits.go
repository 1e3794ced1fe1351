package search

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

const presetMetadataID = "MassEditMetaData"

const (
	SelectorActor = "actor"
	SelectorOther = "other"
)

// WorldCollection is a world level (non compendium) collection that can be
// searched alongside compendium packs.
type WorldCollection struct {
	Collection   string
	Title        string // localisation key
	DocumentName string
}

// WorldCollections lists the searchable world collections in search order.
var WorldCollections = []WorldCollection{
	{Collection: "actors", Title: "DOCUMENT.Actors", DocumentName: "Actor"},
	{Collection: "cards", Title: "DOCUMENT.CardsPlural", DocumentName: "Cards"},
	{Collection: "items", Title: "DOCUMENT.Items", DocumentName: "Item"},
	{Collection: "tables", Title: "DOCUMENT.RollTables", DocumentName: "RollTable"},
	{Collection: "scenes", Title: "DOCUMENT.Scenes", DocumentName: "Scene"},
	{Collection: "journal", Title: "DOCUMENT.JournalEntries", DocumentName: "JournalEntry"},
}

// BackupIcons are used when neither the entry nor its document type has an image.
var BackupIcons = map[string]string{
	"JournalEntry": "icons/svg/book.svg",
	"Scene":        "icons/svg/ruins.svg",
}

// scope is one collection to scan, with the title shown in hit details.
type scope struct {
	title        string
	documentName string
	entries      []Entry
}

// scopes lists the collections eligible for a pass: world collections first
// (when included), then visible non-preset compendium packs, both restricted to
// the active type filters.
func scopes(host Host, filters []string, includeWorld bool) []scope {
	allowed := func(documentName string) bool {
		return len(filters) == 0 || lo.Contains(filters, documentName)
	}

	var out []scope
	if includeWorld {
		world := host.Localizer.Localize("PACKAGE.Type.world")
		for _, wc := range WorldCollections {
			if !allowed(wc.DocumentName) {
				continue
			}
			out = append(out, scope{
				title:        fmt.Sprintf("%s (%s)", host.Localizer.Localize(wc.Title), world),
				documentName: wc.DocumentName,
				entries:      host.Registry.World(wc.Collection),
			})
		}
	}

	for _, p := range host.Registry.Packs() {
		if !p.Visible || p.IsPreset() || !allowed(p.DocumentName) {
			continue
		}
		out = append(out, scope{title: p.Title, documentName: p.DocumentName, entries: p.Index})
	}
	return out
}

// hitTest appends a Hit for e when it matches every term.
func hitTest(host Host, e Entry, sc scope, terms []string, originalNames bool, hits []Hit) []Hit {
	matched := matchesAll(strings.ToLower(e.Name), terms)
	if !matched && originalNames {
		matched = matchesAll(strings.ToLower(e.OriginalName), terms)
	}
	if !matched {
		return hits
	}

	hit := Hit{
		Name:         e.Name,
		Details:      typeLabel(host, sc.documentName, e.Type) + " - " + sc.title,
		Thumbnail:    thumbnail(host.Types, sc.documentName, e),
		UUID:         e.UUID,
		ID:           e.ID,
		Selector:     SelectorOther,
		DocumentName: sc.documentName,
	}
	if originalNames {
		hit.OriginalName = e.OriginalName
	}
	if sc.documentName == "Actor" {
		hit.Selector = SelectorActor
	}
	return append(hits, hit)
}

// typeLabel is the localised subtype label for actors and items and the
// document name for everything else.
func typeLabel(host Host, documentName, subtype string) string {
	if documentName != "Actor" && documentName != "Item" {
		return documentName
	}
	key, ok := host.Types.TypeLabel(documentName, subtype)
	if !ok {
		key = host.Types.BaseLabel(documentName)
	}
	return host.Localizer.Localize(key)
}

func thumbnail(types DocumentTypes, documentName string, e Entry) string {
	for _, src := range []string{e.Img, e.Thumb, types.DefaultIcon(documentName), BackupIcons[documentName]} {
		if src != "" {
			return src
		}
	}
	return ""
}
