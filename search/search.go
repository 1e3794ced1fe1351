package search

import (
	"context"
	"errors"
)

var (
	ErrNotFound         = errors.New("document not found")
	ErrDragNotPermitted = errors.New("drag not permitted")
)

// Entry is a lightweight index summary of a document, owned by the registry.
type Entry struct {
	ID           string
	Name         string
	Type         string // document subtype, e.g. "npc"
	Img          string
	Thumb        string
	UUID         string
	OriginalName string // untranslated name, when a translation module provides one
}

// Pack is a compendium collection together with its index.
type Pack struct {
	Package      string
	Name         string
	Title        string
	DocumentName string
	Visible      bool
	Index        []Entry
}

// IsPreset reports whether the pack only holds Mass Edit preset metadata.
func (p Pack) IsPreset() bool {
	for _, e := range p.Index {
		if e.ID == presetMetadataID {
			return true
		}
	}
	return false
}

// Hit is one search result as handed to the hit templates.
type Hit struct {
	Name         string
	OriginalName string
	Details      string
	Thumbnail    string
	UUID         string
	ID           string
	Selector     string
	DocumentName string
}

// Rendering is the output of one completed filter pass.
type Rendering struct {
	Generation uint64
	Query      string
	HTML       string
	Hits       []Hit
}

// Document is a resolved document.
type Document struct {
	UUID         string
	ID           string
	Name         string
	DocumentName string
	Pack         string
	Source       []byte // raw JSON record
}

// ParsedUUID is the result of parsing a document UUID. Older hosts only fill
// DocumentType, newer ones fill Type.
type ParsedUUID struct {
	Type         string
	DocumentType string
	ID           string
}

// DragData is the payload put on the drag transfer as plain text.
type DragData struct {
	UUID string `json:"uuid"`
	Type string `json:"type"`
}

// MenuOption is one entry of a row context menu.
type MenuOption struct {
	Name      string
	Icon      string
	Condition func(uuid string) bool
	Callback  func(ctx context.Context, uuid string) error
}

// ContextMenu binds menu options to the rendered rows of one document kind.
type ContextMenu struct {
	DocumentName string
	Selector     string
	Options      []MenuOption
}

// Registry exposes the host's document collections.
type Registry interface {
	Packs() []Pack
	World(collection string) []Entry
}

// Resolver maps a UUID to a live document. A missing document is ErrNotFound.
type Resolver interface {
	FromUUID(ctx context.Context, uuid string) (*Document, error)
}

type UUIDParser interface {
	ParseUUID(uuid string) (ParsedUUID, error)
}

type Localizer interface {
	Localize(key string) string
}

// DocumentTypes is the host's per document type configuration.
type DocumentTypes interface {
	// TypeLabel returns the localisation key for a subtype, ok is false when
	// the subtype is unknown.
	TypeLabel(documentName, subtype string) (key string, ok bool)
	BaseLabel(documentName string) string
	DefaultIcon(documentName string) string
}

// Renderer renders a template identified by id. Templates must be loaded first.
type Renderer interface {
	Load(ctx context.Context, id string) error
	Render(ctx context.Context, id string, data any) (string, error)
}

// Permissions has one method per guarded action.
type Permissions interface {
	CanCreateToken() bool
}

type Settings interface {
	SearchWorldPacks() bool
}

// Opener opens the default view of a document by UUID.
type Opener interface {
	Open(ctx context.Context, uuid string) error
}

// Menus provides the host's existing entry context options for a document type.
type Menus interface {
	EntryContextOptions(documentName string, opener Opener) []MenuOption
}

// Handlers are the interaction handlers a panel binds to its rendered rows.
type Handlers interface {
	Opener
	DragStart(ctx context.Context, uuid string) (string, error)
	DragData(uuid string) (string, error)
	HitDragData(hit Hit) (string, error)
}

// Panel is the browser UI a session is attached to.
type Panel interface {
	Query() string
	ActiveFilters() []string
	Replace(r Rendering, h Handlers)
	OpenSheet(ctx context.Context, doc *Document) error
	AddContextMenu(m ContextMenu)
	CloseContextMenu()
}

// Host groups every collaborator the controller needs.
type Host struct {
	Registry    Registry
	Resolver    Resolver
	UUIDs       UUIDParser
	Localizer   Localizer
	Types       DocumentTypes
	Renderer    Renderer
	Permissions Permissions
	Settings    Settings
	Menus       Menus
	Scheduler   Scheduler
}
