package search

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

type fakeRegistry struct {
	packs []Pack
	world map[string][]Entry
}

func (r *fakeRegistry) Packs() []Pack { return r.packs }
func (r *fakeRegistry) World(collection string) []Entry { return r.world[collection] }

type fakeLocalizer map[string]string

func (l fakeLocalizer) Localize(key string) string {
	if v, ok := l[key]; ok {
		return v
	}
	return key
}

type fakeTypes struct {
	labels map[string]map[string]string
	icons  map[string]string
}

func (t fakeTypes) TypeLabel(documentName, subtype string) (string, bool) {
	key, ok := t.labels[documentName][subtype]
	return key, ok
}

func (t fakeTypes) BaseLabel(documentName string) string {
	return "TYPES." + documentName + ".base"
}

func (t fakeTypes) DefaultIcon(documentName string) string { return t.icons[documentName] }

// fakeRenderer renders hits as "name|name|..." and can be held to simulate a
// slow template engine.
type fakeRenderer struct {
	mu      sync.Mutex
	loaded  map[string]bool
	calls   int
	hold    map[string]chan struct{} // first hit name -> release
	loadErr error
}

func (r *fakeRenderer) Load(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loadErr != nil {
		return r.loadErr
	}
	if r.loaded == nil {
		r.loaded = map[string]bool{}
	}
	r.loaded[id] = true
	return nil
}

func (r *fakeRenderer) Render(_ context.Context, id string, data any) (string, error) {
	r.mu.Lock()
	if !r.loaded[id] {
		r.mu.Unlock()
		return "", fmt.Errorf("template %s not loaded", id)
	}
	r.calls++
	hits := data.(map[string]any)["hits"].([]Hit)
	var names []string
	for _, h := range hits {
		names = append(names, h.Name)
	}
	var wait chan struct{}
	if len(names) > 0 {
		wait = r.hold[names[0]]
	}
	r.mu.Unlock()

	if wait != nil {
		<-wait
	}
	return strings.Join(names, "|"), nil
}

type fakePermissions struct{ token bool }

func (p fakePermissions) CanCreateToken() bool { return p.token }

type fakeSettings struct{ world bool }

func (s *fakeSettings) SearchWorldPacks() bool { return s.world }

type fakeResolver map[string]*Document

func (r fakeResolver) FromUUID(_ context.Context, uuid string) (*Document, error) {
	if d, ok := r[uuid]; ok {
		return d, nil
	}
	return nil, ErrNotFound
}

type fakeUUIDs struct{ packTypes map[string]string }

func (u fakeUUIDs) ParseUUID(uuid string) (ParsedUUID, error) {
	return ParseUUID(uuid, func(c string) string { return u.packTypes[c] })
}

type fakeMenus struct{}

func (fakeMenus) EntryContextOptions(documentName string, opener Opener) []MenuOption {
	return []MenuOption{{
		Name: "SIDEBAR.Edit",
		Callback: func(ctx context.Context, uuid string) error {
			return opener.Open(ctx, uuid)
		},
	}}
}

type fakePanel struct {
	mu         sync.Mutex
	query      string
	filters    []string
	renderings []Rendering
	handlers   Handlers
	sheets     []*Document
	menus      []ContextMenu
	menuClosed int
}

func (p *fakePanel) Query() string { return p.query }

func (p *fakePanel) ActiveFilters() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filters
}

func (p *fakePanel) Replace(r Rendering, h Handlers) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.renderings = append(p.renderings, r)
	p.handlers = h
}

func (p *fakePanel) OpenSheet(_ context.Context, doc *Document) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sheets = append(p.sheets, doc)
	return nil
}

func (p *fakePanel) AddContextMenu(m ContextMenu) { p.menus = append(p.menus, m) }

func (p *fakePanel) CloseContextMenu() { p.menuClosed++ }

func (p *fakePanel) rendered() []Rendering {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Rendering(nil), p.renderings...)
}

// manualScheduler runs tasks only when fired.
type manualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

type manualTask struct {
	delay     time.Duration
	fn        func()
	cancelled bool
	ran       bool
}

func (t *manualTask) Cancel() bool {
	if t.ran {
		return false
	}
	t.cancelled = true
	return true
}

func (s *manualScheduler) Schedule(delay time.Duration, fn func()) Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTask{delay: delay, fn: fn}
	s.tasks = append(s.tasks, t)
	return t
}

// fire runs every live task and returns how many ran.
func (s *manualScheduler) fire() int {
	s.mu.Lock()
	var live []*manualTask
	for _, t := range s.tasks {
		if !t.cancelled && !t.ran {
			t.ran = true
			live = append(live, t)
		}
	}
	s.mu.Unlock()

	for _, t := range live {
		t.fn()
	}
	return len(live)
}

func (s *manualScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.cancelled && !t.ran {
			n++
		}
	}
	return n
}

func monstersHost() (Host, *fakeRegistry, *manualScheduler, *fakeSettings) {
	reg := &fakeRegistry{
		packs: []Pack{
			{
				Package: "world", Name: "monsters", Title: "Monsters", DocumentName: "Actor", Visible: true,
				Index: []Entry{
					{ID: "1", Name: "Goblin Scout", Type: "npc", UUID: "Compendium.world.monsters.1"},
					{ID: "2", Name: "Goblin Boss", Type: "npc", Img: "boss.webp", UUID: "Compendium.world.monsters.2"},
					{ID: "3", Name: "Hobgoblin", Type: "character", UUID: "Compendium.world.monsters.3"},
				},
			},
			{
				Package: "world", Name: "gear", Title: "Gear", DocumentName: "Item", Visible: true,
				Index: []Entry{
					{ID: "4", Name: "Goblin Scout Bow", Type: "weapon", UUID: "Compendium.world.gear.4"},
					{ID: "5", Name: "Espada Corta", OriginalName: "Shortsword", Type: "weapon", UUID: "Compendium.world.gear.5"},
				},
			},
			{
				Package: "world", Name: "secret", Title: "Secret", DocumentName: "Actor", Visible: false,
				Index: []Entry{{ID: "6", Name: "Goblin Scout", Type: "npc", UUID: "Compendium.world.secret.6"}},
			},
			{
				Package: "massedit", Name: "presets", Title: "Presets", DocumentName: "Actor", Visible: true,
				Index: []Entry{
					{ID: presetMetadataID, Name: "Mass Edit"},
					{ID: "7", Name: "Goblin Scout Preset", UUID: "Compendium.massedit.presets.7"},
				},
			},
		},
		world: map[string][]Entry{
			"actors":  {{ID: "a1", Name: "Goblin Scout Bob", Type: "npc", UUID: "Actor.a1"}},
			"journal": {{ID: "j1", Name: "Goblin Scouting Notes", UUID: "JournalEntry.j1"}},
		},
	}
	sched := &manualScheduler{}
	settings := &fakeSettings{}
	host := Host{
		Registry: reg,
		Resolver: fakeResolver{
			"Compendium.world.monsters.1": {UUID: "Compendium.world.monsters.1", Name: "Goblin Scout", DocumentName: "Actor"},
		},
		UUIDs: fakeUUIDs{packTypes: map[string]string{"world.monsters": "Actor", "world.gear": "Item"}},
		Localizer: fakeLocalizer{
			"TYPES.Actor.npc":         "NPC",
			"TYPES.Actor.base":        "Actor",
			"TYPES.Item.weapon":       "Weapon",
			"TYPES.Item.base":         "Item",
			"DOCUMENT.Actors":         "Actors",
			"DOCUMENT.JournalEntries": "Journal Entries",
			"PACKAGE.Type.world":      "World",
		},
		Types: fakeTypes{
			labels: map[string]map[string]string{
				"Actor": {"npc": "TYPES.Actor.npc"},
				"Item":  {"weapon": "TYPES.Item.weapon"},
			},
			icons: map[string]string{"Actor": "icons/svg/mystery-man.svg"},
		},
		Renderer:    &fakeRenderer{},
		Permissions: fakePermissions{token: true},
		Settings:    settings,
		Menus:       fakeMenus{},
		Scheduler:   sched,
	}
	return host, reg, sched, settings
}
