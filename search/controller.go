package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/samber/lo"
)

const (
	HitsTemplate    = "modules/compendium-search/templates/document-hits.html"
	PartialTemplate = "modules/compendium-search/templates/document-partial.html"

	DefaultDelay = 250 * time.Millisecond
)

// Features toggles the optional behaviours of the search.
type Features struct {
	WorldPacks    bool // allow world collections to be searched (still gated by the setting)
	DragDrop      bool
	ContextMenus  bool
	OriginalNames bool // match the untranslated name as well
}

// Full enables every feature.
func Full() Features {
	return Features{WorldPacks: true, DragDrop: true, ContextMenus: true, OriginalNames: true}
}

// Minimal is the plain search bar: no drag and drop, no menus, compendiums only.
func Minimal() Features {
	return Features{}
}

type Options struct {
	Delay    time.Duration
	Features Features
}

// Controller attaches search sessions to rendered panels.
type Controller struct {
	host Host
	opts Options
}

func NewController(host Host, opts Options) *Controller {
	if host.Scheduler == nil {
		host.Scheduler = TimerScheduler{}
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	return &Controller{host: host, opts: opts}
}

// Attach is called every time the host renders a panel. It loads the hit
// templates, registers row context menus and runs the panel's current query.
func (c *Controller) Attach(ctx context.Context, panel Panel) (*Session, error) {
	for _, id := range []string{HitsTemplate, PartialTemplate} {
		if err := c.host.Renderer.Load(ctx, id); err != nil {
			return nil, fmt.Errorf("loading template %s: %w", id, err)
		}
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Session{host: c.host, opts: c.opts, panel: panel, ctx: sctx, cancel: cancel}

	if c.opts.Features.ContextMenus && c.host.Menus != nil {
		for _, wc := range WorldCollections {
			panel.AddContextMenu(ContextMenu{
				DocumentName: wc.DocumentName,
				Selector:     fmt.Sprintf(`[data-document-name="%s"]`, wc.DocumentName),
				Options:      c.host.Menus.EntryContextOptions(wc.DocumentName, s),
			})
		}
	}

	s.SetQuery(panel.Query())
	return s, nil
}

// Session is the search state of one attached panel.
type Session struct {
	host   Host
	opts   Options
	panel  Panel
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	query   string
	pending Handle
	started uint64    // generation of the newest pass
	current Rendering // what the panel shows

	renderMu sync.Mutex // orders the stale check with Panel.Replace
}

// SetQuery stores the query and (re)schedules the single pending filter pass.
func (s *Session) SetQuery(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.query = text
	s.schedule()
}

// Refresh reruns the current query after the usual delay.
func (s *Session) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedule()
}

func (s *Session) schedule() {
	if s.pending != nil {
		s.pending.Cancel()
		s.pending = nil
	}
	if s.ctx.Err() != nil {
		return
	}
	s.pending = s.host.Scheduler.Schedule(s.opts.Delay, func() { s.Run(s.ctx) })
}

func (s *Session) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Current returns the rendering the panel shows.
func (s *Session) Current() Rendering {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Run performs one filter pass for the current query and renders it.
// The generation is taken before filtering so a slow older pass can never
// replace the output of a newer one.
func (s *Session) Run(ctx context.Context) {
	s.mu.Lock()
	query := s.query
	s.started++
	gen := s.started
	s.mu.Unlock()

	hits, ok := s.Filter(query)
	if !ok {
		return
	}
	s.renderHits(ctx, gen, query, hits)
}

// Filter returns the hits for query. ok is false when the query has no usable
// terms, in which case nothing should be rendered.
func (s *Session) Filter(query string) (hits []Hit, ok bool) {
	terms, state := Terms(query)
	switch state {
	case ShortQuery:
		return []Hit{}, true
	case NoTerms:
		return nil, false
	}

	includeWorld := s.opts.Features.WorldPacks && s.host.Settings != nil && s.host.Settings.SearchWorldPacks()

	hits = []Hit{}
	for _, sc := range scopes(s.host, s.panel.ActiveFilters(), includeWorld) {
		for _, e := range sc.entries {
			hits = hitTest(s.host, e, sc, terms, s.opts.Features.OriginalNames, hits)
		}
	}
	return hits, true
}

func (s *Session) renderHits(ctx context.Context, gen uint64, query string, hits []Hit) {
	html, err := s.host.Renderer.Render(ctx, HitsTemplate, map[string]any{"hits": hits})
	if err != nil {
		log.Printf("rendering hits for %q: %v", query, err)
		return
	}

	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	s.mu.Lock()
	if gen != s.started {
		s.mu.Unlock()
		return
	}
	r := Rendering{Generation: gen, Query: query, HTML: html, Hits: hits}
	s.current = r
	s.mu.Unlock()

	s.panel.Replace(r, s)
}

// Open resolves uuid and opens the document sheet. Unknown documents are ignored.
func (s *Session) Open(ctx context.Context, uuid string) error {
	doc, err := s.host.Resolver.FromUUID(ctx, uuid)
	if errors.Is(err, ErrNotFound) || (err == nil && doc == nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolving %s: %w", uuid, err)
	}
	return s.panel.OpenSheet(ctx, doc)
}

// DragStart closes any open context menu and returns the drag payload.
func (s *Session) DragStart(ctx context.Context, uuid string) (string, error) {
	s.panel.CloseContextMenu()
	return s.DragData(uuid)
}

// DragData returns the plain text drag payload for a rendered hit. Actor rows
// need the token creation permission.
func (s *Session) DragData(uuid string) (string, error) {
	hit, found := lo.Find(s.Current().Hits, func(h Hit) bool { return h.UUID == uuid })
	if !found {
		return "", fmt.Errorf("%s: %w", uuid, ErrNotFound)
	}
	return s.HitDragData(hit)
}

// HitDragData is DragData for a hit the caller already holds.
func (s *Session) HitDragData(hit Hit) (string, error) {
	if !s.opts.Features.DragDrop {
		return "", ErrDragNotPermitted
	}
	if hit.Selector == SelectorActor && (s.host.Permissions == nil || !s.host.Permissions.CanCreateToken()) {
		return "", ErrDragNotPermitted
	}

	parsed, err := s.host.UUIDs.ParseUUID(hit.UUID)
	if err != nil {
		return "", fmt.Errorf("parsing %s: %w", hit.UUID, err)
	}
	typ := parsed.Type
	if typ == "" {
		typ = parsed.DocumentType
	}

	data, err := json.Marshal(DragData{UUID: hit.UUID, Type: typ})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Close cancels pending work. The session is unusable afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		s.pending.Cancel()
		s.pending = nil
	}
	s.cancel()
}
