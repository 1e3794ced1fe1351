package web

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/noelzubin/compendium_search/search"
)

// Messages sent to the browser.
type hitsMsg struct {
	Type       string            `json:"type"`
	Generation uint64            `json:"generation"`
	Query      string            `json:"query"`
	HTML       string            `json:"html"`
	Drag       map[string]string `json:"drag"` // uuid -> drag payload
}

type menuMsg struct {
	DocumentName string `json:"documentName"`
	Selector     string `json:"selector"`
}

type menusMsg struct {
	Type  string    `json:"type"`
	Menus []menuMsg `json:"menus"`
}

type optionMsg struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Icon  string `json:"icon,omitempty"`
}

type optionsMsg struct {
	Type    string      `json:"type"`
	UUID    string      `json:"uuid"`
	Options []optionMsg `json:"options"`
}

type sheetMsg struct {
	Type         string          `json:"type"`
	UUID         string          `json:"uuid"`
	Name         string          `json:"name"`
	DocumentName string          `json:"documentName"`
	Source       json.RawMessage `json:"source"`
}

type dragMsg struct {
	Type string `json:"type"`
	UUID string `json:"uuid"`
	Data string `json:"data"`
}

type textMsg struct {
	Type    string `json:"type"`
	Session string `json:"session,omitempty"`
	Error   string `json:"error,omitempty"`
}

// panel is the browser side of one websocket connection.
type panel struct {
	id    string
	query string

	writeMu sync.Mutex
	conn    *websocket.Conn

	mu       sync.Mutex
	filters  []string
	handlers search.Handlers
	menus    []search.ContextMenu
}

func (p *panel) write(v any) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.conn.WriteJSON(v)
}

func (p *panel) Query() string {
	return p.query
}

func (p *panel) ActiveFilters() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filters
}

func (p *panel) setFilters(filters []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filters = filters
}

// Replace sends the rendered hits with the drag payload of every row; the
// browser has to set the drag data synchronously when a drag starts.
func (p *panel) Replace(r search.Rendering, h search.Handlers) {
	p.mu.Lock()
	p.handlers = h
	p.mu.Unlock()

	drag := map[string]string{}
	for _, hit := range r.Hits {
		if data, err := h.HitDragData(hit); err == nil {
			drag[hit.UUID] = data
		}
	}
	p.write(hitsMsg{Type: "hits", Generation: r.Generation, Query: r.Query, HTML: r.HTML, Drag: drag})
}

func (p *panel) currentHandlers() search.Handlers {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.handlers
}

func (p *panel) OpenSheet(_ context.Context, doc *search.Document) error {
	p.write(sheetMsg{Type: "sheet", UUID: doc.UUID, Name: doc.Name, DocumentName: doc.DocumentName, Source: doc.Source})
	return nil
}

func (p *panel) AddContextMenu(m search.ContextMenu) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.menus = append(p.menus, m)
}

func (p *panel) menu(documentName string) (search.ContextMenu, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, m := range p.menus {
		if m.DocumentName == documentName {
			return m, true
		}
	}
	return search.ContextMenu{}, false
}

func (p *panel) sendMenus() {
	p.mu.Lock()
	msg := menusMsg{Type: "menus", Menus: []menuMsg{}}
	for _, m := range p.menus {
		msg.Menus = append(msg.Menus, menuMsg{DocumentName: m.DocumentName, Selector: m.Selector})
	}
	p.mu.Unlock()
	p.write(msg)
}

func (p *panel) CloseContextMenu() {
	p.write(textMsg{Type: "closeMenu"})
}
