package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/noelzubin/compendium_search/editor"
	"github.com/noelzubin/compendium_search/search"
)

// Panel is the terminal side of a search session. Session callbacks are
// turned into messages for the bubbletea program.
type Panel struct {
	sheetDir string

	mu      sync.Mutex
	program *tea.Program
	pending []tea.Msg
	query   string
	filters []string
	menus   map[string]search.ContextMenu
}

func NewPanel(sheetDir, query string) *Panel {
	return &Panel{sheetDir: sheetDir, query: query, menus: map[string]search.ContextMenu{}}
}

// SetProgram connects the panel to the running program and delivers the
// messages sent before it was running.
func (p *Panel) SetProgram(program *tea.Program) {
	p.mu.Lock()
	p.program = program
	pending := p.pending
	p.pending = nil
	p.mu.Unlock()

	if len(pending) > 0 {
		go func() {
			for _, msg := range pending {
				program.Send(msg)
			}
		}()
	}
}

func (p *Panel) send(msg tea.Msg) {
	p.mu.Lock()
	program := p.program
	if program == nil {
		p.pending = append(p.pending, msg)
	}
	p.mu.Unlock()

	if program != nil {
		program.Send(msg)
	}
}

func (p *Panel) Query() string {
	return p.query
}

func (p *Panel) ActiveFilters() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.filters
}

func (p *Panel) SetFilters(filters []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filters = filters
}

func (p *Panel) Replace(r search.Rendering, h search.Handlers) {
	p.send(ResultMsg{Rendering: r, Handlers: h})
}

// OpenSheet writes the document to a sheet file and shows it in the preview.
func (p *Panel) OpenSheet(_ context.Context, doc *search.Document) error {
	file, err := editor.WriteSheet(p.sheetDir, doc)
	if err != nil {
		return err
	}
	p.send(SheetMsg{Doc: doc, Path: file})
	return nil
}

func (p *Panel) AddContextMenu(m search.ContextMenu) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.menus[m.DocumentName] = m
}

func (p *Panel) contextMenu(documentName string) (search.ContextMenu, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.menus[documentName]
	return m, ok
}

func (p *Panel) CloseContextMenu() {
	p.send(closeMenuMsg{})
}

// ResultMsg is emitted when a search pass has been rendered.
type ResultMsg struct {
	search.Rendering
	Handlers search.Handlers
}

// SheetMsg asks the model to preview a document sheet.
type SheetMsg struct {
	Doc  *search.Document
	Path string
}

type closeMenuMsg struct{}

type statusMsg string
