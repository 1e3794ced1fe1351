package tui

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/acarl005/stripansi"
	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/knipferrc/teacup/code"
	"github.com/noelzubin/compendium_search/editor"
	"github.com/noelzubin/compendium_search/search"
	"github.com/samber/lo"
)

var (
	ListStyle   = lipgloss.NewStyle().MarginTop(1)
	StatusStyle = lipgloss.NewStyle().Faint(true).PaddingLeft(2)
	MenuStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("62"))
)

// FilterTypes are cycled through with ctrl+f. The empty type shows everything.
var FilterTypes = []string{"", "Actor", "Item", "JournalEntry", "Scene", "RollTable", "Cards", "Macro", "Playlist", "Adventure"}

// Session is the part of a search session the model drives.
type Session interface {
	SetQuery(query string)
	Refresh()
}

// WorldToggle switches the search of world documents.
type WorldToggle interface {
	SearchWorldPacks() bool
	SetSearchWorldPacks(on bool) error
}

type Options struct {
	Editor      string       // command to open sheets with
	Placeholder string       // text of the empty search box
	World       WorldToggle  // nil when world documents are disabled
	Reload      func() error // rebuilds the document cache
}

// Main app model for bubbletea
type Model struct {
	ctx       context.Context
	width     int             // width of terminal
	height    int             // height of terminal
	preview   *code.Bubble    // the preview widget model
	sheet     string          // file shown in the preview
	list      list.Model      // the hits
	textInput textinput.Model // the input search widget model
	editor    editor.Editor   // for opening up external editor.

	session  Session
	panel    *Panel
	handlers search.Handlers
	opts     Options
	filter   int
	status   string

	menu     *list.Model // open context menu
	menuUUID string      // document the menu was opened on
}

// Create a new model for the app
func New(ctx context.Context, session Session, panel *Panel, opts Options) *Model {
	return &Model{
		ctx:       ctx,
		list:      create_list_model(),
		textInput: create_text_input(opts.Placeholder, panel.Query()),
		editor:    editor.Editor{Editing: false, EditorCmd: opts.Editor},
		session:   session,
		panel:     panel,
		opts:      opts,
	}
}

func (m *Model) setListSize() {
	width := m.width

	// If preview is open take half width
	if m.preview != nil {
		width = m.width / 2
	}

	m.list.SetSize(width, max(m.height-3, 0))
	if m.menu != nil {
		m.menu.SetSize(width/2, len(m.menu.Items())+2)
	}
}

func (m *Model) setPreviewSize() {
	if m.preview != nil {
		m.preview.SetSize(m.width/2, m.height-1)
	}
}

func (m *Model) updateSize(width, height int) {
	m.height = height
	m.width = width

	m.setListSize()
}

func (m Model) Init() tea.Cmd {
	return tea.EnterAltScreen
}

var spaces = regexp.MustCompile(`\s{2,}|\t+`)

// Formats a hit field for a single line: removes escapes, newlines and
// repeated spaces.
func formatLine(s string) string {
	s = stripansi.Strip(s)
	s = strings.ReplaceAll(s, "\n", " ")
	return spaces.ReplaceAllString(s, " ")
}

func (m Model) selected() (search.Hit, bool) {
	item, ok := m.list.SelectedItem().(hitItem)
	return item.Hit, ok
}

// The update fn for the bubbletea model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case ResultMsg:
		m.handlers = msg.Handlers
		m.list.SetItems(lo.Map(msg.Hits, func(hit search.Hit, _ int) list.Item {
			return hitItem{hit}
		}))
	case SheetMsg:
		codeModel := code.New(false, true, lipgloss.AdaptiveColor{Light: "#000000", Dark: "#ffffff"})
		m.preview = &codeModel
		m.sheet = msg.Path
		m.setPreviewSize()
		cmds = append(cmds, codeModel.SetFileName(msg.Path))
	case closeMenuMsg:
		m.menu = nil
	case statusMsg:
		m.status = string(msg)
	case editor.EditingFinished:
		if msg.Err != nil {
			m.status = msg.Err.Error()
		}
	case tea.KeyMsg:
		if m.menu != nil {
			return m.updateMenu(msg)
		}
		if next, cmd, ok := m.handleKey(msg); ok {
			return next, cmd
		}
	case tea.WindowSizeMsg:
		m.updateSize(msg.Width, msg.Height)
	}

	// Update the widgets sizes
	m.setListSize()
	m.setPreviewSize()

	// save to compare if changed
	oldValue := m.textInput.Value()

	// pass on message to the other components
	m.textInput, cmd = m.textInput.Update(msg)
	cmds = append(cmds, cmd)

	m.editor, cmd = m.editor.Update(msg)
	cmds = append(cmds, cmd)

	if m.preview != nil {
		var newPreview code.Bubble
		newPreview, cmd = m.preview.Update(msg)
		cmds = append(cmds, cmd)
		m.preview = &newPreview
	}

	// The session debounces; the result comes back as a ResultMsg.
	if newValue := m.textInput.Value(); oldValue != newValue {
		m.session.SetQuery(newValue)
	}

	return m, tea.Batch(cmds...)
}

// handleKey runs the keybindings. Keys it handles are not passed on to the
// text input.
//
// Keybindings:
// Tab - move down in the list
// Shift+Tab - move up in the list
// Enter - open the selected document
// Esc - close preview
// Ctrl+R - reload the documents
// Ctrl+K - Preview line up
// Ctrl+J - Preview line down
// Ctrl+O - Open the previewed sheet in the editor
// Ctrl+Y - copy the drag data of the selected document
// Ctrl+X - context menu of the selected document
// Ctrl+F - next document type filter
// Ctrl+T - toggle world documents
// Ctrl+C - quit the application
func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch msg.String() {
	case "tab":
		m.list.CursorDown()
	case "shift+tab":
		m.list.CursorUp()
	case "enter":
		hit, ok := m.selected()
		if !ok || m.handlers == nil {
			break
		}
		h := m.handlers
		return m, func() tea.Msg {
			if err := h.Open(m.ctx, hit.UUID); err != nil {
				return statusMsg(err.Error())
			}
			return nil
		}, true
	case "esc":
		m.preview = nil
		m.sheet = ""
		m.setListSize()
	case "ctrl+c":
		return m, tea.Quit, true
	case "ctrl+r":
		if m.opts.Reload == nil {
			break
		}
		reload := m.opts.Reload
		return m, func() tea.Msg {
			if err := reload(); err != nil {
				return statusMsg(err.Error())
			}
			m.session.Refresh()
			return statusMsg("reloaded")
		}, true
	case "ctrl+k":
		if m.preview != nil {
			m.preview.Viewport.LineUp(5)
		}
	case "ctrl+j":
		if m.preview != nil {
			m.preview.Viewport.LineDown(5)
		}
	case "ctrl+o":
		if m.sheet == "" {
			break
		}
		return m, m.editor.EditFile(m.sheet), true
	case "ctrl+y":
		hit, ok := m.selected()
		if !ok || m.handlers == nil {
			break
		}
		h := m.handlers
		return m, func() tea.Msg {
			data, err := h.DragStart(m.ctx, hit.UUID)
			if err != nil {
				return statusMsg(err.Error())
			}
			if err := clipboard.WriteAll(data); err != nil {
				return statusMsg(err.Error())
			}
			return statusMsg("copied " + data)
		}, true
	case "ctrl+x":
		hit, ok := m.selected()
		if !ok {
			break
		}
		menu, ok := m.panel.contextMenu(hit.DocumentName)
		if !ok {
			break
		}
		options := lo.Filter(menu.Options, func(o search.MenuOption, _ int) bool {
			return o.Condition == nil || o.Condition(hit.UUID)
		})
		if len(options) == 0 {
			break
		}
		l := create_menu_model(options)
		m.menu = &l
		m.menuUUID = hit.UUID
		m.setListSize()
	case "ctrl+f":
		m.filter = (m.filter + 1) % len(FilterTypes)
		m.panel.SetFilters(m.filters())
		m.session.Refresh()
	case "ctrl+t":
		if m.opts.World == nil {
			break
		}
		world := m.opts.World
		return m, func() tea.Msg {
			// the setting's change listener refreshes the session
			if err := world.SetSearchWorldPacks(!world.SearchWorldPacks()); err != nil {
				return statusMsg(err.Error())
			}
			return nil
		}, true
	default:
		log.Print(msg.String())
		return m, nil, false
	}
	return m, nil, true
}

func (m Model) filters() []string {
	if FilterTypes[m.filter] == "" {
		return nil
	}
	return []string{FilterTypes[m.filter]}
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.menu = nil
		return m, nil
	case "ctrl+c":
		return m, tea.Quit
	case "enter":
		item, ok := m.menu.SelectedItem().(menuItem)
		m.menu = nil
		if !ok {
			return m, nil
		}
		uuid := m.menuUUID
		return m, func() tea.Msg {
			if err := item.Callback(m.ctx, uuid); err != nil {
				return statusMsg(fmt.Sprintf("%s: %v", item.Name, err))
			}
			return statusMsg(item.Name + ": " + uuid)
		}
	}

	menu, cmd := m.menu.Update(msg)
	m.menu = &menu
	return m, cmd
}

func (m Model) statusLine() string {
	parts := []string{}
	if f := FilterTypes[m.filter]; f != "" {
		parts = append(parts, "type: "+f)
	}
	if m.opts.World != nil && m.opts.World.SearchWorldPacks() {
		parts = append(parts, "world")
	}
	if m.status != "" {
		parts = append(parts, formatLine(m.status))
	}
	return StatusStyle.Render(strings.Join(parts, " · "))
}

// View fn for bubbletea model
func (m Model) View() string {
	listContent := ListStyle.Render(m.list.View())
	if m.menu != nil {
		listContent = lipgloss.JoinVertical(lipgloss.Left, listContent, MenuStyle.Render(m.menu.View()))
	}

	// render list
	innerContent := listContent

	// if preview then preview takes up half the width
	if m.preview != nil {
		innerContent = lipgloss.JoinHorizontal(lipgloss.Left,
			listContent,      // render list
			m.preview.View(), // render preview.
		)
	}

	// render the input box, the content and the status
	return lipgloss.JoinVertical(
		lipgloss.Left,
		m.textInput.View(), // render the text input
		innerContent,       // render the main content
		m.statusLine(),
	)
}

// hitItem implements list.Item interface
type hitItem struct {
	search.Hit
}

func (h hitItem) Title() string {
	name := formatLine(h.Name)
	if h.OriginalName != "" {
		name += " (" + formatLine(h.OriginalName) + ")"
	}
	return name
}
func (h hitItem) Description() string { return formatLine(h.Details) }
func (h hitItem) FilterValue() string { return "" }

// menuItem implements list.Item interface
type menuItem struct {
	search.MenuOption
}

func (o menuItem) Title() string       { return o.Name }
func (o menuItem) Description() string { return "" }
func (o menuItem) FilterValue() string { return "" }

// Create the list model
func create_list_model() list.Model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.SetShowFilter(false)
	l.SetShowHelp(false)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.Styles.NoItems = l.Styles.NoItems.Copy().PaddingLeft(2)
	return l
}

func create_menu_model(options []search.MenuOption) list.Model {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	delegate.SetSpacing(0)
	l := list.New(lo.Map(options, func(o search.MenuOption, _ int) list.Item {
		return menuItem{o}
	}), delegate, 20, len(options)+2)
	l.SetShowFilter(false)
	l.SetShowHelp(false)
	l.SetShowTitle(false)
	l.SetShowStatusBar(false)
	l.SetShowPagination(false)
	return l
}

// Create the text input model
func create_text_input(placeholder, value string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "Search:"
	ti.PromptStyle = lipgloss.NewStyle().
		Background(lipgloss.Color("62")).
		Foreground(lipgloss.Color("230")).
		MarginRight(1).
		MarginLeft(2).
		Padding(0, 1)
	ti.SetValue(value)
	ti.Focus()
	return ti
}
