package editor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/noelzubin/compendium_search/search"
)

type Editor struct {
	Editing   bool   // Is the editor open
	EditorCmd string // Command to open the editor on shell
}

// Msg for when editor is closed.
type EditingFinished struct {
	Err error
}

// this opens up an external editor.
func openEditor(app string, args ...string) tea.Cmd {
	return tea.ExecProcess(exec.Command(app, args...), func(err error) tea.Msg {
		return EditingFinished{Err: err}
	})
}

func (m *Editor) Init() tea.Cmd {
	return nil
}

func (m *Editor) EditFile(filepath string) tea.Cmd {
	if m.EditorCmd == "" {
		return func() tea.Msg {
			return EditingFinished{Err: fmt.Errorf("no editor configured")}
		}
	}
	m.Editing = true
	fields := strings.Fields(m.EditorCmd)
	return openEditor(fields[0], append(fields[1:], filepath)...)
}

func (m Editor) Update(msg tea.Msg) (Editor, tea.Cmd) {
	switch msg.(type) {
	case EditingFinished:
		m.Editing = false
		return m, nil
	}

	return m, nil
}

// Doesnt render anything
func (m Editor) View() string {
	return ""
}

// WriteSheet writes the document as indented JSON into dir and returns the
// file path. The same document always maps to the same file.
func WriteSheet(dir string, doc *search.Document) (string, error) {
	var b bytes.Buffer
	if err := json.Indent(&b, doc.Source, "", "  "); err != nil {
		return "", fmt.Errorf("formatting %s: %w", doc.UUID, err)
	}
	b.WriteByte('\n')

	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	name := strings.NewReplacer("/", "_", ".", "_").Replace(doc.UUID) + ".json"
	file := filepath.Join(dir, name)
	if err := os.WriteFile(file, b.Bytes(), 0600); err != nil {
		return "", err
	}
	return file, nil
}
