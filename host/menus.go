package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/noelzubin/compendium_search/search"
)

var ErrNotPermitted = errors.New("not permitted")

// exportName keeps document fields from leaving the export directory.
var exportName = strings.NewReplacer("/", "_", "\\", "_", ".", "_")

// Menus builds the entry context options of the document directories.
type Menus struct {
	Localizer   search.Localizer
	Resolver    search.Resolver
	Permissions Permissions
	ExportDir   string
}

func (m Menus) EntryContextOptions(documentName string, opener search.Opener) []search.MenuOption {
	return []search.MenuOption{
		{
			Name: m.Localizer.Localize("SIDEBAR.Edit"),
			Icon: `<i class="fas fa-edit"></i>`,
			Callback: func(ctx context.Context, uuid string) error {
				return opener.Open(ctx, uuid)
			},
		},
		{
			Name:      m.Localizer.Localize("SIDEBAR.Export"),
			Icon:      `<i class="fas fa-file-export"></i>`,
			Condition: func(string) bool { return m.Permissions.CanExport() && m.ExportDir != "" },
			Callback: func(ctx context.Context, uuid string) error {
				_, err := m.Export(ctx, uuid)
				return err
			},
		},
	}
}

// Export writes the document source to the export directory and returns the
// written path.
func (m Menus) Export(ctx context.Context, uuid string) (string, error) {
	if !m.Permissions.CanExport() {
		return "", ErrNotPermitted
	}
	doc, err := m.Resolver.FromUUID(ctx, uuid)
	if err != nil {
		return "", err
	}

	var pretty json.RawMessage = doc.Source
	data, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return "", fmt.Errorf("formatting %s: %w", uuid, err)
	}

	if err := os.MkdirAll(m.ExportDir, 0700); err != nil {
		return "", err
	}
	file := filepath.Join(m.ExportDir, fmt.Sprintf("fvtt-%s-%s.json", exportName.Replace(doc.DocumentName), exportName.Replace(doc.ID)))
	if err := os.WriteFile(file, data, 0600); err != nil {
		return "", err
	}
	return file, nil
}
