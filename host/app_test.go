package host

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/noelzubin/compendium_search/search"
	"github.com/noelzubin/compendium_search/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDataDir(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"module.json": `{"id":"bestiary","title":"Bestiary","packs":[{"name":"monsters","label":"Monsters","path":"packs/monsters.db","type":"Actor"}]}`,
		"packs/monsters.db": `{"_id":"g1","name":"Goblin Scout","type":"npc","img":"goblin.webp"}
{"_id":"g2","name":"Goblin Boss","type":"npc"}
`,
		"data/actors.db":  `{"_id":"a1","name":"Goblin Scout Bob","type":"character"}` + "\n",
		"data/journal.db": `{"_id":"j1","name":"Goblin Scouting Notes"}` + "\n",
	}
	for name, content := range files {
		file := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(file), 0700))
		require.NoError(t, os.WriteFile(file, []byte(content), 0600))
	}
	return root
}

func newTestApp(t *testing.T, role string) *App {
	t.Helper()
	file := filepath.Join(t.TempDir(), "config.yaml")
	config := fmt.Sprintf("data_path: %s\nrole: %s\ndebounce: 10ms\ncache_index: false\n", writeDataDir(t), role)
	require.NoError(t, os.WriteFile(file, []byte(config), 0600))

	cfg, err := utils.NewConfig(file)
	require.NoError(t, err)
	app, err := NewApp(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}

type appPanel struct {
	mu      sync.Mutex
	query   string
	last    search.Rendering
	sheets  []*search.Document
	menus   []search.ContextMenu
	renders int
}

func (p *appPanel) Query() string           { return p.query }
func (p *appPanel) ActiveFilters() []string { return nil }
func (p *appPanel) Replace(r search.Rendering, _ search.Handlers) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = r
	p.renders++
}
func (p *appPanel) OpenSheet(_ context.Context, doc *search.Document) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sheets = append(p.sheets, doc)
	return nil
}
func (p *appPanel) AddContextMenu(m search.ContextMenu) { p.menus = append(p.menus, m) }
func (p *appPanel) CloseContextMenu()                   {}

func (p *appPanel) rendering() (search.Rendering, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last, p.renders
}

func TestAppSearch(t *testing.T) {
	app := newTestApp(t, "gamemaster")
	panel := &appPanel{query: "gobl scou"}

	session, err := app.Controller.Attach(context.Background(), panel)
	require.NoError(t, err)
	defer session.Close()
	assert.Len(t, panel.menus, len(search.WorldCollections))

	require.Eventually(t, func() bool { _, n := panel.rendering(); return n == 1 }, 2*time.Second, 5*time.Millisecond)
	r, _ := panel.rendering()
	require.Len(t, r.Hits, 1)
	assert.Equal(t, "Goblin Scout", r.Hits[0].Name)
	assert.Equal(t, "Non-Player Character - Monsters", r.Hits[0].Details)
	assert.Contains(t, r.HTML, `data-uuid="Compendium.bestiary.monsters.g1"`)

	data, err := session.DragData("Compendium.bestiary.monsters.g1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"uuid":"Compendium.bestiary.monsters.g1","type":"Actor"}`, data)

	require.NoError(t, session.Open(context.Background(), "Compendium.bestiary.monsters.g1"))
	require.Len(t, panel.sheets, 1)
	assert.Equal(t, "Goblin Scout", panel.sheets[0].Name)

	// world documents come first once the setting is on
	require.NoError(t, app.Settings.SetSearchWorldPacks(true))
	session.Refresh()
	require.Eventually(t, func() bool { _, n := panel.rendering(); return n == 2 }, 2*time.Second, 5*time.Millisecond)
	r, _ = panel.rendering()
	require.Len(t, r.Hits, 3)
	assert.Equal(t, "Goblin Scout Bob", r.Hits[0].Name)
	assert.Equal(t, "Player Character - Actors (World)", r.Hits[0].Details)
	assert.Equal(t, "Goblin Scouting Notes", r.Hits[1].Name)
	assert.Equal(t, "Goblin Scout", r.Hits[2].Name)
}

func TestAppPlayer(t *testing.T) {
	app := newTestApp(t, "player")
	panel := &appPanel{query: "goblin"}

	session, err := app.Controller.Attach(context.Background(), panel)
	require.NoError(t, err)
	defer session.Close()

	require.Eventually(t, func() bool { _, n := panel.rendering(); return n == 1 }, 2*time.Second, 5*time.Millisecond)
	_, err = session.DragData("Compendium.bestiary.monsters.g1")
	assert.ErrorIs(t, err, search.ErrDragNotPermitted)
}

func TestAppBadRole(t *testing.T) {
	file := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(file, []byte("role: wizard\n"), 0600))
	cfg, err := utils.NewConfig(file)
	require.NoError(t, err)
	_, err = NewApp(cfg)
	assert.Error(t, err)
}
