package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachRunsPanelQuery(t *testing.T) {
	host, _, sched, _ := monstersHost()
	panel := &fakePanel{query: "gobl scou"}
	attach(t, host, Full(), panel)

	require.Equal(t, 1, sched.pending())
	assert.Equal(t, DefaultDelay, sched.tasks[0].delay)
	sched.fire()

	r := panel.rendered()
	require.Len(t, r, 1)
	assert.Equal(t, "Goblin Scout|Goblin Scout Bow", r[0].HTML)
	assert.Equal(t, "gobl scou", r[0].Query)
	assert.NotNil(t, panel.handlers)
}

func TestAttachFailsWithoutTemplates(t *testing.T) {
	host, _, _, _ := monstersHost()
	host.Renderer = &fakeRenderer{loadErr: errors.New("missing")}

	_, err := NewController(host, Options{}).Attach(context.Background(), &fakePanel{})
	assert.Error(t, err)
}

func TestSetQueryDebounces(t *testing.T) {
	host, _, sched, _ := monstersHost()
	panel := &fakePanel{}
	s := attach(t, host, Full(), panel)

	for _, q := range []string{"g", "go", "gob", "gobl", "gobl scou"} {
		s.SetQuery(q)
	}

	assert.Equal(t, 1, sched.pending())
	assert.Equal(t, 1, sched.fire())
	assert.Equal(t, 0, sched.fire())

	r := panel.rendered()
	require.Len(t, r, 1)
	assert.Equal(t, "gobl scou", r[0].Query)
	assert.Equal(t, 1, host.Renderer.(*fakeRenderer).calls)
}

func TestShortQueryRendersEmpty(t *testing.T) {
	host, _, sched, _ := monstersHost()
	panel := &fakePanel{}
	s := attach(t, host, Full(), panel)

	s.SetQuery("goblin")
	sched.fire()
	s.SetQuery("go")
	sched.fire()

	r := panel.rendered()
	require.Len(t, r, 2)
	assert.Empty(t, r[1].Hits)
	assert.Empty(t, r[1].HTML)
	assert.Empty(t, s.Current().Hits)
}

func TestQueryWithoutTermsKeepsRendering(t *testing.T) {
	host, _, sched, _ := monstersHost()
	panel := &fakePanel{}
	s := attach(t, host, Full(), panel)

	s.SetQuery("goblin")
	sched.fire()
	s.SetQuery("go bo")
	sched.fire()

	r := panel.rendered()
	require.Len(t, r, 1)
	assert.Equal(t, "goblin", s.Current().Query)
}

func TestStaleRenderIsDiscarded(t *testing.T) {
	host, _, _, _ := monstersHost()
	renderer := host.Renderer.(*fakeRenderer)
	release := make(chan struct{})
	renderer.hold = map[string]chan struct{}{"Goblin Scout": release}

	panel := &fakePanel{}
	s := attach(t, host, Full(), panel)

	s.SetQuery("gobl scou")
	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()
	require.Eventually(t, func() bool {
		renderer.mu.Lock()
		defer renderer.mu.Unlock()
		return renderer.calls == 1
	}, time.Second, 5*time.Millisecond)

	s.SetQuery("hobgob")
	s.Run(context.Background())
	close(release)
	<-done

	r := panel.rendered()
	require.Len(t, r, 1)
	assert.Equal(t, "hobgob", r[0].Query)
	assert.Equal(t, "hobgob", s.Current().Query)
}

// slowRegistry blocks the first Packs call until release is closed.
type slowRegistry struct {
	*fakeRegistry
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (r *slowRegistry) Packs() []Pack {
	first := false
	r.once.Do(func() { first = true })
	if first {
		close(r.entered)
		<-r.release
	}
	return r.fakeRegistry.Packs()
}

func TestSlowFilterDoesNotReplaceNewerQuery(t *testing.T) {
	host, reg, _, _ := monstersHost()
	slow := &slowRegistry{fakeRegistry: reg, entered: make(chan struct{}), release: make(chan struct{})}
	host.Registry = slow

	panel := &fakePanel{}
	s := attach(t, host, Full(), panel)

	s.SetQuery("gobl scou")
	done := make(chan struct{})
	go func() {
		s.Run(context.Background())
		close(done)
	}()
	<-slow.entered

	s.SetQuery("hobgob")
	s.Run(context.Background())
	close(slow.release)
	<-done

	r := panel.rendered()
	require.Len(t, r, 1)
	assert.Equal(t, "hobgob", r[0].Query)
	assert.Equal(t, "hobgob", s.Current().Query)
	require.Len(t, s.Current().Hits, 1)
	assert.Equal(t, "Hobgoblin", s.Current().Hits[0].Name)
}

func TestRefreshRerunsQuery(t *testing.T) {
	host, _, sched, settings := monstersHost()
	panel := &fakePanel{}
	s := attach(t, host, Full(), panel)

	s.SetQuery("gobl scou")
	sched.fire()
	settings.world = true
	s.Refresh()
	sched.fire()

	r := panel.rendered()
	require.Len(t, r, 2)
	assert.Len(t, r[0].Hits, 2)
	assert.Len(t, r[1].Hits, 4)
	assert.Greater(t, r[1].Generation, r[0].Generation)
}

func TestOpen(t *testing.T) {
	host, _, _, _ := monstersHost()
	panel := &fakePanel{}
	s := attach(t, host, Full(), panel)

	require.NoError(t, s.Open(context.Background(), "Compendium.world.monsters.1"))
	require.Len(t, panel.sheets, 1)
	assert.Equal(t, "Goblin Scout", panel.sheets[0].Name)

	require.NoError(t, s.Open(context.Background(), "Compendium.world.monsters.404"))
	assert.Len(t, panel.sheets, 1)
}

func TestDragData(t *testing.T) {
	host, _, sched, _ := monstersHost()
	panel := &fakePanel{}
	s := attach(t, host, Full(), panel)
	s.SetQuery("gobl scou")
	sched.fire()

	data, err := s.DragStart(context.Background(), "Compendium.world.monsters.1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"uuid":"Compendium.world.monsters.1","type":"Actor"}`, data)
	assert.Equal(t, 1, panel.menuClosed)

	data, err = s.DragData("Compendium.world.gear.4")
	require.NoError(t, err)
	assert.JSONEq(t, `{"uuid":"Compendium.world.gear.4","type":"Item"}`, data)

	_, err = s.DragData("Compendium.world.monsters.2")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDragDataPermissions(t *testing.T) {
	host, _, sched, _ := monstersHost()
	host.Permissions = fakePermissions{token: false}
	s := attach(t, host, Full(), &fakePanel{})
	s.SetQuery("gobl scou")
	sched.fire()

	_, err := s.DragData("Compendium.world.monsters.1")
	assert.ErrorIs(t, err, ErrDragNotPermitted)

	_, err = s.DragData("Compendium.world.gear.4")
	assert.NoError(t, err)

	noDrag := Full()
	noDrag.DragDrop = false
	s = attach(t, host, noDrag, &fakePanel{})
	s.SetQuery("gobl scou")
	sched.fire()
	_, err = s.DragData("Compendium.world.gear.4")
	assert.ErrorIs(t, err, ErrDragNotPermitted)
}

func TestHitDragDataMatchesDragData(t *testing.T) {
	host, _, sched, settings := monstersHost()
	settings.world = true
	host.Permissions = fakePermissions{token: false}
	s := attach(t, host, Full(), &fakePanel{})
	s.SetQuery("gobl scou")
	sched.fire()

	hits := s.Current().Hits
	require.NotEmpty(t, hits)
	for _, hit := range hits {
		want, wantErr := s.DragData(hit.UUID)
		got, err := s.HitDragData(hit)
		assert.Equal(t, want, got, hit.UUID)
		assert.Equal(t, wantErr, err, hit.UUID)
		if hit.Selector == SelectorActor {
			assert.ErrorIs(t, err, ErrDragNotPermitted, hit.UUID)
		}
	}

	// a hit no longer rendered still gets a payload
	data, err := s.HitDragData(Hit{UUID: "Compendium.world.gear.9", Selector: SelectorOther})
	require.NoError(t, err)
	assert.JSONEq(t, `{"uuid":"Compendium.world.gear.9","type":"Item"}`, data)
}

func TestDragDataWorldDocument(t *testing.T) {
	host, _, sched, settings := monstersHost()
	settings.world = true
	s := attach(t, host, Full(), &fakePanel{})
	s.SetQuery("scouting")
	sched.fire()

	data, err := s.DragData("JournalEntry.j1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"uuid":"JournalEntry.j1","type":"JournalEntry"}`, data)
}

func TestContextMenus(t *testing.T) {
	host, _, _, _ := monstersHost()
	panel := &fakePanel{}
	attach(t, host, Full(), panel)

	require.Len(t, panel.menus, len(WorldCollections))
	assert.Equal(t, "Actor", panel.menus[0].DocumentName)
	assert.Equal(t, `[data-document-name="Actor"]`, panel.menus[0].Selector)

	opt := panel.menus[0].Options[0]
	require.NoError(t, opt.Callback(context.Background(), "Compendium.world.monsters.1"))
	assert.Len(t, panel.sheets, 1)

	minimal := &fakePanel{}
	attach(t, host, Minimal(), minimal)
	assert.Empty(t, minimal.menus)
}

func TestCloseStopsScheduling(t *testing.T) {
	host, _, sched, _ := monstersHost()
	s := attach(t, host, Full(), &fakePanel{})
	s.Close()

	assert.Equal(t, 0, sched.pending())
	s.SetQuery("goblin")
	assert.Equal(t, 0, sched.pending())
}

func TestTimerScheduler(t *testing.T) {
	var ran atomic.Int32
	var sched TimerScheduler

	h := sched.Schedule(time.Hour, func() { ran.Add(1) })
	assert.True(t, h.Cancel())

	sched.Schedule(time.Millisecond, func() { ran.Add(1) })
	assert.Eventually(t, func() bool { return ran.Load() == 1 }, time.Second, time.Millisecond)
}

func TestDebounceWithTimers(t *testing.T) {
	host, _, _, _ := monstersHost()
	host.Scheduler = nil
	panel := &fakePanel{}
	c := NewController(host, Options{Delay: 100 * time.Millisecond, Features: Full()})
	s, err := c.Attach(context.Background(), panel)
	require.NoError(t, err)
	defer s.Close()

	for _, q := range []string{"gob", "gobl", "gobl scou"} {
		s.SetQuery(q)
	}

	require.Eventually(t, func() bool { return len(panel.rendered()) == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	r := panel.rendered()
	require.Len(t, r, 1)
	assert.Equal(t, "gobl scou", r[0].Query)
}
