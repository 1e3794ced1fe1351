// Package web serves the search panel to browsers. Each websocket connection
// gets its own search session.
package web

import (
	"context"
	_ "embed"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/noelzubin/compendium_search/search"
	"github.com/samber/lo"
)

//go:embed index.html
var indexHTML []byte

// clientMsg is everything the browser sends.
type clientMsg struct {
	Type         string   `json:"type"` // query, filters, open, dragstart, contextmenu, menu
	Query        string   `json:"query"`
	Filters      []string `json:"filters"`
	UUID         string   `json:"uuid"`
	DocumentName string   `json:"documentName"`
	Option       int      `json:"option"`
}

type Server struct {
	ctx        context.Context
	controller *search.Controller
	router     chi.Router
	upgrader   websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*search.Session
}

func NewServer(ctx context.Context, controller *search.Controller) *Server {
	s := &Server{
		ctx:        ctx,
		controller: controller,
		sessions:   map[string]*search.Session{},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.indexHandler)
	r.Get("/healthz", healthzHandler)
	r.Get("/ws", s.wsHandler)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves until the server context is done.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{Addr: addr, Handler: s, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-s.ctx.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	log.Printf("serving on http://%s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Refresh reruns the query of every connected panel.
func (s *Server) Refresh() {
	s.mu.Lock()
	sessions := lo.Values(s.sessions)
	s.mu.Unlock()

	for _, session := range sessions {
		session.Refresh()
	}
}

// Sessions returns the number of connected panels.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) indexHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexHTML)
}

func healthzHandler(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) wsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("upgrading websocket: %v", err)
		return
	}
	defer conn.Close()

	p := &panel{id: uuid.NewString(), query: r.URL.Query().Get("q"), conn: conn}
	p.write(textMsg{Type: "init", Session: p.id})

	session, err := s.controller.Attach(s.ctx, p)
	if err != nil {
		log.Printf("attaching %s: %v", p.id, err)
		p.write(textMsg{Type: "error", Error: err.Error()})
		return
	}
	defer session.Close()
	p.sendMenus()

	s.mu.Lock()
	s.sessions[p.id] = session
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.sessions, p.id)
		s.mu.Unlock()
	}()

	for {
		var msg clientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("reading from %s: %v", p.id, err)
			}
			return
		}
		if err := s.handle(r.Context(), p, session, msg); err != nil {
			p.write(textMsg{Type: "error", Error: err.Error()})
		}
	}
}

func (s *Server) handle(ctx context.Context, p *panel, session *search.Session, msg clientMsg) error {
	switch msg.Type {
	case "query":
		session.SetQuery(msg.Query)
	case "filters":
		p.setFilters(msg.Filters)
		session.Refresh()
	case "open":
		if h := p.currentHandlers(); h != nil {
			return h.Open(ctx, msg.UUID)
		}
	case "dragstart":
		h := p.currentHandlers()
		if h == nil {
			return nil
		}
		data, err := h.DragStart(ctx, msg.UUID)
		if err != nil {
			return err
		}
		p.write(dragMsg{Type: "drag", UUID: msg.UUID, Data: data})
	case "contextmenu":
		menu, ok := p.menu(msg.DocumentName)
		if !ok {
			return nil
		}
		out := optionsMsg{Type: "options", UUID: msg.UUID, Options: []optionMsg{}}
		for i, o := range menu.Options {
			if o.Condition == nil || o.Condition(msg.UUID) {
				out.Options = append(out.Options, optionMsg{Index: i, Name: o.Name, Icon: o.Icon})
			}
		}
		p.write(out)
	case "menu":
		menu, ok := p.menu(msg.DocumentName)
		if !ok || msg.Option < 0 || msg.Option >= len(menu.Options) {
			return errors.New("unknown menu option")
		}
		o := menu.Options[msg.Option]
		if o.Condition != nil && !o.Condition(msg.UUID) {
			return errors.New(o.Name + " is not available")
		}
		return o.Callback(ctx, msg.UUID)
	default:
		return errors.New("unknown message type " + msg.Type)
	}
	return nil
}
