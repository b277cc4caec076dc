package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/gorilla/sessions"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/milestones/internal/roster"
	"github.com/shrimpsizemoose/milestones/internal/store"
)

const sessionIDKey = "session_id"

type Service struct {
	Config   *Config
	Store    store.RosterStore
	Roster   *roster.Roster
	Sessions *roster.Sessions
	Cookies  *sessions.CookieStore

	sweeper *gocron.Scheduler
}

func NewService(configPath string) (*Service, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	store, err := NewStore(config)
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	service, err := NewServiceWithStore(config, store)
	if err != nil {
		store.Close()
		return nil, err
	}
	return service, nil
}

// NewServiceWithStore wires the roster and session registry on top of an
// already opened store and loads the stored roster.
func NewServiceWithStore(config *Config, st store.RosterStore) (*Service, error) {
	secret := []byte(config.Session.Secret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("failed to generate session secret: %w", err)
		}
	}

	cookies := sessions.NewCookieStore(secret)
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   config.Session.MaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	s := &Service{
		Config:   config,
		Store:    st,
		Roster:   roster.New(st),
		Sessions: roster.NewSessions(),
		Cookies:  cookies,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	students, err := s.Roster.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster: %w", err)
	}
	logger.Info.Printf("Loaded roster with %d students", len(students))

	return s, nil
}

// LookupSession returns the editing session bound to the request cookie
// without registering a new one.
func (s *Service) LookupSession(r *http.Request) (*roster.Session, bool) {
	cookie, err := s.Cookies.Get(r, s.Config.Session.CookieName)
	if err != nil {
		logger.Debug.Printf("Discarding session cookie: %v", err)
		return nil, false
	}
	id, ok := cookie.Values[sessionIDKey].(string)
	if !ok {
		return nil, false
	}
	return s.Sessions.Get(id)
}

// OpenSession returns the editing session bound to the request cookie,
// creating one and setting the cookie when the request has none or an
// unknown id. Only calls that select a student open sessions.
func (s *Service) OpenSession(w http.ResponseWriter, r *http.Request) (*roster.Session, error) {
	cookie, err := s.Cookies.Get(r, s.Config.Session.CookieName)
	if err != nil {
		// undecodable cookie, Get still returns a fresh session
		logger.Debug.Printf("Discarding session cookie: %v", err)
	}

	if id, ok := cookie.Values[sessionIDKey].(string); ok {
		if sess, ok := s.Sessions.Get(id); ok {
			return sess, nil
		}
	}

	id, sess, err := s.Sessions.New()
	if err != nil {
		return nil, err
	}
	cookie.Values[sessionIDKey] = id
	if err := cookie.Save(r, w); err != nil {
		return nil, fmt.Errorf("failed to save session cookie: %w", err)
	}
	logger.Debug.Printf("Started editing session %s", id)
	return sess, nil
}

// StartSessionSweeper drops editing sessions idle for longer than the
// configured idle timeout, checking once a minute.
func (s *Service) StartSessionSweeper() error {
	idle := s.Config.SessionIdleTimeout()
	scheduler := gocron.NewScheduler(time.UTC)
	_, err := scheduler.Every(time.Minute).Do(func() {
		s.Sessions.Sweep(idle)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule session sweep: %w", err)
	}

	scheduler.StartAsync()
	s.sweeper = scheduler
	logger.Info.Printf("Editing sessions expire after %s idle", idle)
	return nil
}

func (s *Service) Close() error {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	if err := s.Store.Close(); err != nil {
		return fmt.Errorf("errors while closing: store: %w", err)
	}
	return nil
}
