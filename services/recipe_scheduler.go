package services

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Default debounce window between a pantry mutation and the generation job.
const DefaultGenerationDelay = 5 * time.Second

// How long the in-progress marker stays visible if a job never reports back.
const inProgressTTL = 90 * time.Second

// recipeGenerator is the job body the scheduler dispatches.
type recipeGenerator interface {
	GenerateForUser(userID uint, stillCurrent func() bool) error
}

type pendingJob struct {
	timer *time.Timer
	token string
}

type generationJob struct {
	userID uint
	token  string
}

// RecipeScheduler debounces recipe generation per user. Every trigger
// cancels the user's pending job and schedules a fresh one, so a burst of
// rapid pantry edits coalesces into a single execution that sees the final
// pantry state. A generation token issued at schedule time guards against a
// stale in-flight job overwriting a newer one's results.
type RecipeScheduler struct {
	mu         sync.Mutex
	delay      time.Duration
	pending    map[uint]*pendingJob
	latest     map[uint]string
	inProgress map[uint]time.Time
	stopped    bool

	gen  recipeGenerator
	hub  eventBroadcaster
	jobs chan generationJob
	quit chan struct{}
	wg   sync.WaitGroup
}

func NewRecipeScheduler(gen recipeGenerator, hub eventBroadcaster, delay time.Duration, workers int) *RecipeScheduler {
	if delay <= 0 {
		delay = DefaultGenerationDelay
	}
	if workers <= 0 {
		workers = 4
	}
	s := &RecipeScheduler{
		delay:      delay,
		pending:    make(map[uint]*pendingJob),
		latest:     make(map[uint]string),
		inProgress: make(map[uint]time.Time),
		gen:        gen,
		hub:        hub,
		jobs:       make(chan generationJob, 64),
		quit:       make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// Trigger schedules a generation job for the user after the debounce delay.
// An already-scheduled job is cancelled first; the newest trigger wins and
// earlier pending jobs never execute.
func (s *RecipeScheduler) Trigger(userID uint) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if p, ok := s.pending[userID]; ok {
		p.timer.Stop()
	}

	token := uuid.NewString()
	s.latest[userID] = token
	s.inProgress[userID] = time.Now().Add(inProgressTTL)
	s.pending[userID] = &pendingJob{
		token: token,
		timer: time.AfterFunc(s.delay, func() { s.fire(userID, token) }),
	}
	s.mu.Unlock()

	if s.hub != nil {
		s.hub.Broadcast(userID, SuggestionEvent{Kind: EventSuggestionsGenerating})
	}
}

func (s *RecipeScheduler) fire(userID uint, token string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if p, ok := s.pending[userID]; ok && p.token == token {
		delete(s.pending, userID)
	}
	// A newer trigger replaced this job between fire and lock.
	if s.latest[userID] != token {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	// The jobs channel is never closed, so a fire racing Stop cannot panic;
	// the quit arm keeps it from blocking once the workers are gone.
	select {
	case s.jobs <- generationJob{userID: userID, token: token}:
	case <-s.quit:
	}
}

func (s *RecipeScheduler) worker() {
	defer s.wg.Done()
	for {
		select {
		case job := <-s.jobs:
			s.run(job)
		case <-s.quit:
			return
		}
	}
}

func (s *RecipeScheduler) run(job generationJob) {
	stillCurrent := func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.latest[job.userID] == job.token
	}

	err := s.gen.GenerateForUser(job.userID, stillCurrent)
	switch {
	case errors.Is(err, ErrNotEnoughPantryItems):
		log.Printf("recipe generation skipped for user %d: %v", job.userID, err)
	case err != nil:
		// Failures never leave the pipeline stuck; the in-progress marker
		// below is cleared regardless.
		log.Printf("recipe generation failed for user %d: %v", job.userID, err)
	}

	s.mu.Lock()
	if s.latest[job.userID] == job.token {
		delete(s.inProgress, job.userID)
	}
	s.mu.Unlock()
}

// InProgress reports whether a generation is pending or running for the
// user. Drives the UI loading indicator only.
func (s *RecipeScheduler) InProgress(userID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	expiry, ok := s.inProgress[userID]
	if !ok {
		return false
	}
	if time.Now().After(expiry) {
		delete(s.inProgress, userID)
		return false
	}
	return true
}

// Stop cancels pending timers and shuts the workers down. Jobs still queued
// at that point are dropped.
func (s *RecipeScheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for _, p := range s.pending {
		p.timer.Stop()
	}
	s.pending = make(map[uint]*pendingJob)
	s.mu.Unlock()

	close(s.quit)
	s.wg.Wait()
}
