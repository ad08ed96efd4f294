package handlers

import (
	"sync"

	"github.com/pathprep/pathprep/internal/interview"
)

// LiveSessions tracks protocol machines for sessions that have been started
// but whose voice connection lives on this node. Entries are removed when
// the interview completes or the connection is torn down for good.
type LiveSessions struct {
	mu   sync.Mutex
	byID map[string]*interview.Service
}

func NewLiveSessions() *LiveSessions {
	return &LiveSessions{byID: make(map[string]*interview.Service)}
}

func (l *LiveSessions) Put(sessionID string, svc *interview.Service) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byID[sessionID] = svc
}

func (l *LiveSessions) Get(sessionID string) (*interview.Service, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	svc, ok := l.byID[sessionID]
	return svc, ok
}

func (l *LiveSessions) Remove(sessionID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.byID, sessionID)
}
