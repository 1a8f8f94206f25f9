package media_sdp

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/arzzra/leg_media/pkg/variables"
)

// fakeSession минимальная сессия для тестов пакета
type fakeSession struct {
	mu          sync.Mutex
	id          string
	vars        *variables.Store
	disposition string
	preAnswered int
}

func newFakeSession(id string) *fakeSession {
	return &fakeSession{id: id, vars: variables.NewStore()}
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Variables() *variables.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vars.Clone()
}

func (s *fakeSession) SetDisposition(d string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposition = d
}

func (s *fakeSession) MarkPreAnswered() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preAnswered++
}

func (s *fakeSession) set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vars.Set(name, value)
}

func (s *fakeSession) snapshot() (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposition, s.preAnswered
}

// MockMediaLayer реализует MediaLayer через testify/mock
type MockMediaLayer struct {
	mock.Mock
}

func (m *MockMediaLayer) NegotiateSDP(ctx context.Context, session Session, sdp string, kind SDPType) (bool, bool) {
	args := m.Called(ctx, session, sdp, kind)
	return args.Bool(0), args.Bool(1)
}

func (m *MockMediaLayer) ChoosePort(ctx context.Context, session Session, mediaType MediaType) error {
	args := m.Called(ctx, session, mediaType)
	return args.Error(0)
}

func (m *MockMediaLayer) ActivateTransport(ctx context.Context, session Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

const testSDP = "v=0\r\no=- 1 1 IN IP4 127.0.0.1\r\ns=-\r\nc=IN IP4 127.0.0.1\r\nt=0 0\r\nm=audio 4000 RTP/AVP 0\r\n"
