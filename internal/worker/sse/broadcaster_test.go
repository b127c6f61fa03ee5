package sse

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/ddokterview/ddokterview/pkg/models"
)

// BroadcasterSuite is a test suite for Broadcaster operations.
type BroadcasterSuite struct {
	suite.Suite
	broadcaster *Broadcaster
}

func (s *BroadcasterSuite) SetupTest() {
	s.broadcaster = NewBroadcaster()
}

func TestBroadcasterSuite(t *testing.T) {
	suite.Run(t, new(BroadcasterSuite))
}

// recordingWriter implements http.ResponseWriter and http.Flusher.
type recordingWriter struct {
	header http.Header
	body   []byte
	err    error
	mu     sync.Mutex
}

func newRecordingWriter() *recordingWriter {
	return &recordingWriter{header: make(http.Header)}
}

func (m *recordingWriter) Header() http.Header { return m.header }

func (m *recordingWriter) Write(data []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.body = append(m.body, data...)
	return len(data), nil
}

func (m *recordingWriter) WriteHeader(int) {}

func (m *recordingWriter) Flush() {}

func (m *recordingWriter) Body() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return string(m.body)
}

// nonFlusher lacks http.Flusher.
type nonFlusher struct{ http.ResponseWriter }

func (s *BroadcasterSuite) TestAddAndRemoveClient() {
	client, err := s.broadcaster.AddClient(newRecordingWriter(), "s1")
	s.Require().NoError(err)
	s.Equal("s1", client.SessionID)
	s.Equal(1, s.broadcaster.ClientCount())

	s.broadcaster.RemoveClient(client)
	s.Equal(0, s.broadcaster.ClientCount())

	select {
	case <-client.Done:
	default:
		s.Fail("Done channel should be closed")
	}

	// removing twice is harmless
	s.broadcaster.RemoveClient(client)
}

func (s *BroadcasterSuite) TestAddClientRequiresFlusher() {
	_, err := s.broadcaster.AddClient(nonFlusher{httptest.NewRecorder()}, "")
	s.Error(err)
}

func (s *BroadcasterSuite) TestPublishFiltersBySession() {
	mine := newRecordingWriter()
	other := newRecordingWriter()
	all := newRecordingWriter()
	_, err := s.broadcaster.AddClient(mine, "s1")
	s.Require().NoError(err)
	_, err = s.broadcaster.AddClient(other, "s2")
	s.Require().NoError(err)
	_, err = s.broadcaster.AddClient(all, "")
	s.Require().NoError(err)

	s.broadcaster.Publish(models.ProgressEvent{
		Type:           models.EventQuestionAsked,
		SessionID:      "s1",
		QuestionNumber: 3,
		RemainingSlots: 9,
	})

	s.Contains(mine.Body(), `"type":"question_asked"`)
	s.Contains(mine.Body(), `"questionNumber":3`)
	s.Contains(all.Body(), `"sessionId":"s1"`)
	s.Empty(other.Body())
}

func (s *BroadcasterSuite) TestBroadcastReachesEveryone() {
	a := newRecordingWriter()
	b := newRecordingWriter()
	_, _ = s.broadcaster.AddClient(a, "s1")
	_, _ = s.broadcaster.AddClient(b, "s2")

	s.broadcaster.Broadcast(map[string]string{"type": "shutdown"})

	s.True(strings.HasPrefix(a.Body(), "data: "))
	s.Contains(b.Body(), "shutdown")
}

func (s *BroadcasterSuite) TestDeadClientRemoved() {
	w := newRecordingWriter()
	w.err = errors.New("broken pipe")
	client, err := s.broadcaster.AddClient(w, "s1")
	s.Require().NoError(err)

	s.broadcaster.Publish(models.ProgressEvent{Type: models.EventAnswerRecorded, SessionID: "s1"})

	s.Equal(0, s.broadcaster.ClientCount())
	select {
	case <-client.Done:
	default:
		s.Fail("dead client should be closed")
	}
}

func (s *BroadcasterSuite) TestPublishNoClients() {
	s.broadcaster.Publish(models.ProgressEvent{Type: models.EventQuestionsReady, SessionID: "s1"})
}

func TestHandleSSE(t *testing.T) {
	b := NewBroadcaster()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events?sessionId=s1", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		b.HandleSSE(rec, req)
	}()

	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 0, b.ClientCount())
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"type":"connected"`)
	assert.Contains(t, rec.Body.String(), `"sessionId":"s1"`)
}
