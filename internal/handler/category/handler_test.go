package category

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go-firestore-admin/internal/eventpublisher/event"
	"go-firestore-admin/internal/projection"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu     sync.Mutex
	latest projection.Snapshot
	at     time.Time
	subs   map[event.EventWChannel]bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{subs: map[event.EventWChannel]bool{}}
}

func (f *fakeSource) Subscribe(ch event.EventWChannel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[ch] = true
}

func (f *fakeSource) Unsubscribe(ch event.EventWChannel) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.subs, ch)
}

func (f *fakeSource) Latest() (projection.Snapshot, time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest, f.at, f.latest != nil
}

func (f *fakeSource) subscribers() []event.EventWChannel {
	f.mu.Lock()
	defer f.mu.Unlock()
	subs := []event.EventWChannel{}
	for ch := range f.subs {
		subs = append(subs, ch)
	}
	return subs
}

func newServer(source Source) *echo.Echo {
	e := echo.New()
	New(source).Register(e.Group("/api/categories"))
	return e
}

func TestDistribution(t *testing.T) {
	source := newFakeSource()
	e := newServer(source)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/categories/distribution", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	source.latest = projection.Snapshot{"Tools": 2, "Home": 1}
	source.at = time.Now()

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/categories/distribution", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body distribution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []projection.Entry{{Name: "Home", Value: 1}, {Name: "Tools", Value: 2}}, body.Entries)
	assert.Equal(t, 3, body.Total)
}

func readEvent(t *testing.T, r *bufio.Reader) (string, distribution) {
	t.Helper()
	var name string
	var d distribution
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &d))
		case line == "":
			return name, d
		}
	}
}

func TestStream(t *testing.T) {
	source := newFakeSource()
	source.latest = projection.Snapshot{"A": 1}
	source.at = time.Now()

	srv := httptest.NewServer(newServer(source))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/categories/distribution/stream", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	name, d := readEvent(t, r)
	assert.Equal(t, "distribution", name)
	assert.Equal(t, 1, d.Total)

	require.Eventually(t, func() bool { return len(source.subscribers()) == 1 }, time.Second, 10*time.Millisecond)
	source.subscribers()[0] <- event.Event{Distribution: projection.Snapshot{"A": 1, "B": 2}, At: time.Now()}

	name, d = readEvent(t, r)
	assert.Equal(t, "distribution", name)
	assert.Equal(t, []projection.Entry{{Name: "A", Value: 1}, {Name: "B", Value: 2}}, d.Entries)

	cancel()
	assert.Eventually(t, func() bool { return len(source.subscribers()) == 0 }, time.Second, 10*time.Millisecond,
		"client disconnect unsubscribes")
}

func TestStreamEndsWithPublisher(t *testing.T) {
	source := newFakeSource()
	srv := httptest.NewServer(newServer(source))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/categories/distribution/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Eventually(t, func() bool { return len(source.subscribers()) == 1 }, time.Second, 10*time.Millisecond)
	ch := source.subscribers()[0]
	ch <- event.Event{Err: assert.AnError}

	name, _ := readEvent(t, bufio.NewReader(resp.Body))
	assert.Equal(t, "error", name)
}
