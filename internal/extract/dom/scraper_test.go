package dom

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/coursepilot/internal/extract"
	"github.com/ppiankov/coursepilot/internal/fetch"
	"github.com/ppiankov/coursepilot/internal/model"
	"github.com/ppiankov/coursepilot/internal/util"
)

const (
	loadingPage  = `<html><body><div class="d2l-loading">Loading...</div></body></html>`
	emptyCourses = `<html><body><d2l-my-courses></d2l-my-courses></body></html>`
	oneCourse    = `<html><body><d2l-my-courses>
		<a href="/d2l/home/7" class="d2l-card">CSI2532[A] Databases</a>
	</d2l-my-courses></body></html>`
)

// scriptedSource returns one scripted response per HTML call; the last one repeats
type scriptedSource struct {
	mu      sync.Mutex
	steps   []step
	calls   int
	opened  []string
	openErr error
}

type step struct {
	html string
	err  error
}

func (s *scriptedSource) Open(_ context.Context, url string) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return nil, s.openErr
	}
	s.opened = append(s.opened, url)
	return scriptedPage{src: s}, nil
}

type scriptedPage struct{ src *scriptedSource }

func (p scriptedPage) HTML(context.Context) (string, error) {
	p.src.mu.Lock()
	defer p.src.mu.Unlock()
	i := p.src.calls
	if i >= len(p.src.steps) {
		i = len(p.src.steps) - 1
	}
	p.src.calls++
	return p.src.steps[i].html, p.src.steps[i].err
}

func (p scriptedPage) Close() error { return nil }

type sleepCounter struct {
	mu     sync.Mutex
	count  int
	delays []time.Duration
}

func (c *sleepCounter) sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	c.delays = append(c.delays, d)
	return nil
}

func newScraper(src PageSource, sleeps *sleepCounter) *Scraper {
	return New(src, "https://lms.example.edu", Options{
		MaxAttempts: 10,
		RetryDelay:  time.Second,
		Sleep:       sleeps.sleep,
	}, nil)
}

func htmlSteps(pages ...string) []step {
	out := make([]step, len(pages))
	for i, p := range pages {
		out[i] = step{html: p}
	}
	return out
}

type failingAPI struct{}

func (failingAPI) Name() model.Strategy { return model.StrategyAPI }
func (failingAPI) Courses(context.Context) extract.Outcome[model.Course] {
	return extract.Failure[model.Course](errors.New("HTTP 403"))
}
func (failingAPI) Grades(context.Context, model.Course) extract.Outcome[model.Grade] {
	return extract.Failure[model.Grade](errors.New("HTTP 403"))
}
func (failingAPI) Assignments(context.Context, model.Course) extract.Outcome[model.Assignment] {
	return extract.Failure[model.Assignment](errors.New("HTTP 403"))
}
func (failingAPI) Announcements(context.Context, model.Course) extract.Outcome[model.Announcement] {
	return extract.Failure[model.Announcement](errors.New("HTTP 403"))
}

func TestScrape_FoundOnFifthAttempt(t *testing.T) {
	src := &scriptedSource{steps: htmlSteps(loadingPage, loadingPage, loadingPage, loadingPage, oneCourse)}
	sleeps := &sleepCounter{}
	scraper := newScraper(src, sleeps)

	batch := extract.New([]extract.Strategy{failingAPI{}, scraper}, nil, 1, nil).Extract(context.Background(), model.KindCourses)

	assert.Empty(t, batch.Error)
	assert.Equal(t, model.StrategyScrape, batch.Strategy)
	require.Len(t, batch.Courses, 1)
	assert.Equal(t, "7", batch.Courses[0].ID)
	assert.Equal(t, "CSI2532", batch.Courses[0].Code)
	assert.Equal(t, 5, src.calls)
	assert.Equal(t, 4, sleeps.count, "sleeps only between attempts")
	for _, d := range sleeps.delays {
		assert.Equal(t, time.Second, d, "constant backoff")
	}
	assert.Equal(t, []string{"https://lms.example.edu/d2l/home"}, src.opened)
}

func TestScrape_AmbiguousKeepsRetrying(t *testing.T) {
	src := &scriptedSource{steps: htmlSteps(emptyCourses, emptyCourses, oneCourse)}
	sleeps := &sleepCounter{}

	out := newScraper(src, sleeps).Courses(context.Background())

	require.True(t, out.OK())
	assert.False(t, out.Exhausted)
	assert.Len(t, out.Records, 1)
	assert.Equal(t, 3, src.calls)
}

func TestScrape_ExhaustedIsEmptySuccess(t *testing.T) {
	src := &scriptedSource{steps: htmlSteps(emptyCourses)}
	sleeps := &sleepCounter{}

	out := newScraper(src, sleeps).Courses(context.Background())

	require.True(t, out.OK())
	assert.True(t, out.Exhausted)
	assert.NotNil(t, out.Records)
	assert.Empty(t, out.Records)
	assert.Equal(t, 10, src.calls)
	assert.Equal(t, 9, sleeps.count)
}

func TestScrape_UnreachablePageIsFailure(t *testing.T) {
	src := &scriptedSource{steps: []step{{err: errors.New("connection refused")}}}

	out := newScraper(src, &sleepCounter{}).Grades(context.Background(), model.Course{ID: "7"})

	require.False(t, out.OK())
	assert.Contains(t, out.Reason.Error(), "connection refused")
	assert.Equal(t, 10, src.calls)
}

func TestScrape_TransientSnapshotErrorsCountAsNotReady(t *testing.T) {
	src := &scriptedSource{steps: []step{
		{err: errors.New("timeout")},
		{html: loadingPage},
	}}

	out := newScraper(src, &sleepCounter{}).Grades(context.Background(), model.Course{ID: "7"})

	require.True(t, out.OK())
	assert.True(t, out.Exhausted)
}

func TestScrape_OpenFailure(t *testing.T) {
	src := &scriptedSource{openErr: ErrDisallowed}

	out := newScraper(src, &sleepCounter{}).Announcements(context.Background(), model.Course{ID: "7"})

	require.False(t, out.OK())
	assert.ErrorIs(t, out.Reason, ErrDisallowed)
}

func TestScrape_CourseWithoutIDFails(t *testing.T) {
	src := &scriptedSource{steps: htmlSteps(loadingPage)}

	out := newScraper(src, &sleepCounter{}).Assignments(context.Background(), model.Course{Name: "Orphan"})

	require.False(t, out.OK())
	assert.Zero(t, src.calls)
}

func TestScrape_CanceledSleepStops(t *testing.T) {
	src := &scriptedSource{steps: htmlSteps(loadingPage)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scraper := New(src, "https://lms.example.edu", Options{MaxAttempts: 10, RetryDelay: time.Hour}, nil)
	out := scraper.Courses(ctx)

	require.False(t, out.OK())
	assert.ErrorIs(t, out.Reason, context.Canceled)
	assert.Equal(t, 1, src.calls)
}

func TestHTTPPageSource(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /d2l/lms/news/\n")
	})
	mux.HandleFunc("/d2l/lms/grades/my_grades/main.d2l", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintf(w, `<table class="d2l-table"><tr><th>Item</th><th>Grade</th></tr>
			<tr><th><label>Quiz %s</label></th><td>8 / 10</td><td>80 %%</td></tr></table>`, r.URL.Query().Get("ou"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher := fetch.New(fetch.Options{Timeout: 5 * time.Second, UserAgent: "coursepilot/test"})
	src := NewHTTPPageSource(fetcher, util.NewRobotsChecker(fetcher.Client(), "coursepilot/test"))
	scraper := New(src, server.URL, Options{MaxAttempts: 2, Sleep: (&sleepCounter{}).sleep}, nil)

	grades := scraper.Grades(context.Background(), model.Course{ID: "42"})
	require.True(t, grades.OK(), "unexpected failure: %v", grades.Reason)
	require.Len(t, grades.Records, 1)
	assert.Equal(t, "Quiz 42", grades.Records[0].Name)
	assert.Equal(t, 8.0, *grades.Records[0].PointsNumerator)
	assert.Equal(t, "80 %", *grades.Records[0].DisplayedGrade)

	news := scraper.Announcements(context.Background(), model.Course{ID: "42"})
	require.False(t, news.OK())
	assert.ErrorIs(t, news.Reason, ErrDisallowed)
}

func TestPageURL(t *testing.T) {
	base := "https://lms.example.edu"
	course := model.Course{ID: "7"}

	tests := map[model.Kind]string{
		model.KindCourses:       base + "/d2l/home",
		model.KindGrades:        base + "/d2l/lms/grades/my_grades/main.d2l?ou=7",
		model.KindAssignments:   base + "/d2l/lms/dropbox/user/folders_list.d2l?ou=7",
		model.KindAnnouncements: base + "/d2l/lms/news/main.d2l?ou=7",
	}
	for kind, want := range tests {
		got, err := PageURL(base, kind, course)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}
