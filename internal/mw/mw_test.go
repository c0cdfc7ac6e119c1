package mw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(r http.Handler, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestCache_ServesHitsUntilWrite(t *testing.T) {
	rc := NewResponseCache(cache.New(time.Minute, time.Minute), time.Minute)
	counter := 0

	r := gin.New()
	r.Use(rc.InvalidateOnWrite())
	r.GET("/cells", rc.Cache(), func(c *gin.Context) {
		counter++
		c.String(http.StatusOK, strconv.Itoa(counter))
	})
	r.POST("/cells", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/fail", func(c *gin.Context) { c.Status(http.StatusConflict) })

	first := perform(r, http.MethodGet, "/cells", nil)
	assert.Equal(t, "1", first.Body.String())

	second := perform(r, http.MethodGet, "/cells", nil)
	assert.Equal(t, "1", second.Body.String())
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))

	perform(r, http.MethodPost, "/fail", nil)
	assert.Equal(t, "1", perform(r, http.MethodGet, "/cells", nil).Body.String())

	perform(r, http.MethodPost, "/cells", nil)
	assert.Equal(t, "2", perform(r, http.MethodGet, "/cells", nil).Body.String())
}

func TestCache_SkipsErrorsAndZeroTTL(t *testing.T) {
	store := cache.New(time.Minute, time.Minute)
	cached := NewResponseCache(store, time.Minute)
	uncached := NewResponseCache(store, 0)
	calls := 0

	r := gin.New()
	r.GET("/missing", cached.Cache(), func(c *gin.Context) {
		calls++
		c.Status(http.StatusNotFound)
	})
	r.GET("/uncached", uncached.Cache(), func(c *gin.Context) {
		calls++
		c.Status(http.StatusOK)
	})

	perform(r, http.MethodGet, "/missing", nil)
	perform(r, http.MethodGet, "/missing", nil)
	perform(r, http.MethodGet, "/uncached", nil)
	perform(r, http.MethodGet, "/uncached", nil)
	assert.Equal(t, 4, calls)
	assert.Zero(t, store.ItemCount())
}

func TestCache_WriteDuringSlowReadIsNotCached(t *testing.T) {
	rc := NewResponseCache(cache.New(time.Minute, time.Minute), time.Minute)

	var mu sync.Mutex
	version := 1
	readVersion := func() int {
		mu.Lock()
		defer mu.Unlock()
		return version
	}

	readDone := make(chan struct{})
	resume := make(chan struct{})
	slow := true

	r := gin.New()
	r.Use(rc.InvalidateOnWrite())
	r.GET("/cell", rc.Cache(), func(c *gin.Context) {
		v := readVersion()
		mu.Lock()
		wait := slow
		slow = false
		mu.Unlock()
		if wait {
			close(readDone)
			<-resume
		}
		c.JSON(http.StatusOK, gin.H{"version": v})
	})
	r.POST("/cell", func(c *gin.Context) {
		mu.Lock()
		version++
		mu.Unlock()
		c.Status(http.StatusOK)
	})

	staleDone := make(chan *httptest.ResponseRecorder)
	go func() { staleDone <- perform(r, http.MethodGet, "/cell", nil) }()

	<-readDone
	require.Equal(t, http.StatusOK, perform(r, http.MethodPost, "/cell", nil).Code)
	close(resume)
	assert.JSONEq(t, `{"version":1}`, (<-staleDone).Body.String())

	w := perform(r, http.MethodGet, "/cell", nil)
	assert.Empty(t, w.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"version":2}`, w.Body.String())

	w = perform(r, http.MethodGet, "/cell", nil)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"version":2}`, w.Body.String())
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(NewIPRateLimiter(rate.Limit(1), 2).Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/", nil).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, perform(r, http.MethodGet, "/", nil).Code)
}

func TestIPRateLimiter_Evict(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	l := NewIPRateLimiter(rate.Limit(1), 1)
	l.now = func() time.Time { return now }

	l.GetLimiter("10.0.0.1")
	now = now.Add(10 * time.Minute)
	l.GetLimiter("10.0.0.2")
	require.Equal(t, 2, l.Len())

	assert.Equal(t, 1, l.Evict(5*time.Minute))
	assert.Equal(t, 1, l.Len())
}

func TestIPRateLimiter_SweepStopsWithContext(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(1), 1)
	l.GetLimiter("10.0.0.1")
	require.Equal(t, 1, l.Len())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Sweep(ctx, time.Millisecond, time.Nanosecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return l.Len() == 0 }, time.Second, time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestActor(t *testing.T) {
	r := gin.New()
	r.Use(Actor(1))
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, strconv.FormatInt(ActorID(c), 10))
	})

	assert.Equal(t, "1", perform(r, http.MethodGet, "/", nil).Body.String())
	assert.Equal(t, "42", perform(r, http.MethodGet, "/", map[string]string{ActorHeader: "42"}).Body.String())
	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodGet, "/", map[string]string{ActorHeader: "abc"}).Code)
	assert.Equal(t, http.StatusBadRequest, perform(r, http.MethodGet, "/", map[string]string{ActorHeader: "-3"}).Code)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(RequestLogger(zap.New(core)))
	r.GET("/racks/:rack_id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := perform(r, http.MethodGet, "/racks/3", nil)
	id := w.Header().Get(RequestIDHeader)
	assert.Len(t, id, 36)

	w = perform(r, http.MethodGet, "/racks/3", map[string]string{RequestIDHeader: "abc-123"})
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))

	perform(r, http.MethodGet, "/boom", nil)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "/racks/:rack_id", entries[0].ContextMap()["path"])
	assert.Equal(t, "abc-123", entries[1].ContextMap()["request_id"])
	assert.Equal(t, zap.ErrorLevel, entries[2].Level)
}
