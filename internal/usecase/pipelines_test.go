package usecase

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/linkchecker-service/internal/adapter/httpcheck"
	"github.com/user/linkchecker-service/internal/batch"
	"github.com/user/linkchecker-service/internal/catalog"
	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/internal/extractor"
)

func scanConfig() (entity.ScanConfiguration, entity.FieldMap) {
	cfg := entity.ScanConfiguration{
		EntityTypes: []entity.EntityTypeConfig{
			{MachineName: "node", Name: "Content", Alias: "/node/"},
			{MachineName: "paragraph", Name: "Paragraph", Alias: "/paragraph/"},
		},
		FieldTypes:          []entity.FieldTypeConfig{{Name: "text_long", Kind: entity.KindHTML}},
		ExtractionBatchSize: 500,
		LinkCheckBatchSize:  20,
		DefaultCheckboxes:   map[string][]string{"node": {"body"}},
	}
	return cfg, entity.FieldMap{"node": {"body": "text_long"}}
}

func TestExtractBatch_TextLongProducesTwoUncheckedLinks(t *testing.T) {
	links := newFakeLinks()
	tracked := newFakeTracked(links)
	content := newFakeContent()
	content.values["node.body/1"] = []string{"see http://example.com/a and https://example.com/b"}
	tracked.seed(nodeBody, 1, nil)

	cfg, fields := scanConfig()
	urls, err := extractor.New("")
	require.NoError(t, err)
	x := NewLinkExtractor(content, tracked, catalog.New(cfg, fields, zap.NewNop()), urls, zap.NewNop())

	e := entity.TrackedEntity{EntityType: "node", EntityField: "body", EntityID: 1, Modified: t0}
	processed, failed := x.ExtractBatch(context.Background(), batch.Operation[entity.TrackedEntity]{Items: []entity.TrackedEntity{e}})
	assert.Equal(t, 1, processed)
	assert.Zero(t, failed)

	got := links.all()
	require.Len(t, got, 2)
	assert.Equal(t, "http://example.com/a", got[0].URL)
	assert.Equal(t, "https://example.com/b", got[1].URL)
	for _, r := range got {
		assert.Equal(t, entity.StatusUnchecked, r.Status)
		assert.Equal(t, "/node/1", r.Alias)
	}
	lc, _ := tracked.lastChanged(nodeBody, 1)
	require.NotNil(t, lc)
	assert.True(t, lc.Equal(t0))
}

func TestExtractBatch_UnconfiguredTargetFails(t *testing.T) {
	links := newFakeLinks()
	cfg, fields := scanConfig()
	urls, _ := extractor.New("")
	x := NewLinkExtractor(newFakeContent(), newFakeTracked(links), catalog.New(cfg, fields, zap.NewNop()), urls, zap.NewNop())

	e := entity.TrackedEntity{EntityType: "node", EntityField: "field_other", EntityID: 1}
	processed, failed := x.ExtractBatch(context.Background(), batch.Operation[entity.TrackedEntity]{Items: []entity.TrackedEntity{e}})
	assert.Equal(t, 1, processed)
	assert.Equal(t, 1, failed)
	assert.Empty(t, links.all())
}

func TestCheckBatch_ClassifiesByHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	links := newFakeLinks()
	okRec := &entity.LinkRecord{EntityType: "node", EntityField: "body", EntityID: 1, URL: srv.URL + "/fine"}
	badRec := &entity.LinkRecord{EntityType: "node", EntityField: "body", EntityID: 1, URL: srv.URL + "/missing"}
	require.NoError(t, links.Insert(context.Background(), okRec))
	require.NoError(t, links.Insert(context.Background(), badRec))

	c := NewLinkChecker(links, httpcheck.New(time.Second), nil, 0, 4, zap.NewNop())
	processed, failed := c.CheckBatch(context.Background(), batch.Operation[entity.LinkRecord]{Items: []entity.LinkRecord{*okRec, *badRec}})
	assert.Equal(t, 2, processed)
	assert.Zero(t, failed)

	got := links.all()
	assert.Equal(t, entity.StatusOk, got[0].Status)
	assert.Equal(t, entity.StatusBroken, got[1].Status)
	require.NotNil(t, got[1].Reason)
	assert.Contains(t, *got[1].Reason, "404")
}

func TestCheckBatch_SharedURLIsCheckedOnce(t *testing.T) {
	links := newFakeLinks()
	var recs []entity.LinkRecord
	for i := int64(1); i <= 10; i++ {
		r := &entity.LinkRecord{EntityType: "node", EntityField: "body", EntityID: i, URL: "http://shared.example"}
		require.NoError(t, links.Insert(context.Background(), r))
		recs = append(recs, *r)
	}
	checker := newCountingChecker(nil)
	checker.delay = 10 * time.Millisecond
	cache := &mapCache{m: map[string]entity.CheckResult{}}

	c := NewLinkChecker(links, checker, cache, time.Hour, 10, zap.NewNop())
	_, failed := c.CheckBatch(context.Background(), batch.Operation[entity.LinkRecord]{Items: recs})
	assert.Zero(t, failed)
	assert.Equal(t, 1, checker.callsFor("http://shared.example"))

	stats, _ := links.Stats(context.Background())
	assert.Equal(t, int64(10), stats.Ok)
}

func TestCheckBatch_UpdateFailureLeavesRecordUnchecked(t *testing.T) {
	links := newFakeLinks()
	rec := &entity.LinkRecord{EntityType: "node", EntityField: "body", EntityID: 1, URL: "http://a.example"}
	require.NoError(t, links.Insert(context.Background(), rec))
	links.updateErr = errStorage

	c := NewLinkChecker(links, newCountingChecker(nil), nil, 0, 2, zap.NewNop())
	processed, failed := c.CheckBatch(context.Background(), batch.Operation[entity.LinkRecord]{Items: []entity.LinkRecord{*rec}})
	assert.Equal(t, 1, processed)
	assert.Equal(t, 1, failed)
	assert.Equal(t, entity.StatusUnchecked, links.all()[0].Status)
}

func TestCheckBatch_OneSlowLinkDoesNotBlockOthers(t *testing.T) {
	links := newFakeLinks()
	var recs []entity.LinkRecord
	for _, u := range []string{"http://slow.example", "http://a.example", "http://b.example"} {
		r := &entity.LinkRecord{EntityType: "node", EntityField: "body", EntityID: 1, URL: u}
		require.NoError(t, links.Insert(context.Background(), r))
		recs = append(recs, *r)
	}
	slow := &blockingChecker{release: make(chan struct{}), done: map[string]bool{}}

	c := NewLinkChecker(links, slow, nil, 0, 3, zap.NewNop())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.CheckBatch(context.Background(), batch.Operation[entity.LinkRecord]{Items: recs})
	}()

	assert.Eventually(t, func() bool { return slow.finished("http://a.example") && slow.finished("http://b.example") },
		time.Second, 5*time.Millisecond)
	close(slow.release)
	wg.Wait()
}

// blockingChecker holds slow.example until release is closed.
type blockingChecker struct {
	release chan struct{}
	mu      sync.Mutex
	done    map[string]bool
}

func (b *blockingChecker) Check(_ context.Context, url string) entity.CheckResult {
	if url == "http://slow.example" {
		<-b.release
	}
	b.mu.Lock()
	b.done[url] = true
	b.mu.Unlock()
	return entity.CheckResult{Status: entity.StatusOk}
}

func (b *blockingChecker) finished(url string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done[url]
}
