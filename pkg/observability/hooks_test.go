package observability

import (
	"context"
	"sync"
	"testing"
	"time"
)

type stageRecorder struct {
	NoopExportHooks
	mu     sync.Mutex
	stages []string
}

func (r *stageRecorder) OnStageStart(_ context.Context, op, stage string) {
	r.mu.Lock()
	r.stages = append(r.stages, op+"/"+stage)
	r.mu.Unlock()
}

type cacheCounter struct {
	NoopCacheHooks
	hits int
}

func (c *cacheCounter) OnCacheHit(context.Context, string) { c.hits++ }

func TestDefaultsAreNoop(t *testing.T) {
	Reset()
	ctx := context.Background()

	if _, ok := Export().(NoopExportHooks); !ok {
		t.Errorf("Export() = %T, want NoopExportHooks", Export())
	}
	if _, ok := Cache().(NoopCacheHooks); !ok {
		t.Errorf("Cache() = %T, want NoopCacheHooks", Cache())
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Errorf("HTTP() = %T, want NoopHTTPHooks", HTTP())
	}

	Export().OnStageComplete(ctx, "copy", "sinking", time.Millisecond, nil)
	Cache().OnCacheSet(ctx, "image", 10)
	HTTP().OnResponse(ctx, "GET", "ui-avatars.com", "/api/", 200, time.Millisecond)
}

func TestSetHooksIndependently(t *testing.T) {
	Reset()
	defer Reset()
	ctx := context.Background()

	rec := &stageRecorder{}
	SetExportHooks(rec)
	counter := &cacheCounter{}
	SetCacheHooks(counter)
	SetExportHooks(nil)

	Export().OnStageStart(ctx, "download", "cloning")
	Cache().OnCacheHit(ctx, "image")

	if len(rec.stages) != 1 || rec.stages[0] != "download/cloning" {
		t.Errorf("stages = %v", rec.stages)
	}
	if counter.hits != 1 {
		t.Errorf("hits = %d, want 1", counter.hits)
	}
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Error("setting export and cache hooks must not touch HTTP hooks")
	}

	Reset()
	if Export() == ExportHooks(rec) {
		t.Error("Reset() should drop installed hooks")
	}
}

func TestConcurrentSetAndEmit(t *testing.T) {
	Reset()
	defer Reset()
	ctx := context.Background()
	rec := &stageRecorder{}

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				SetExportHooks(rec)
			} else {
				SetHTTPHooks(NoopHTTPHooks{})
			}
		}()
		go func() {
			defer wg.Done()
			Export().OnStageStart(ctx, "download", "rasterizing")
		}()
	}
	wg.Wait()

	if Export() != ExportHooks(rec) {
		t.Errorf("Export() = %T after concurrent sets", Export())
	}
}
