package metrics

import (
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
)

func newTestCollector(namespace string) *Collector {
	return NewCollector(namespace, zap.NewNop())
}

func TestNewCollector(t *testing.T) {
	c := newTestCollector(fmt.Sprintf("test_new_%d", time.Now().UnixNano()))
	if c == nil {
		t.Fatal("expected non-nil collector")
	}
}

func TestCollector_RecordRequest(t *testing.T) {
	c := newTestCollector(fmt.Sprintf("test_req_%d", time.Now().UnixNano()))
	c.RecordRequest("debug", "completed", 120*time.Millisecond)
	c.RecordRequest("debug", "failed", 10*time.Millisecond)
}

func TestCollector_RecordBranch(t *testing.T) {
	c := newTestCollector(fmt.Sprintf("test_branch_%d", time.Now().UnixNano()))
	c.RecordBranch("openai", "gpt-4o", "success", 400*time.Millisecond)
	c.RecordBranch("openai", "gpt-4o", "error", 50*time.Millisecond)
}

func TestCollector_CacheHitMiss(t *testing.T) {
	c := newTestCollector(fmt.Sprintf("test_cache_%d", time.Now().UnixNano()))
	c.RecordCacheHit("result")
	c.RecordCacheMiss("decision")
}

func TestCollector_RecordTrainStep(t *testing.T) {
	c := newTestCollector(fmt.Sprintf("test_train_%d", time.Now().UnixNano()))
	c.RecordTrainStep(0.42, 1000, 0.07)
}

func TestCollector_RecordDBConnections(t *testing.T) {
	c := newTestCollector(fmt.Sprintf("test_db_%d", time.Now().UnixNano()))
	c.RecordDBConnections("capability_manifest", 5, 2)
}
