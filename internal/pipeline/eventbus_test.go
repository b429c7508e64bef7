package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isaomisk/HoroloGen/internal/policy"
	"github.com/isaomisk/HoroloGen/pkg/article"
)

type eventCollector struct {
	mu     sync.Mutex
	events []*GenerationEvent
}

func (c *eventCollector) handler(_ context.Context, event *GenerationEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *eventCollector) types() []EventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]EventType, len(c.events))
	for i, e := range c.events {
		out[i] = e.Type
	}
	return out
}

func (c *eventCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func TestEventBusDeliversToMatchingSubscriber(t *testing.T) {
	bus := NewEventBus(16, 1)
	defer bus.Close()

	collector := &eventCollector{}
	bus.Subscribe([]EventType{EventDraftGenerated}, collector.handler)

	require.NoError(t, bus.Publish(NewGenerationEvent(EventDraftGenerated, "gen-1")))
	require.NoError(t, bus.Publish(NewGenerationEvent(EventGenerationFailed, "gen-2")))

	assert.Eventually(t, func() bool {
		return collector.count() == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "gen-1", collector.events[0].GenerationID)

	stats := bus.GetStats()
	assert.Equal(t, int64(2), stats.EventsPublished)
	assert.Equal(t, int64(1), stats.ActiveSubscribers)
}

func TestEventBusUnsubscribe(t *testing.T) {
	bus := NewEventBus(16, 1)
	defer bus.Close()

	collector := &eventCollector{}
	sub := bus.Subscribe([]EventType{EventDraftGenerated}, collector.handler)
	require.NoError(t, bus.Unsubscribe(sub.ID))
	assert.Error(t, bus.Unsubscribe(sub.ID))

	require.NoError(t, bus.Publish(NewGenerationEvent(EventDraftGenerated, "gen-1")))
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, collector.count())
}

func TestEventBusDropsWhenBufferFull(t *testing.T) {
	bus := NewEventBus(1, 0)
	defer bus.Close()

	require.NoError(t, bus.Publish(NewGenerationEvent(EventDraftGenerated, "gen-1")))

	err := bus.Publish(NewGenerationEvent(EventDraftGenerated, "gen-2"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "buffer is full")
	assert.Equal(t, int64(1), bus.GetStats().EventsPublished)
}

func TestEventBusCountsHandlerFailures(t *testing.T) {
	bus := NewEventBus(16, 1)
	defer bus.Close()

	bus.Subscribe([]EventType{EventGenerationFailed}, func(_ context.Context, _ *GenerationEvent) error {
		return errors.New("handler broke")
	})
	require.NoError(t, bus.Publish(NewGenerationEvent(EventGenerationFailed, "gen-1")))

	assert.Eventually(t, func() bool {
		return bus.GetStats().EventsFailed == 1
	}, time.Second, 10*time.Millisecond)
}

func TestPipelinePublishesLifecycleEvents(t *testing.T) {
	bus := NewEventBus(16, 1)
	defer bus.Close()

	collector := &eventCollector{}
	bus.Subscribe([]EventType{
		EventGenerationStarted,
		EventReferenceSelected,
		EventDraftGenerated,
		EventRewriteApplied,
	}, collector.handler)

	backend := &scriptedBackend{drafts: []article.ArticleDraft{
		{IntroText: "参考資料と重ならない紹介文です。", SpecsText: "・ムーブメント：自動巻き"},
	}}
	g := newGenerator(backend, fixedFetch(sourceText()))
	g.AttachEventBus(bus)

	_, _, err := g.Generate(context.Background(), testPayload(), article.RewriteNone)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return collector.count() == 3
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, []EventType{
		EventGenerationStarted,
		EventReferenceSelected,
		EventDraftGenerated,
	}, collector.types())
}

func TestPipelinePublishesPolicyViolation(t *testing.T) {
	bus := NewEventBus(16, 1)
	defer bus.Close()

	collector := &eventCollector{}
	bus.Subscribe([]EventType{EventPolicyViolation}, collector.handler)

	backend := &scriptedBackend{drafts: []article.ArticleDraft{
		{IntroText: "マストバイの一本です。", SpecsText: "・ムーブメント：自動巻き"},
	}}
	g := newGenerator(backend, fixedFetch(sourceText()))
	g.AttachEventBus(bus)

	_, _, err := g.Generate(context.Background(), testPayload(), article.RewriteNone)
	var violation *policy.Violation
	require.ErrorAs(t, err, &violation)

	assert.Eventually(t, func() bool {
		return collector.count() == 1
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, collector.events[0].Error, "マストバイ")
}
