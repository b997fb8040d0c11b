package telemetry_test

import (
	"context"
	"fmt"
	"time"

	"github.com/plusconf/plusconf/pkg/telemetry"
)

// ExampleWarner shows that every warning is recorded even when a once-only
// warning is logged a single time.
func ExampleWarner() {
	once := telemetry.NewOnceSet()
	for i := 0; i < 2; i++ {
		w := telemetry.NewWarner(telemetry.Nop(), nil, once)
		w.WarnOnce("slow-discovery", "Crawling your plus files took 3s")
		w.Warn("/pages/+title.star overridden by another file")
		fmt.Println(len(w.Warnings()))
	}
	fmt.Println(once.First("slow-discovery"))
	// Output:
	// 2
	// 2
	// false
}

// ExampleEventPublisher_Subscribe delivers pass events to a filtered
// subscriber.
func ExampleEventPublisher_Subscribe() {
	events, _ := telemetry.NewEventPublisher(telemetry.EventsConfig{Enabled: true})
	defer events.Shutdown(context.Background())

	events.Subscribe(func(e telemetry.Event) {
		fmt.Println(e.Type, e.Message)
	}, telemetry.FilterByType(telemetry.EventTypePassCompleted, telemetry.EventTypeConfigRecovered))

	_ = events.PublishPassStarted("p1")
	_ = events.PublishPassCompleted("p1", 3, 0, 20*time.Millisecond)
	_ = events.PublishConfigRecovered("p1")
	// Output:
	// pass.completed Pass p1 resolved 3 pages
	// config.recovered configuration is valid again
}
