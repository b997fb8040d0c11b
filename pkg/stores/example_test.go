package stores_test

import (
	"context"
	"fmt"
	"log"

	"github.com/plusconf/plusconf/pkg/engine"
	"github.com/plusconf/plusconf/pkg/stores"
)

// ExampleSQLiteStore_LastValid records a valid pass followed by a failed
// one and reads back the last valid configuration.
func ExampleSQLiteStore_LastValid() {
	store, err := stores.NewSQLiteStore(stores.Config{Path: ":memory:"})
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		log.Fatal(err)
	}
	if err := store.Migrate(ctx); err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	_ = store.Record(ctx, "pass-1", engine.EmptyResult("pass-1"), nil)
	_ = store.Record(ctx, "pass-2", nil, engine.Usagef("/pages/+config.yaml is invalid"))

	snap, err := store.LastValid(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(snap.PassID)
	// Output: pass-1
}
