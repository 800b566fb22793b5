// Package benchmark contains Go benchmarks for the sorted name index and the
// suggestion engine, measuring query latency and mutation throughput.
package benchmark

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopstream-labs/catalog-suggest/internal/catalog"
	"github.com/shopstream-labs/catalog-suggest/internal/suggest"
	"github.com/shopstream-labs/catalog-suggest/internal/suggest/index"
)

var benchNames = []string{
	"milk", "whole milk", "skim milk", "bread", "sourdough bread",
	"butter", "cheddar cheese", "cherry tomatoes", "chocolate", "tomato paste",
	"apple", "apricot", "avocado", "olive oil", "orange juice",
	"pasta", "peanut butter", "rice", "salmon fillet", "yogurt",
}

func benchRecord(i int) catalog.ItemRecord {
	return catalog.ItemRecord{
		ID:                  fmt.Sprintf("item-%06d", i),
		Name:                fmt.Sprintf("%s %d", benchNames[i%len(benchNames)], i),
		ShoppingCategory:    "Grocery",
		ShoppingSubcategory: "Pantry",
		ItemCategory:        "Food",
		ItemSubcategory:     "Staples",
	}
}

func loadedBenchEngine(b *testing.B, n int) *suggest.Engine {
	records := make([]catalog.ItemRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, benchRecord(i))
	}
	e := suggest.NewEngine()
	if err := e.Load(records); err != nil {
		b.Fatalf("Load() = %v", err)
	}
	return e
}

// BenchmarkIndexBuild measures bulk index construction at various catalog
// sizes. This is the startup path.
func BenchmarkIndexBuild(b *testing.B) {
	for _, size := range []int{1000, 10000, 100000} {
		b.Run(fmt.Sprintf("size-%d", size), func(b *testing.B) {
			entries := make([]index.Entry, 0, size)
			for i := 0; i < size; i++ {
				rec := benchRecord(i)
				entries = append(entries, index.NewEntry(rec.Name, rec.ID))
			}
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				idx := index.Build(entries)
				_ = idx
			}
		})
	}
}

// BenchmarkIndexInsert measures incremental insert cost into an index holding
// 10 000 entries. The slice shift dominates.
func BenchmarkIndexInsert(b *testing.B) {
	entries := make([]index.Entry, 0, 10000)
	for i := 0; i < 10000; i++ {
		rec := benchRecord(i)
		entries = append(entries, index.NewEntry(rec.Name, rec.ID))
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		idx := index.Build(entries)
		b.StartTimer()
		idx.Insert("new item", fmt.Sprintf("bench-%d", i))
	}
}

// BenchmarkEngineQuery measures prefix query latency over 10 000 items.
func BenchmarkEngineQuery(b *testing.B) {
	e := loadedBenchEngine(b, 10000)
	prefixes := []string{"mi", "ch", "to", "a", "sour", "zzz"}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		names, err := e.Query(prefixes[i%len(prefixes)], 10)
		if err != nil {
			b.Fatal(err)
		}
		_ = names
	}
}

// BenchmarkEngineQueryParallel measures concurrent read throughput under the
// shared lock.
func BenchmarkEngineQueryParallel(b *testing.B) {
	e := loadedBenchEngine(b, 10000)
	prefixes := []string{"mi", "ch", "to", "a", "sour", "zzz"}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			names, err := e.Query(prefixes[i%len(prefixes)], 10)
			if err != nil {
				b.Fatal(err)
			}
			_ = names
			i++
		}
	})
}

// BenchmarkEngineAddDelete measures mutation throughput with an add
// immediately followed by a delete, keeping the catalog size stable.
func BenchmarkEngineAddDelete(b *testing.B) {
	e := loadedBenchEngine(b, 10000)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		id := fmt.Sprintf("bench-%d", i)
		rec := catalog.ItemRecord{
			ID:                  id,
			Name:                benchNames[i%len(benchNames)],
			ShoppingCategory:    "Grocery",
			ShoppingSubcategory: "Pantry",
			ItemCategory:        "Food",
			ItemSubcategory:     "Staples",
		}
		if err := e.AddItem(rec); err != nil {
			b.Fatal(err)
		}
		if err := e.DeleteItem(id); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkEngineSnapshot measures the cost of a full point-in-time copy, the
// export path.
func BenchmarkEngineSnapshot(b *testing.B) {
	e := loadedBenchEngine(b, 10000)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		snap := e.Snapshot()
		_ = snap
	}
}

// BenchmarkEngineMixedWorkload interleaves queries with occasional mutations
// at a roughly 95/5 read-to-write ratio.
func BenchmarkEngineMixedWorkload(b *testing.B) {
	e := loadedBenchEngine(b, 10000)
	rng := rand.New(rand.NewSource(1))
	prefixes := []string{"mi", "ch", "to", "a"}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if rng.Intn(20) == 0 {
			id := fmt.Sprintf("mixed-%d", i)
			rec := catalog.ItemRecord{
				ID:                  id,
				Name:                "mixed item",
				ShoppingCategory:    "Grocery",
				ShoppingSubcategory: "Pantry",
				ItemCategory:        "Food",
				ItemSubcategory:     "Staples",
			}
			if err := e.AddItem(rec); err != nil {
				b.Fatal(err)
			}
			if err := e.DeleteItem(id); err != nil {
				b.Fatal(err)
			}
			continue
		}
		if _, err := e.Query(prefixes[i%len(prefixes)], 10); err != nil {
			b.Fatal(err)
		}
	}
}
