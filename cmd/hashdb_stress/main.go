// Stress driver: hammers one index from many goroutines, then checks that
// every surviving key is found and the hash invariants hold.
package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"hashdb/pkg/hash"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	numWorkers := flag.Int("workers", 8, "number of concurrent workers")
	numOps := flag.Int("n", 10000, "operations per worker")
	dbFlag := flag.String("db", "data/", "DB folder")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	index, err := hash.OpenIndex(filepath.Join(*dbFlag, "stress"))
	if err != nil {
		logger.Fatal("failed to open index", zap.Error(err))
	}

	logger.Info("starting workload",
		zap.Int("workers", *numWorkers),
		zap.Int("ops_per_worker", *numOps))

	// Workers own disjoint key ranges so every insert succeeds and
	// verification can account for each surviving key.
	var eg errgroup.Group
	survivors := make([]map[int64]int64, *numWorkers)
	for w := 0; w < *numWorkers; w++ {
		base := int64(w) * int64(*numOps)
		mine := make(map[int64]int64, *numOps)
		survivors[w] = mine
		eg.Go(func() error {
			rng := rand.New(rand.NewSource(base))
			for i := 0; i < *numOps; i++ {
				key := base + int64(i)
				value := rng.Int63()
				if err := index.Insert(key, value, nil); err != nil {
					return fmt.Errorf("insert %d: %w", key, err)
				}
				mine[key] = value
				// Delete roughly a third of what we insert.
				if rng.Intn(3) == 0 {
					if err := index.Delete(key, nil); err != nil {
						return fmt.Errorf("delete %d: %w", key, err)
					}
					delete(mine, key)
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		logger.Fatal("workload failed", zap.Error(err))
	}

	checked := 0
	for _, mine := range survivors {
		for key, value := range mine {
			found, err := index.Find(key, nil)
			if err != nil {
				logger.Fatal("lost key", zap.Int64("key", key), zap.Error(err))
			}
			if found.Value != value {
				logger.Fatal("wrong value",
					zap.Int64("key", key),
					zap.Int64("want", value),
					zap.Int64("got", found.Value))
			}
			checked++
		}
	}
	if err := index.VerifyIntegrity(); err != nil {
		logger.Fatal("integrity check failed", zap.Error(err))
	}
	if err := index.Close(); err != nil {
		logger.Fatal("close failed", zap.Error(err))
	}
	logger.Info("workload complete", zap.Int("surviving_keys", checked))
}
