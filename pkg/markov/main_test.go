package markov

import (
	"context"
	"database/sql"
	"go/build"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	_ "modernc.org/sqlite"
)

// setupTestDB creates a new SQLite database in a temp dir and a Store for testing.
// It uses t.Cleanup to ensure resources are released.
func setupTestDB(t *testing.T) (*sql.DB, *Store) {
	t.Helper()
	dbFile := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbFile)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := SetupSchema(db); err != nil {
		t.Fatalf("failed to set up schema: %v", err)
	}

	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(s.Close)

	return db, s
}

// setupTestDBWithModel is a convenience helper that also saves a trained model.
func setupTestDBWithModel(t *testing.T) (context.Context, *Store, ModelInfo, *TextGenerator) {
	t.Helper()
	_, s := setupTestDB(t)
	ctx := context.Background()
	modelInfo := ModelInfo{Name: "test_model", Order: 2}

	if err := s.InsertModel(ctx, modelInfo); err != nil {
		t.Fatalf("setup: InsertModel() failed: %v", err)
	}
	modelInfo, err := s.GetModelInfo(ctx, modelInfo.Name)
	if err != nil {
		t.Fatalf("setup: GetModelInfo() failed: %v", err)
	}

	g := newSeededGenerator()
	if err := g.BuildModel("one fish two fish red fish blue fish", modelInfo.Order); err != nil {
		t.Fatalf("setup: BuildModel() failed: %v", err)
	}
	if err := s.SaveChain(ctx, modelInfo, g.Chain()); err != nil {
		t.Fatalf("setup: SaveChain() failed: %v", err)
	}
	return ctx, s, modelInfo, g
}

// newSeededGenerator returns a generator with a fixed random source so runs are repeatable.
func newSeededGenerator() *TextGenerator {
	return NewTextGenerator(WithRandSource(rand.New(rand.NewPCG(1, 2))))
}

var (
	benchmarkCorpus string
	corpusOnce      sync.Once
)

// createBenchmarkCorpus reads Go source files to create a corpus for benchmarking.
func createBenchmarkCorpus() string {
	corpusOnce.Do(func() {
		var sb strings.Builder
		goRoot := build.Default.GOROOT
		filesToRead := []string{
			filepath.Join(goRoot, "src/net/http/server.go"),
			filepath.Join(goRoot, "src/encoding/json/encode.go"),
		}

		for _, file := range filesToRead {
			content, err := os.ReadFile(file)
			if err != nil {
				benchmarkCorpus = "this is a fallback corpus for benchmarking. it is not very long but will prevent a crash. "
				return
			}
			sb.Write(content)
			sb.WriteString("\n")
		}
		benchmarkCorpus = sb.String()
	})
	return benchmarkCorpus
}
