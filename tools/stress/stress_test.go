//go:build stress

package stress

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jacekjursza/codehem/core"
	"github.com/jacekjursza/codehem/internal/patch"
	"github.com/jacekjursza/codehem/internal/workspace"
	"github.com/jacekjursza/codehem/providers/builtin"
)

const (
	files   = 8
	writers = 16
	rounds  = 25
)

func TestStressConcurrentPatches(t *testing.T) {
	dir := t.TempDir()
	for f := 0; f < files; f++ {
		source := fmt.Sprintf("class Service%d:\n    def run(self):\n        return %d\n", f, f)
		if err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("svc%d.py", f)), []byte(source), 0o644); err != nil {
			t.Fatalf("write file: %v", err)
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry, err := builtin.NewRegistry(logger)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	ws, err := workspace.Open(context.Background(), dir, registry, workspace.WithLogger(logger))
	if err != nil {
		t.Fatalf("open workspace: %v", err)
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, writers*rounds)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for r := 0; r < rounds; r++ {
				f := (w + r) % files
				body := fmt.Sprintf("def w%d_r%d(self):\n    return %d\n", w, r, r)
				_, err := ws.ApplyPatch(ctx, fmt.Sprintf("svc%d.py", f), fmt.Sprintf("Service%d", f), body, patch.Append, "")
				if err != nil {
					errs <- fmt.Errorf("writer %d round %d: %w", w, r, err)
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	total := 0
	for f := 0; f < files; f++ {
		data, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf("svc%d.py", f)))
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		total += strings.Count(string(data), "    def w")
	}
	if total != writers*rounds {
		t.Fatalf("expected %d appended methods, found %d", writers*rounds, total)
	}
	if got := len(ws.FindAll("run", core.KindMethod)); got != files {
		t.Fatalf("expected %d indexed run methods, got %d", files, got)
	}

	entry, err := registry.Get("python")
	if err != nil {
		t.Fatalf("python: %v", err)
	}
	if stats := entry.Syntax.Stats(); stats.Active != 0 {
		t.Fatalf("expected parser pool to drain, active=%d", stats.Active)
	}
}
