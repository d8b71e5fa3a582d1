// gen-diagrams renders the embedded script, paused at its decision gate, for
// README documentation.
// Run: go run ./cmd/gen-diagrams
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rendis/conclave/internal/diagram"
	"github.com/rendis/conclave/internal/engine"
	"github.com/rendis/conclave/internal/logging"
	"github.com/rendis/conclave/internal/script"
	"github.com/rendis/conclave/pkg/schema"
)

func main() {
	if err := run(context.Background(), filepath.Join("docs", "assets")); err != nil {
		fmt.Fprintf(os.Stderr, "gen-diagrams: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, outDir string) error {
	state, err := pausedAtGate(ctx)
	if err != nil {
		return err
	}

	model, err := diagram.Build(script.MustDefault(), &state)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	// ASCII (mermaid-ascii with hand-rolled fallback)
	home, _ := os.UserHomeDir()
	ascii := diagram.RenderASCIIAuto(ctx, model, filepath.Join(home, ".conclave", "bin"))
	if err := os.WriteFile(filepath.Join(outDir, "diagram-ascii.txt"), []byte(ascii), 0o644); err != nil {
		return err
	}
	fmt.Println("=== ASCII ===")
	fmt.Println(ascii)

	mermaid := diagram.RenderMermaid(model)
	if err := os.WriteFile(filepath.Join(outDir, "diagram-mermaid.md"), []byte("```mermaid\n"+mermaid+"\n```\n"), 0o644); err != nil {
		return err
	}
	fmt.Println("=== Mermaid ===")
	fmt.Println(mermaid)

	png, err := diagram.RenderImage(ctx, model, diagram.FormatPNG)
	if err != nil {
		fmt.Fprintf(os.Stderr, "image error: %v\n", err)
		return nil
	}
	pngPath := filepath.Join(outDir, "diagram-sample.png")
	if err := os.WriteFile(pngPath, png, 0o644); err != nil {
		return err
	}
	fmt.Printf("=== Image (PNG) ===\nWritten: %s (%d bytes)\n", pngPath, len(png))
	return nil
}

// pausedAtGate plays the embedded script without delays until the decision
// gate opens and returns that snapshot.
func pausedAtGate(ctx context.Context) (schema.RunState, error) {
	seq, err := engine.NewSequencer(script.MustDefault(), engine.Config{Logger: logging.Discard()})
	if err != nil {
		return schema.RunState{}, err
	}
	defer seq.Close()

	if _, err := seq.Start(ctx, "Build a login page"); err != nil {
		return schema.RunState{}, err
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap := seq.Snapshot()
		if snap.Status == schema.RunStatusAwaitingDecision {
			return snap, nil
		}
		if !snap.IsRunning && snap.Status.IsTerminal() {
			return snap, fmt.Errorf("run ended as %s before the decision gate", snap.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
	return schema.RunState{}, fmt.Errorf("timed out waiting for the decision gate")
}
