package assembler_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"reelforge/internal/assembler"
	"reelforge/internal/testsupport"
)

func TestAssembleInvokesFFmpegWithConcatList(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := t.TempDir()
	clipA := filepath.Join(base, "clip-a.mp4")
	clipB := filepath.Join(base, "clip-b.mp4")
	audio := filepath.Join(base, "narration.mp3")
	output := filepath.Join(base, "out", "final.mp4")
	for _, path := range []string{clipA, clipB, audio} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	var gotName string
	var gotArgs []string
	var listContent string
	asm := assembler.New(cfg, nil, assembler.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		gotName = name
		gotArgs = args
		for i, arg := range args {
			if arg == "-i" && i+1 < len(args) && strings.HasSuffix(args[i+1], ".concat.txt") {
				data, err := os.ReadFile(args[i+1])
				if err != nil {
					t.Errorf("concat list unreadable: %v", err)
				}
				listContent = string(data)
			}
		}
		return nil
	}))

	err := asm.Assemble(context.Background(), assembler.Request{
		ClipPaths:  []string{clipA, clipB},
		AudioPath:  audio,
		OutputPath: output,
	})
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if gotName != "ffmpeg" {
		t.Fatalf("unexpected binary %q", gotName)
	}
	if gotArgs[len(gotArgs)-1] != output {
		t.Fatalf("output path missing from args: %v", gotArgs)
	}
	if !strings.Contains(listContent, "clip-a.mp4") || !strings.Contains(listContent, "clip-b.mp4") {
		t.Fatalf("concat list incomplete: %q", listContent)
	}
	if strings.Index(listContent, "clip-a.mp4") > strings.Index(listContent, "clip-b.mp4") {
		t.Fatal("clips out of order in concat list")
	}
}

func TestAssembleRequiresClips(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	asm := assembler.New(cfg, nil, assembler.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		t.Fatal("ffmpeg should not run without clips")
		return nil
	}))
	err := asm.Assemble(context.Background(), assembler.Request{
		AudioPath:  "audio.mp3",
		OutputPath: "out.mp4",
	})
	if err == nil {
		t.Fatal("expected error for empty clip list")
	}
}

func TestAssembleCleansUpConcatList(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	base := t.TempDir()
	clip := filepath.Join(base, "clip.mp4")
	if err := os.WriteFile(clip, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	output := filepath.Join(base, "final.mp4")
	asm := assembler.New(cfg, nil, assembler.WithCommandRunner(func(ctx context.Context, name string, args ...string) error {
		return nil
	}))
	if err := asm.Assemble(context.Background(), assembler.Request{
		ClipPaths:  []string{clip},
		AudioPath:  filepath.Join(base, "audio.mp3"),
		OutputPath: output,
	}); err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if _, err := os.Stat(output + ".concat.txt"); !os.IsNotExist(err) {
		t.Fatal("concat list not cleaned up")
	}
}
