package checkpoint_test

import (
	"context"
	"encoding/json"
	"testing"

	"reelforge/internal/checkpoint"
	"reelforge/internal/testsupport"
)

func TestCreateAndGetRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	run := testsupport.NewRun(t, store, "run-1", `{"topic":"volcanoes"}`)
	if run.Status != checkpoint.StatusRunning {
		t.Fatalf("new run status = %s, want running", run.Status)
	}

	fetched, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if fetched == nil || fetched.InputJSON != `{"topic":"volcanoes"}` {
		t.Fatalf("unexpected fetched run: %#v", fetched)
	}

	missing, err := store.GetRun(ctx, "no-such-run")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for unknown run, got %#v", missing)
	}
}

func TestCreateRunRequiresID(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.CreateRun(context.Background(), "", "{}"); err == nil {
		t.Fatal("expected error for empty run id")
	}
}

func TestSaveAssignsMonotonicSequence(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewRun(t, store, "run-seq", "{}")

	stages := []string{"script", "segment", "narrate"}
	for _, stage := range stages {
		artifact, err := checkpoint.NewArtifact(stage, map[string]string{"stage": stage})
		if err != nil {
			t.Fatalf("NewArtifact: %v", err)
		}
		if err := store.Save(ctx, "run-seq", stage, artifact); err != nil {
			t.Fatalf("Save %s failed: %v", stage, err)
		}
	}

	records, err := store.LoadLatest(ctx, "run-seq")
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if len(records) != len(stages) {
		t.Fatalf("expected %d records, got %d", len(stages), len(records))
	}
	for i, record := range records {
		if record.Seq != int64(i+1) {
			t.Fatalf("record %d seq = %d, want %d", i, record.Seq, i+1)
		}
		if record.Stage != stages[i] {
			t.Fatalf("record %d stage = %s, want %s", i, record.Stage, stages[i])
		}
	}
}

func TestLoadLatestReturnsHighestSequencePerStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	testsupport.NewRun(t, store, "run-re", "{}")

	first, _ := checkpoint.NewArtifact("script", map[string]int{"rev": 1})
	second, _ := checkpoint.NewArtifact("script", map[string]int{"rev": 2})
	if err := store.Save(ctx, "run-re", "script", first); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, "run-re", "script", second); err != nil {
		t.Fatalf("Save: %v", err)
	}

	records, err := store.LoadLatest(ctx, "run-re")
	if err != nil {
		t.Fatalf("LoadLatest failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	var payload map[string]int
	if err := json.Unmarshal(records[0].Artifact.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["rev"] != 2 {
		t.Fatalf("expected latest revision, got %v", payload)
	}
}

func TestUpdateRunTransitions(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	run := testsupport.NewRun(t, store, "run-up", "{}")

	run.Status = checkpoint.StatusFailed
	run.CurrentStage = "images"
	run.ErrorMessage = "image provider exhausted retries"
	if err := store.UpdateRun(ctx, run); err != nil {
		t.Fatalf("UpdateRun failed: %v", err)
	}

	fetched, err := store.GetRun(ctx, "run-up")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if fetched.Status != checkpoint.StatusFailed || fetched.CurrentStage != "images" {
		t.Fatalf("unexpected run after update: %#v", fetched)
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	type timing struct {
		Index      int   `json:"index"`
		DurationMS int64 `json:"duration_ms"`
	}
	artifact, err := checkpoint.NewArtifact("segment-timings", []timing{{0, 3200}, {1, 4100}})
	if err != nil {
		t.Fatalf("NewArtifact: %v", err)
	}
	var decoded []timing
	if err := artifact.Decode(&decoded); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(decoded) != 2 || decoded[1].DurationMS != 4100 {
		t.Fatalf("unexpected decode: %#v", decoded)
	}
}

func TestParseStatus(t *testing.T) {
	if status, ok := checkpoint.ParseStatus(" Running "); !ok || status != checkpoint.StatusRunning {
		t.Fatalf("ParseStatus = %q, %v", status, ok)
	}
	if _, ok := checkpoint.ParseStatus("exploded"); ok {
		t.Fatal("expected unknown status to fail")
	}
	if !checkpoint.StatusComplete.IsTerminal() || checkpoint.StatusRunning.IsTerminal() {
		t.Fatal("terminal classification wrong")
	}
}
