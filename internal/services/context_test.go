package services_test

import (
	"context"
	"testing"

	"flacbatch/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-123")
	ctx = services.WithStage(ctx, "conversion")
	ctx = services.WithRelPath(ctx, "sub/b.wav")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-123" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "conversion" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rel, ok := services.RelPathFromContext(ctx); !ok || rel != "sub/b.wav" {
		t.Fatalf("unexpected rel path: %v %v", rel, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
}
