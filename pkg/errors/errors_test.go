package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCode(t *testing.T) {
	t.Parallel()

	meta := MetadataFor(CodeForbidden)
	if meta.HTTPStatus != http.StatusForbidden {
		t.Fatalf("unexpected status: %d", meta.HTTPStatus)
	}
	if meta.PublicMessage != "access denied" {
		t.Fatalf("unexpected public message: %q", meta.PublicMessage)
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	t.Parallel()

	meta := MetadataFor(Code("NOPE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	t.Parallel()

	cause := fmt.Errorf("boom")
	err := Wrap(CodeDependency, cause, "store call failed")

	if !errors.Is(err, cause) {
		t.Fatal("expected cause to be preserved in the chain")
	}
	if err.Code() != CodeDependency {
		t.Fatalf("unexpected code: %s", err.Code())
	}
}

func TestAsFindsTypedError(t *testing.T) {
	t.Parallel()

	inner := New(CodeConflict, "mutation in flight")
	wrapped := fmt.Errorf("outer: %w", inner)

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error")
	}
	if typed.Code() != CodeConflict {
		t.Fatalf("unexpected code: %s", typed.Code())
	}
}

func TestDumpBuildsChain(t *testing.T) {
	t.Parallel()

	err := Wrap(CodeDependency, errors.New("connection refused"), "list cart lines")
	dump := Dump(err)

	if dump.Code != CodeDependency {
		t.Fatalf("unexpected code: %s", dump.Code)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected 2 chain entries, got %d", len(dump.Chain))
	}
}
