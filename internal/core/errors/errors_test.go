package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeNotFound, "config file missing")
		if err.Error() != "[NOT_FOUND] config file missing" {
			t.Errorf("expected [NOT_FOUND] config file missing, got %s", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("connection refused")
		err := Wrap(original, CodeTransport, "p4 changes failed")
		expected := "[TRANSPORT] p4 changes failed: connection refused"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
		if !errors.Is(err, original) {
			t.Error("expected wrapped error to unwrap to the original")
		}
	})

	t.Run("IsCode", func(t *testing.T) {
		err := New(CodeContract, "monitor already started")
		if !IsCode(err, CodeContract) {
			t.Error("expected IsCode to return true for CodeContract")
		}
		if IsCode(err, CodeNotFound) {
			t.Error("expected IsCode to return false for CodeNotFound")
		}
	})

	t.Run("IsNotFoundThroughFmtWrap", func(t *testing.T) {
		err := fmt.Errorf("resolve archive config: %w", New(CodeNotFound, "no such file"))
		if !IsNotFound(err) {
			t.Error("expected IsNotFound to see through fmt.Errorf wrapping")
		}
		if IsNotFound(Wrap(errors.New("eof"), CodeTransport, "read")) {
			t.Error("transport errors must not be reported as not found")
		}
	})

	t.Run("AddContextPromotesPlainErrors", func(t *testing.T) {
		err := AddContext(errors.New("boom"), CtxOperation, "merge")
		if !IsCode(err, CodeInternal) {
			t.Fatalf("expected INTERNAL_ERROR promotion, got %v", err)
		}
		var de *DomainError
		if !errors.As(err, &de) || de.Context[CtxOperation] != "merge" {
			t.Fatalf("expected operation context, got %#v", de)
		}
	})

	t.Run("AddContextKeepsCode", func(t *testing.T) {
		err := AddContext(New(CodeTransport, "timeout"), CtxCycle, "abc")
		if !IsCode(err, CodeTransport) {
			t.Fatalf("expected TRANSPORT code to survive, got %v", err)
		}
	})

	t.Run("AddContextReachesWrappedDomainError", func(t *testing.T) {
		inner := New(CodeNotFound, "no such file")
		err := AddContext(fmt.Errorf("print config: %w", inner), CtxPath, "Build/RevWatch.ini")
		var de *DomainError
		if !errors.As(inner, &de) || de.Context[CtxPath] != "Build/RevWatch.ini" {
			t.Fatalf("expected path context on the inner error, got %#v", de)
		}
		if !IsNotFound(err) {
			t.Fatalf("expected NOT_FOUND to survive, got %v", err)
		}
	})
}
