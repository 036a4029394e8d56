package pelikan

import (
	"errors"
	"fmt"
	"testing"
)

func TestStructuredError(t *testing.T) {
	err := NewError("LISTEN", ErrCodeInvalidParameters, "bad port")

	if err.Op != "LISTEN" {
		t.Errorf("Expected Op=LISTEN, got %s", err.Op)
	}
	if err.Code != ErrCodeInvalidParameters {
		t.Errorf("Expected Code=ErrCodeInvalidParameters, got %s", err.Code)
	}

	expected := "pelikan: LISTEN: bad port"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestErrorWithAddr(t *testing.T) {
	err := &Error{Op: "LISTEN", Addr: "127.0.0.1:12211", Code: ErrCodeListenFailed, Msg: "address in use"}
	expected := "pelikan: LISTEN: address in use (addr=127.0.0.1:12211)"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestWrapError(t *testing.T) {
	inner := fmt.Errorf("listen tcp: address already in use")
	err := WrapError("LISTEN", inner)

	if err.Code != ErrCodeListenFailed {
		t.Errorf("Expected Code=ErrCodeListenFailed, got %s", err.Code)
	}
	if !errors.Is(err, inner) {
		t.Error("Expected wrapped error to satisfy errors.Is for the inner error")
	}
}

func TestWrapErrorNilIsNil(t *testing.T) {
	if WrapError("LISTEN", nil) != nil {
		t.Error("WrapError(op, nil) should return nil")
	}
}

func TestWrapErrorPreservesStructuredError(t *testing.T) {
	inner := NewError("ENGINE_INIT", ErrCodeEngineInit, "out of memory")
	wrapped := WrapError("CREATE_AND_SERVE", inner)

	if wrapped.Code != ErrCodeEngineInit {
		t.Errorf("Expected Code to be preserved as ErrCodeEngineInit, got %s", wrapped.Code)
	}
	if wrapped.Op != "CREATE_AND_SERVE" {
		t.Errorf("Expected Op to be overwritten to CREATE_AND_SERVE, got %s", wrapped.Op)
	}
}

func TestIsCode(t *testing.T) {
	err := NewError("TEST", ErrCodeTimeout, "operation timed out")

	if !IsCode(err, ErrCodeTimeout) {
		t.Error("IsCode should return true for matching code")
	}
	if IsCode(err, ErrCodeIOError) {
		t.Error("IsCode should return false for non-matching code")
	}
	if IsCode(nil, ErrCodeTimeout) {
		t.Error("IsCode should return false for nil error")
	}
}

func TestErrorIsComparesByCode(t *testing.T) {
	a := NewError("LISTEN", ErrCodeListenFailed, "first")
	b := NewError("OTHER_OP", ErrCodeListenFailed, "second")

	if !errors.Is(a, b) {
		t.Error("two *Error values with the same Code should satisfy errors.Is")
	}
}
