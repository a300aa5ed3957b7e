package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "session expired"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeProtocol, status: http.StatusBadGateway, publicMsg: "backend protocol mismatch", detailsOK: true},
		{code: CodeFinalizeRejected, status: http.StatusBadGateway, publicMsg: "finalize rejected by backend", detailsOK: true},
		{code: CodeCancelled, status: http.StatusRequestTimeout, publicMsg: "operation cancelled"},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "service unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestRetryableClassification(t *testing.T) {
	if Retryable(nil) {
		t.Fatal("nil error must not be retryable")
	}
	if Retryable(New(CodeValidation, "bad slot")) {
		t.Fatal("client failures must not be retryable")
	}
	if Retryable(New(CodeProtocol, "key mismatch")) {
		t.Fatal("protocol mismatches must not be retryable")
	}
	if !Retryable(New(CodeDependency, "backend down")) {
		t.Fatal("backend failures must be retryable")
	}
	if !Retryable(stdErrors.New("connection reset")) {
		t.Fatal("untyped transport errors must be retryable")
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing title")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing title" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatal("details should be nil by default")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeDependency, cause, "presign call")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatal("wrapped error should unwrap to its cause")
	}
	if wrapped.Error() != "BACKEND_UNAVAILABLE: presign call" {
		t.Fatalf("unexpected error string %q", wrapped.Error())
	}

	if got := Wrap(CodeInternal, nil, "no cause"); got.Unwrap() != nil {
		t.Fatal("wrapping nil should behave like New")
	}

	withDetails := New(CodeProtocol, "key mismatch").WithDetails(map[string]any{"key": "trailer"})
	if withDetails.Details() == nil {
		t.Fatal("expected details to be set")
	}
}

func TestAs(t *testing.T) {
	if As(nil) != nil {
		t.Fatal("nil input should return nil")
	}
	if As(stdErrors.New("plain")) != nil {
		t.Fatal("plain errors should not convert")
	}
	inner := New(CodeNotFound, "missing film")
	if got := As(Wrap(CodeDependency, inner, "lookup")); got == nil || got.Code() != CodeDependency {
		t.Fatalf("expected outermost typed error, got %v", got)
	}
}

func TestDump(t *testing.T) {
	if d := Dump(nil); d.TopMessage != "" || len(d.Chain) != 0 {
		t.Fatal("nil error should dump empty")
	}
	err := Wrap(CodeDependency, stdErrors.New("dial tcp"), "upload call")
	d := Dump(err)
	if d.Code != CodeDependency {
		t.Fatalf("unexpected code %s", d.Code)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected chain of 2, got %d", len(d.Chain))
	}
}
