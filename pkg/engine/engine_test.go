package engine

import (
	"strings"
	"sync"
	"testing"
	"time"
)

func TestEvaluateProducesGraph(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		wantNodes int
		wantRoots int
	}{
		{"empty", "", 0, 0},
		{"whitespace", "   \n\t  \n  ", 0, 0},
		{"comment only", "; nothing to see", 0, 0},
		{"plain arithmetic", "(+ 1 2)", 0, 0},
		{"definitions", "(def x 10)\n(def y 20)\n(+ x y)", 0, 0},
		{"last form solid", "(sphere 3)", 1, 1},
		// zygomys does not evaluate a trailing bare literal as a form, so
		// the sphere stays the last value.
		{"solid then literal", "(sphere 3)\n42", 1, 1},
		{"solid then call", "(sphere 3)\n(+ 1 2)", 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewEngine().EvaluateResult(tt.src)
			if err != nil {
				t.Fatalf("unexpected fatal error: %v", err)
			}
			if len(res.Errors) > 0 {
				t.Fatalf("unexpected eval errors: %v", res.Errors)
			}
			if res.Graph == nil {
				t.Fatal("expected non-nil graph")
			}
			if got := res.Graph.NodeCount(); got != tt.wantNodes {
				t.Errorf("nodes = %d, want %d", got, tt.wantNodes)
			}
			if got := len(res.Graph.Roots); got != tt.wantRoots {
				t.Errorf("roots = %d, want %d", got, tt.wantRoots)
			}
		})
	}
}

func TestEvaluateReportsEvalErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unmatched paren", "(union (sphere 1)"},
		{"undefined symbol", "(translate ball 1 2 3)"},
		{"error on second line", "(sphere 1)\n(box 1 2"},
		{"builtin misuse", "(negate)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, evalErrs, err := NewEngine().Evaluate(tt.src)
			if err != nil {
				t.Fatalf("expected non-fatal eval error, got fatal: %v", err)
			}
			if g != nil {
				t.Fatal("expected nil graph on eval error")
			}
			if len(evalErrs) == 0 {
				t.Fatal("expected at least one eval error")
			}
			if evalErrs[0].Message == "" {
				t.Error("eval error message should not be empty")
			}
			t.Logf("line=%d message=%q", evalErrs[0].Line, evalErrs[0].Message)
		})
	}
}

func TestEvalErrorString(t *testing.T) {
	if got := (EvalError{Line: 5, Message: "bad radius"}).Error(); got != "line 5: bad radius" {
		t.Errorf("Error() = %q", got)
	}
	if got := (EvalError{Message: "no location"}).Error(); strings.Contains(got, "line") {
		t.Errorf("Error() without a line should not mention one, got %q", got)
	}
}

func TestEvaluateRepeatable(t *testing.T) {
	eng := NewEngine()
	src := "(difference (box 4 4 4) (sphere 2.5) :r 0.5)"
	var first int
	for i := 0; i < 5; i++ {
		g, evalErrs, err := eng.Evaluate(src)
		if err != nil || len(evalErrs) > 0 {
			t.Fatalf("iteration %d: %v %v", i, err, evalErrs)
		}
		if i == 0 {
			first = g.NodeCount()
			continue
		}
		if g.NodeCount() != first {
			t.Errorf("iteration %d: %d nodes, first run had %d", i, g.NodeCount(), first)
		}
	}
}

func TestEvaluateTimeout(t *testing.T) {
	// zygomys cannot be interrupted mid-loop, so the timeout plumbing is
	// tested directly with a channel that never sends.
	var mu sync.Mutex
	var gen uint64 = 1
	ch := make(chan evalResult) // Never sends

	done := make(chan struct{})
	var resultErr error
	go func() {
		defer close(done)
		_, resultErr = waitWithTimeout(ch, 1, 50*time.Millisecond, &mu, &gen)
	}()

	select {
	case <-done:
		if resultErr == nil {
			t.Fatal("expected timeout error, got nil")
		}
		if !strings.Contains(resultErr.Error(), "timed out after 50ms") {
			t.Errorf("expected timeout error message, got: %v", resultErr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("test itself timed out waiting for evaluation timeout")
	}
}

func TestWithTimeout(t *testing.T) {
	if got := NewEngine().timeout; got != EvalTimeout {
		t.Errorf("default timeout = %s, want %s", got, EvalTimeout)
	}
	if got := NewEngine(WithTimeout(time.Second)).timeout; got != time.Second {
		t.Errorf("timeout = %s, want 1s", got)
	}
	if got := NewEngine(WithTimeout(-1)).timeout; got != EvalTimeout {
		t.Errorf("non-positive timeout should be ignored, got %s", got)
	}
}

func TestEvaluateGenerationDiscardsStale(t *testing.T) {
	var mu sync.Mutex
	gen := uint64(2) // Current generation is 2

	ch := make(chan evalResult, 1)
	ch <- evalResult{}

	// Pass generation 1 (stale).
	_, err := waitWithTimeout(ch, 1, time.Second, &mu, &gen)
	if err == nil {
		t.Fatal("expected error for stale generation")
	}
	if !strings.Contains(err.Error(), "superseded") {
		t.Errorf("expected superseded error, got: %v", err)
	}
}

func TestEvaluateCountsGenerations(t *testing.T) {
	eng := NewEngine()
	for i := 0; i < 3; i++ {
		if _, _, err := eng.Evaluate("(+ 1 2)"); err != nil {
			t.Fatalf("unexpected fatal error: %v", err)
		}
	}
	if got := eng.Generation(); got != 3 {
		t.Errorf("Generation() = %d, want 3", got)
	}
}

func TestEvaluatePanicIsFatal(t *testing.T) {
	var mu sync.Mutex
	gen := uint64(1)
	ch := make(chan evalResult, 1)
	ch <- evalResult{err: errString("panic during evaluation: boom")}

	if _, err := waitWithTimeout(ch, 1, time.Second, &mu, &gen); err == nil {
		t.Fatal("expected fatal error to be passed through")
	}
}

func TestParseZygomysError(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		wantLine int
		wantMsg  string
	}{
		{
			name:     "error on line format",
			msg:      "Error on line 5: unexpected token\n",
			wantLine: 5,
			wantMsg:  "unexpected token",
		},
		{
			name:     "no line info",
			msg:      "some generic error",
			wantLine: 0,
			wantMsg:  "some generic error",
		},
		{
			name:     "line format lowercase",
			msg:      "error on line 12: missing paren",
			wantLine: 12,
			wantMsg:  "missing paren",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := parseZygomysError(errString(tt.msg))
			if len(errs) == 0 {
				t.Fatal("expected at least one error")
			}
			e := errs[0]
			if e.Line != tt.wantLine {
				t.Errorf("line = %d, want %d", e.Line, tt.wantLine)
			}
			if !strings.Contains(e.Message, tt.wantMsg) {
				t.Errorf("message = %q, want containing %q", e.Message, tt.wantMsg)
			}
		})
	}
}

// errString is a simple error type for testing.
type errString string

func (e errString) Error() string { return string(e) }
