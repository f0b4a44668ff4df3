package monitoring

import (
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("adjusted height range: %g to %g m", 0.0, 2.0)
	if !called {
		t.Error("Custom logger was not called")
	}

	// nil installs a no-op that must not reach the previous logger.
	called = false
	SetLogger(nil)
	Logf("test")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestCapture(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	lines, restore := Capture()
	Logf("kept %d of %d points", 40, 240)
	Logf("second")
	restore()
	Logf("after restore")

	if len(*lines) != 2 {
		t.Fatalf("expected 2 captured lines, got %d: %v", len(*lines), *lines)
	}
	if (*lines)[0] != "kept 40 of 240 points" {
		t.Errorf("unexpected first line %q", (*lines)[0])
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}

	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Logf panicked: %v", r)
		}
	}()

	Logf("test message: %s", "value")
}
