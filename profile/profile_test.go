package profile

import (
	"slices"
	"testing"
)

func TestMake(t *testing.T) {
	p := Make(WithMode("cpu"), WithPath("/tmp/kola"), WithQuiet(true), nil)

	want := Profiler{Mode: "cpu", Path: "/tmp/kola", Quiet: true}
	if p != want {
		t.Errorf("Make() = %+v, want %+v", p, want)
	}
}

func TestStart_NoMode(t *testing.T) {
	s := Make(WithPath(t.TempDir())).Start()
	if _, ok := s.(ignore); !ok {
		t.Errorf("Start() = %T, want no-op", s)
	}

	s.Stop()
}

func TestStart_UnknownMode(t *testing.T) {
	if slices.Contains(Modes(), "bogus") {
		t.Fatal("unexpected mode")
	}

	s := Make(WithMode("bogus")).Start()
	if _, ok := s.(ignore); !ok {
		t.Errorf("Start() = %T, want no-op", s)
	}

	s.Stop()
}
