package fragment

import (
	"testing"
)

func TestMemoryNavigator_History(t *testing.T) {
	nav := NewMemoryNavigator("")

	nav.WriteFragment("#q=cats&start=0")
	nav.WriteFragment("q=cats&start=0")
	nav.WriteFragment("q=dogs&start=0")

	history, pos := nav.History()
	if len(history) != 3 || pos != 2 {
		t.Fatalf("History() = %v, %d, want 3 entries at 2", history, pos)
	}
	if history[1] != "q=cats&start=0" {
		t.Errorf("history[1] = %q, leading # not stripped", history[1])
	}

	nav.GoBack()
	if got := nav.ReadFragment(); got != "q=cats&start=0" {
		t.Errorf("ReadFragment() after GoBack = %q", got)
	}

	nav.GoForward()
	if got := nav.ReadFragment(); got != "q=dogs&start=0" {
		t.Errorf("ReadFragment() after GoForward = %q", got)
	}
}

func TestMemoryNavigator_WriteTruncatesForward(t *testing.T) {
	nav := NewMemoryNavigator("")
	nav.WriteFragment("a")
	nav.WriteFragment("b")
	nav.GoBack()
	nav.Navigate("c")

	history, pos := nav.History()
	if len(history) != 3 || history[2] != "c" || pos != 2 {
		t.Errorf("History() = %v, %d, want [ a c] at 2", history, pos)
	}
}

func TestMemoryNavigator_GoBackAtStart(t *testing.T) {
	nav := NewMemoryNavigator("start=0")
	nav.GoBack()
	if got := nav.ReadFragment(); got != "start=0" {
		t.Errorf("ReadFragment() = %q, want start=0", got)
	}
}
