package dag

import (
	"fmt"
	"testing"
)

func TestCollectReady_Start(t *testing.T) {
	tr := mustTracker(t, diamond())
	got := CollectReady(tr, map[string]bool{})
	if fmt.Sprint(got) != "[A]" {
		t.Errorf("CollectReady = %v, want [A]", got)
	}
}

func TestCollectReady_SkipsTracked(t *testing.T) {
	tr := mustTracker(t, diamond())
	got := CollectReady(tr, map[string]bool{"A": true})
	if len(got) != 0 {
		t.Errorf("CollectReady = %v, want empty (A already tracked)", got)
	}
}

func TestCollectReady_DiscoveryOrder(t *testing.T) {
	tr := mustTracker(t, diamond())
	tr.MarkDone("A")

	got := CollectReady(tr, map[string]bool{"A": true})
	if fmt.Sprint(got) != "[B C]" {
		t.Errorf("CollectReady = %v, want [B C]", got)
	}

	// B already represented by a live unit; only C is new.
	got = CollectReady(tr, map[string]bool{"A": true, "B": true})
	if fmt.Sprint(got) != "[C]" {
		t.Errorf("CollectReady = %v, want [C]", got)
	}
}

func TestCollectReady_EmptyTracker(t *testing.T) {
	tr := mustTracker(t, nil)
	if got := CollectReady(tr, nil); len(got) != 0 {
		t.Errorf("empty tracker: CollectReady = %v", got)
	}
}
