package transport

import (
	"context"
	"sync"
	"testing"

	"github.com/rhuss/chorus/pkg/api"
)

func TestCollectingSink(t *testing.T) {
	var s CollectingSink
	ctx := context.Background()

	if _, ok := s.Final(); ok {
		t.Fatal("Final() reported a fragment before Finish")
	}

	s.Emit(ctx, api.Fragment{Kind: api.FragmentIncrementalText, Text: "Hel"})
	s.Emit(ctx, api.Fragment{Kind: api.FragmentIncrementalText, Text: "lo"})
	s.Finish(ctx, "turn_1", api.Fragment{Kind: api.FragmentFinalContent, Text: "Hello", TurnID: "turn_1"})

	frags := s.Fragments()
	if len(frags) != 2 || frags[0].Text != "Hel" || frags[1].Text != "lo" {
		t.Errorf("Fragments() = %+v", frags)
	}
	final, ok := s.Final()
	if !ok || final.Text != "Hello" {
		t.Errorf("Final() = %+v, %v", final, ok)
	}
	if s.TurnID() != "turn_1" {
		t.Errorf("TurnID() = %q", s.TurnID())
	}

	// The returned slice is a copy.
	frags[0].Text = "changed"
	if s.Fragments()[0].Text != "Hel" {
		t.Error("Fragments() exposes internal state")
	}
}

func TestCollectingSinkConcurrentEmit(t *testing.T) {
	var s CollectingSink
	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			s.Emit(context.Background(), api.Fragment{Kind: api.FragmentPlaceholder})
		})
	}
	wg.Wait()
	if n := len(s.Fragments()); n != 50 {
		t.Errorf("got %d fragments, want 50", n)
	}
}
