package cards

import (
	"testing"
)

func mustCards(t *testing.T, strs ...string) []Card {
	t.Helper()
	result := make([]Card, len(strs))
	for i, s := range strs {
		c, err := ParseCard(s)
		if err != nil {
			t.Fatal(err)
		}
		result[i] = c
	}
	return result
}

func TestNewSetFromCards(t *testing.T) {
	testCards := append(mustCards(t, "Qs", "Jh", "2h", "Qs"), NotDealt)
	set := NewSetFromCards(testCards)
	if set.Len() != 3 {
		t.Errorf("card set has len %d, expected %d", set.Len(), 3)
	}
	for _, card := range testCards[:3] {
		if !set.Contains(card) {
			t.Errorf("card set is missing %v", card)
		}
	}
}

func TestAddRemove(t *testing.T) {
	cs := mustCards(t, "Ac", "Kd")
	var set Set
	if !set.IsEmpty() {
		t.Error("zero set is not empty")
	}
	set.Add(cs[0])
	set.Add(cs[0])
	if set.Len() != 1 {
		t.Errorf("got len %d after duplicate add, expected 1", set.Len())
	}
	set.Add(cs[1])
	set.Remove(cs[0])
	if set.Contains(cs[0]) || !set.Contains(cs[1]) {
		t.Errorf("unexpected set after remove: %v", set)
	}
}

func TestOverlapsUnion(t *testing.T) {
	a := NewSetFromCards(mustCards(t, "Ac", "Kd"))
	b := NewSetFromCards(mustCards(t, "Kd", "2s"))
	c := NewSetFromCards(mustCards(t, "3h"))
	if !a.Overlaps(b) {
		t.Error("expected a and b to overlap")
	}
	if a.Overlaps(c) {
		t.Error("expected a and c to be disjoint")
	}
	if u := a.Union(b); u.Len() != 3 {
		t.Errorf("union has len %d, expected 3", u.Len())
	}
}

func TestAsSliceIsAscending(t *testing.T) {
	set := NewSetFromCards(mustCards(t, "Ac", "2d", "Ts", "7h"))
	cs := set.AsSlice()
	if len(cs) != 4 {
		t.Fatalf("got %d cards, expected 4", len(cs))
	}
	for i := 1; i < len(cs); i++ {
		if cs[i] <= cs[i-1] {
			t.Errorf("cards out of order: %v", cs)
		}
	}
	if set.String() != cs[0].String()+cs[1].String()+cs[2].String()+cs[3].String() {
		t.Errorf("String %q does not match slice order %v", set.String(), cs)
	}
}
