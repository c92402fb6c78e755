package btree

import (
	"testing"

	"zonedb/pkg/storage/extent"
	"zonedb/pkg/word"
)

func TestNodeEncodeDecode(t *testing.T) {
	n := &Node{
		Handle: word.NewHandle(1, 1),
		Next:   word.NewHandle(1, 2),
		Elems:  []word.Element{{Key: 3, Ref: word.NewHandle(0, 5)}, {Key: 9, Ref: word.NewHandle(2, 1)}},
	}

	words := n.Encode()
	if len(words) != NodeWords(NodeCap) {
		t.Fatalf("expected %d words, got %d", NodeWords(NodeCap), len(words))
	}

	hdr := word.UnpackMetaHeader(words[0])
	if hdr.Count != 2 {
		t.Errorf("expected count 2, got %d", hdr.Count)
	}
	if hdr.Next != n.Next || hdr.Prev != word.NoHandle {
		t.Errorf("sibling links not encoded: %+v", hdr)
	}

	back, err := DecodeNode(n.Handle, words)
	if err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if len(back.Elems) != 2 || back.Elems[1].Key != 9 || back.Elems[1].Ref != word.NewHandle(2, 1) {
		t.Errorf("elements not decoded: %+v", back.Elems)
	}
}

func TestNodeDecodeRejectsOvercount(t *testing.T) {
	words := RootImage()
	if len(words) != NodeWords(RootCap) {
		t.Fatalf("expected root image of %d words, got %d", NodeWords(RootCap), len(words))
	}

	words[0] = word.MetaHeader{Count: RootCap + 1}.Pack()
	if _, err := DecodeNode(extent.RootHandle, words); err == nil {
		t.Errorf("expected error for root with %d elements", RootCap+1)
	}
}

func TestNodeSearch(t *testing.T) {
	n := &Node{Elems: []word.Element{{Key: 10}, {Key: 20}, {Key: 30}}}

	tests := []struct {
		key      word.Word
		expected int
	}{
		{5, -1},
		{10, 0},
		{15, 0},
		{30, 2},
		{99, 2},
	}

	for _, tt := range tests {
		if got := n.search(tt.key); got != tt.expected {
			t.Errorf("search(%d): expected %d, got %d", tt.key, tt.expected, got)
		}
	}
}
