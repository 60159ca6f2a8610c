package ledger

import "testing"

func TestLessEntry(t *testing.T) {
	tests := []struct {
		name string
		a    Entry
		b    Entry
		want bool
	}{
		{"different players", Entry{Player: "alice", TxnID: "z"}, Entry{Player: "bob", TxnID: "a"}, true},
		{"same player, txn order", Entry{Player: "alice", TxnID: "1"}, Entry{Player: "alice", TxnID: "2"}, true},
		{"same player, reverse txn order", Entry{Player: "alice", TxnID: "2"}, Entry{Player: "alice", TxnID: "1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lessEntry(tt.a, tt.b); got != tt.want {
				t.Errorf("lessEntry() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSortEntries_StableByPlayerThenTxn(t *testing.T) {
	entries := []Entry{
		{Player: "carol", TxnID: "1"},
		{Player: "alice", TxnID: "2"},
		{Player: "alice", TxnID: "1"},
		{Player: "bob", TxnID: "1"},
	}

	sortEntries(entries)

	want := []string{"alice:1", "alice:2", "bob:1", "carol:1"}
	for i, e := range entries {
		got := e.Player + ":" + e.TxnID
		if got != want[i] {
			t.Errorf("position %d = %v, want %v", i, got, want[i])
		}
	}
}
