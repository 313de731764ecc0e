package trace

import "testing"

func TestRecorderPreservesAppendOrder(t *testing.T) {
	r := NewRecorder()
	r.Append(StateRecord{State: "LISTEN"})
	r.Append(StateRecord{State: "PURPOSE"})
	r.Append(StateRecord{State: "PATH"})

	records := r.Records()
	want := []string{"LISTEN", "PURPOSE", "PATH"}
	if len(records) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(records))
	}
	for i, w := range want {
		if records[i].State != w {
			t.Fatalf("record %d = %q, want %q", i, records[i].State, w)
		}
	}
}

func TestRecordsReturnsACopy(t *testing.T) {
	r := NewRecorder()
	r.Append(StateRecord{State: "LISTEN"})
	first := r.Records()
	first[0].State = "MUTATED"

	second := r.Records()
	if second[0].State != "LISTEN" {
		t.Fatalf("Records() leaked internal state: %q", second[0].State)
	}
}

func TestStateRecordHasNoChunkContentField(t *testing.T) {
	// StateRecord must never gain a field that could carry chunk text or
	// model chain-of-thought. The literal below documents the full
	// expected shape; keep it in sync with the type.
	rec := StateRecord{
		State:    "RETRIEVE",
		Mode:     "answer",
		Language: "ar",
		ElapsedS: 0.1,
		Counts:   Counts{PacketCount: 3},
		Issues:   []string{"no_keyword_relevance"},
	}
	if rec.Counts.PacketCount != 3 {
		t.Fatal("sanity check failed")
	}
}
