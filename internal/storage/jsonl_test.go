package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"liquiditySniper/internal/model"
)

func readJournal(t *testing.T, path string) []model.Submission {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer file.Close()

	var got []model.Submission
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var sub model.Submission
		if err := json.Unmarshal(scanner.Bytes(), &sub); err != nil {
			t.Fatalf("unmarshal %q: %v", scanner.Text(), err)
		}
		got = append(got, sub)
	}
	return got
}

func TestJsonlJournalAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.jsonl")
	journal := NewJsonlJournal(path)
	ctx := context.Background()

	first := []model.Submission{{Node: "a", RunID: "r", Side: "buy", Round: 0, Status: model.RoundExecuted, TxHash: "0x01"}}
	second := []model.Submission{
		{Node: "a", RunID: "r", Side: "buy", Round: 1, Status: model.RoundFailed, Reason: "nonce too low"},
		{Node: "a", RunID: "r", Side: "sell", Status: model.RoundExecuted},
	}
	if err := journal.PutSubmissions(ctx, first); err != nil {
		t.Fatalf("put first: %v", err)
	}
	if err := journal.PutSubmissions(ctx, second); err != nil {
		t.Fatalf("put second: %v", err)
	}
	if err := journal.PutSubmissions(ctx, nil); err != nil {
		t.Fatalf("put empty: %v", err)
	}

	got := readJournal(t, path)
	if len(got) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(got))
	}
	if got[1].Status != model.RoundFailed || got[1].Reason != "nonce too low" || got[2].Side != "sell" {
		t.Fatalf("unexpected records: %+v", got)
	}
}

func TestJsonlJournalSharedByInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	const (
		instances = 4
		batches   = 25
	)
	var wg sync.WaitGroup
	for i := 0; i < instances; i++ {
		journal := NewJsonlJournal(path)
		node := fmt.Sprintf("node-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := 0; b < batches; b++ {
				subs := []model.Submission{
					{Node: node, RunID: "r", Side: "buy", Round: b, Status: model.RoundFailed, Reason: "nonce too low"},
					{Node: node, RunID: "r", Side: "buy", Round: b, Status: model.RoundExecuted},
				}
				if err := journal.PutSubmissions(context.Background(), subs); err != nil {
					t.Errorf("put %s: %v", node, err)
					return
				}
			}
		}()
	}
	wg.Wait()

	got := readJournal(t, path)
	if len(got) != instances*batches*2 {
		t.Fatalf("expected %d lines, got %d", instances*batches*2, len(got))
	}
	// Batches stay contiguous.
	for i := 0; i < len(got); i += 2 {
		if got[i].Node != got[i+1].Node || got[i].Round != got[i+1].Round {
			t.Fatalf("batch split at line %d: %+v / %+v", i, got[i], got[i+1])
		}
	}

	count, err := NewJsonlJournal(path).CountExecuted(context.Background(), "r", "buy")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != instances*batches {
		t.Fatalf("executed = %d, want %d", count, instances*batches)
	}
}

func TestJsonlJournalCountSkipsTornLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.jsonl")
	journal := NewJsonlJournal(path)
	ctx := context.Background()

	if count, err := journal.CountExecuted(ctx, "r", "buy"); err != nil || count != 0 {
		t.Fatalf("missing journal: count %d err %v", count, err)
	}

	subs := []model.Submission{
		{RunID: "r", Side: "buy", Status: model.RoundExecuted},
		{RunID: "other", Side: "buy", Status: model.RoundExecuted},
		{RunID: "r", Side: "sell", Status: model.RoundExecuted},
		{RunID: "r", Side: "buy", Status: model.RoundFailed},
	}
	if err := journal.PutSubmissions(ctx, subs); err != nil {
		t.Fatalf("put: %v", err)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := file.WriteString(`{"run_id":"r","side":"buy","sta`); err != nil {
		t.Fatalf("write torn line: %v", err)
	}
	file.Close()

	count, err := journal.CountExecuted(ctx, "r", "buy")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("executed = %d, want 1", count)
	}
}
