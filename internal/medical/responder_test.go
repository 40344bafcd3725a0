package medical

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/nutrizap/nutrizap/internal/database"
)

type stubAnalyzer struct {
	report string
	err    error
}

func (s *stubAnalyzer) AnalyzeExams(context.Context, int64, string) (string, error) {
	return s.report, s.err
}

func TestStartBatchCreatesAndExtends(t *testing.T) {
	t.Parallel()

	r := New(nil, nil)

	batch, reply, err := r.StartBatch(context.Background(), 7, nil, "https://cdn.example.com/exame1.jpg")
	if err != nil {
		t.Fatalf("StartBatch returned error: %v", err)
	}
	if batch.BatchID == "" || batch.Status != StatusCollecting || batch.ImagesCount != 1 {
		t.Errorf("new batch = %+v", batch)
	}
	if !strings.Contains(reply, "exame") {
		t.Errorf("reply = %q", reply)
	}

	extended, reply, err := r.StartBatch(context.Background(), 7, batch, "https://cdn.example.com/exame2.jpg")
	if err != nil {
		t.Fatalf("StartBatch returned error: %v", err)
	}
	if extended.BatchID != batch.BatchID {
		t.Error("extension created a new batch id")
	}
	if extended.ImagesCount != 2 {
		t.Errorf("ImagesCount = %d, want 2", extended.ImagesCount)
	}
	if !strings.Contains(reply, "2") {
		t.Errorf("reply = %q, want photo count", reply)
	}
}

func TestRespondReadyRunsAnalysis(t *testing.T) {
	t.Parallel()

	r := New(&stubAnalyzer{report: "🩺 Seus exames estão normais."}, nil)
	batch := &database.MedicalBatch{BatchID: "b1", Status: StatusAwaitingConfirm, ImagesCount: 2}

	done, reply, err := r.Respond(context.Background(), 7, batch, "pronto")
	if err != nil {
		t.Fatalf("Respond returned error: %v", err)
	}
	if !done {
		t.Error("done = false, want analysis to resolve the batch")
	}
	if !strings.Contains(reply, "normais") {
		t.Errorf("reply = %q, want analyzer report", reply)
	}
}

func TestRespondCancelResolves(t *testing.T) {
	t.Parallel()

	r := New(nil, nil)
	batch := &database.MedicalBatch{BatchID: "b1", Status: StatusCollecting, ImagesCount: 1}

	done, reply, err := r.Respond(context.Background(), 7, batch, "cancelar")
	if err != nil {
		t.Fatalf("Respond returned error: %v", err)
	}
	if !done {
		t.Error("done = false, want cancel to resolve the batch")
	}
	if !strings.Contains(reply, "cancelada") {
		t.Errorf("reply = %q", reply)
	}
}

func TestRespondUnrelatedTextKeepsBatch(t *testing.T) {
	t.Parallel()

	r := New(nil, nil)
	batch := &database.MedicalBatch{BatchID: "b1", Status: StatusCollecting, ImagesCount: 3}

	done, reply, err := r.Respond(context.Background(), 7, batch, "o que você achou?")
	if err != nil {
		t.Fatalf("Respond returned error: %v", err)
	}
	if done {
		t.Error("done = true, want gentle reminder to keep the batch open")
	}
	if !strings.Contains(reply, "3 fotos") {
		t.Errorf("reply = %q, want photo count reminder", reply)
	}
}

func TestRespondAnalysisFailureResolvesWithApology(t *testing.T) {
	t.Parallel()

	r := New(&stubAnalyzer{err: errors.New("service down")}, nil)
	batch := &database.MedicalBatch{BatchID: "b1", Status: StatusAwaitingConfirm, ImagesCount: 1}

	done, reply, err := r.Respond(context.Background(), 7, batch, "sim")
	if err != nil {
		t.Fatalf("Respond returned error: %v", err)
	}
	if !done {
		t.Error("done = false, want failed analysis to resolve the batch")
	}
	if !strings.Contains(reply, "Não consegui") {
		t.Errorf("reply = %q", reply)
	}
}
