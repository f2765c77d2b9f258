package clock

import (
	"testing"
	"time"
)

func TestRecorderAdvancesNowByPauses(t *testing.T) {
	rec := NewRecorder()
	start := rec.Now()

	<-rec.After(time.Second)
	<-rec.After(2 * time.Second)

	if elapsed := rec.Now().Sub(start); elapsed < 3*time.Second {
		t.Fatalf("expected recorded pauses in elapsed time, got %v", elapsed)
	}
	pauses := rec.Pauses()
	if len(pauses) != 2 || pauses[0] != time.Second || pauses[1] != 2*time.Second {
		t.Fatalf("unexpected pauses: %v", pauses)
	}
}

func TestRealAfterFires(t *testing.T) {
	select {
	case <-Real().After(time.Millisecond):
	case <-time.After(time.Second):
		t.Fatalf("real clock did not fire")
	}
}
