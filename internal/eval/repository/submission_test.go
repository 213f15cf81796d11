package repository

import (
	"context"
	"testing"

	"ojcore/internal/eval/model"
	"ojcore/pkg/errors"
)

func TestListWaiting(t *testing.T) {
	fake := newFakeDB()
	fake.rowsByQuery["FROM submissions"] = &fakeRows{
		data: [][]interface{}{
			{int64(1), int64(3), int64(11), `["sol.cpp"]`, "waiting", "", float64(0)},
			{int64(2), int64(4), int64(12), `["a.py","b.py"]`, "waiting", "", float64(0)},
		},
	}
	repo := NewSubmissionRepository(fake)

	submissions, err := repo.ListWaiting(context.Background())
	if err != nil {
		t.Fatalf("ListWaiting() error: %v", err)
	}
	if len(submissions) != 2 {
		t.Fatalf("got %d submissions, want 2", len(submissions))
	}
	first := submissions[0]
	if first.ID != 1 || first.TaskID != 3 || first.ParticipationID != 11 {
		t.Errorf("first submission = %+v", first)
	}
	if len(first.Files) != 1 || first.Files[0] != "sol.cpp" {
		t.Errorf("first files = %v, want [sol.cpp]", first.Files)
	}
	if first.Status != model.StatusWaiting {
		t.Errorf("first status = %q, want waiting", first.Status)
	}
	if len(submissions[1].Files) != 2 {
		t.Errorf("second files = %v, want two entries", submissions[1].Files)
	}
}

func TestMarkInternalError(t *testing.T) {
	fake := newFakeDB()
	repo := NewSubmissionRepository(fake)

	if err := repo.MarkInternalError(context.Background(), 9); err != nil {
		t.Fatalf("MarkInternalError() error: %v", err)
	}
	updates := fake.execsMatching("UPDATE submissions")
	if len(updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(updates))
	}
	if updates[0].args[0] != model.StatusInternalError || updates[0].args[1] != int64(9) {
		t.Errorf("update args = %v", updates[0].args)
	}
}

func TestGetParticipationUser(t *testing.T) {
	fake := newFakeDB()
	fake.rowByQuery["FROM participations"] = &fakeRow{data: []interface{}{int64(42)}}
	repo := NewSubmissionRepository(fake)

	userID, err := repo.GetParticipationUser(context.Background(), 11)
	if err != nil {
		t.Fatalf("GetParticipationUser() error: %v", err)
	}
	if userID != 42 {
		t.Errorf("userID = %d, want 42", userID)
	}
}

func TestGetParticipationUserNotFound(t *testing.T) {
	fake := newFakeDB()
	repo := NewSubmissionRepository(fake)

	_, err := repo.GetParticipationUser(context.Background(), 999)
	if !errors.Is(err, errors.ParticipationNotFound) {
		t.Errorf("error code = %d, want ParticipationNotFound", errors.GetCode(err))
	}
}
