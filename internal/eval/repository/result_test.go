package repository

import (
	"context"
	"testing"

	"ojcore/internal/eval/judge"
	"ojcore/internal/eval/model"
	"ojcore/pkg/errors"
)

func strPtr(s string) *string { return &s }

func testcaseResult(cpu, sys float64, memory int64, score float64, message string) judge.SolutionTestcaseResult {
	return judge.SolutionTestcaseResult{
		Status:  "ACCEPTED",
		Score:   score,
		Message: message,
		Result: []*judge.ExecutionResult{
			{Resources: judge.Resources{CPUTime: cpu, SysTime: sys, WallTime: cpu + sys, Memory: memory}},
		},
	}
}

func ioiSuccessResult() *judge.IOIResult {
	return &judge.IOIResult{
		Solutions: map[string]judge.SolutionCompilation{
			"sol.cpp": {
				Status:      judge.CompilationDone,
				Compilation: &judge.Execution{Stderr: strPtr("warning: unused")},
			},
		},
		Testing: map[string]judge.SolutionTesting{
			"sol.cpp": {
				Score:         87.5,
				SubtaskScores: map[string]float64{"0": 50.0, "1": 37.5},
				TestcaseResults: map[string]map[string]judge.SolutionTestcaseResult{
					"0": {
						"0": testcaseResult(0.5, 0.25, 1024, 1.0, "Output is correct"),
						"1": testcaseResult(0.25, 0.25, 2048, 1.0, "Output is correct"),
					},
					"1": {
						"0": testcaseResult(0.125, 0.25, 512, 0.75, "Output is partially correct"),
					},
				},
			},
		},
	}
}

func evalSubmission() *model.Submission {
	return &model.Submission{
		ID:              7,
		TaskID:          3,
		ParticipationID: 11,
		Files:           []string{"sol.cpp"},
		Status:          model.StatusWaiting,
	}
}

func evalSubtasks() map[int]*model.Subtask {
	return map[int]*model.Subtask{
		0: {ID: 40, TaskID: 3, Num: 0, MaxScore: 50},
		1: {ID: 41, TaskID: 3, Num: 1, MaxScore: 50},
	}
}

func TestPersistIOISuccess(t *testing.T) {
	fake := newFakeDB()
	repo := NewResultRepository(fake, NewSubmissionRepository(fake))

	score, err := repo.PersistIOI(context.Background(), evalSubmission(), ioiSuccessResult(), evalSubtasks())
	if err != nil {
		t.Fatalf("PersistIOI() error: %v", err)
	}
	if score != 87.5 {
		t.Errorf("score = %v, want 87.5", score)
	}
	if fake.commits != 1 || fake.rollbacks != 0 {
		t.Fatalf("commits = %d, rollbacks = %d, want 1/0", fake.commits, fake.rollbacks)
	}

	// Earlier rows for the submission are cleared inside the transaction.
	if calls := fake.execsMatching("DELETE tr FROM testcase_results"); len(calls) != 1 || calls[0].args[0] != int64(7) {
		t.Errorf("testcase_results delete calls = %v, want one for submission 7", calls)
	}
	if calls := fake.execsMatching("DELETE FROM subtask_results"); len(calls) != 1 || calls[0].args[0] != int64(7) {
		t.Errorf("subtask_results delete calls = %v, want one for submission 7", calls)
	}

	updates := fake.execsMatching("UPDATE submissions")
	if len(updates) != 1 {
		t.Fatalf("submission updates = %d, want 1", len(updates))
	}
	if updates[0].args[0] != model.StatusSuccess || updates[0].args[1] != 87.5 || updates[0].args[2] != "warning: unused" {
		t.Errorf("submission update args = %v", updates[0].args)
	}

	subtaskInserts := fake.execsMatching("INSERT INTO subtask_results")
	if len(subtaskInserts) != 2 {
		t.Fatalf("subtask inserts = %d, want 2", len(subtaskInserts))
	}
	scoreBySubtask := make(map[int64]float64)
	idBySubtask := make(map[int64]int64)
	for _, call := range subtaskInserts {
		subtaskID := call.args[1].(int64)
		scoreBySubtask[subtaskID] = call.args[2].(float64)
		// fakeDB hands out sequential insert ids in execution order.
		idBySubtask[subtaskID] = insertIDFor(fake, call)
	}
	if scoreBySubtask[40] != 50.0 || scoreBySubtask[41] != 37.5 {
		t.Errorf("subtask scores = %v, want {40:50, 41:37.5}", scoreBySubtask)
	}

	testcaseInserts := fake.execsMatching("INSERT INTO testcase_results")
	if len(testcaseInserts) != 3 {
		t.Fatalf("testcase inserts = %d, want 3", len(testcaseInserts))
	}
	countBySubtaskResult := make(map[int64]int)
	for _, call := range testcaseInserts {
		countBySubtaskResult[call.args[0].(int64)]++
		running := call.args[2].(float64)
		if running != 0.75 && running != 0.5 && running != 0.375 {
			t.Errorf("running_time = %v, want a cpu+sys sum", running)
		}
	}
	if countBySubtaskResult[idBySubtask[40]] != 2 {
		t.Errorf("testcase rows under subtask 0's result = %d, want 2", countBySubtaskResult[idBySubtask[40]])
	}
	if countBySubtaskResult[idBySubtask[41]] != 1 {
		t.Errorf("testcase rows under subtask 1's result = %d, want 1", countBySubtaskResult[idBySubtask[41]])
	}
}

// insertIDFor recovers the LastInsertId the fake returned for a recorded call.
func insertIDFor(fake *fakeDB, call execCall) int64 {
	for i, c := range fake.execs {
		if c.query == call.query && sameArgs(c.args, call.args) {
			return 101 + int64(i)
		}
	}
	return -1
}

func sameArgs(a, b []interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestPersistIOICompilationFailure(t *testing.T) {
	fake := newFakeDB()
	repo := NewResultRepository(fake, NewSubmissionRepository(fake))

	result := &judge.IOIResult{
		Solutions: map[string]judge.SolutionCompilation{
			"sol.cpp": {
				Status:      judge.CompilationFailure,
				Compilation: &judge.Execution{Stderr: strPtr("sol.cpp:3: expected ';'")},
			},
		},
	}

	score, err := repo.PersistIOI(context.Background(), evalSubmission(), result, evalSubtasks())
	if err != nil {
		t.Fatalf("PersistIOI() error: %v", err)
	}
	if score != 0 {
		t.Errorf("score = %v, want 0", score)
	}
	if fake.commits != 0 {
		t.Errorf("commits = %d, want 0 (short circuit runs outside a transaction)", fake.commits)
	}
	if len(fake.execs) != 1 {
		t.Fatalf("statements = %d, want exactly 1", len(fake.execs))
	}
	update := fake.execs[0]
	if update.args[0] != model.StatusCompilationError || update.args[1] != float64(0) || update.args[2] != "sol.cpp:3: expected ';'" {
		t.Errorf("update args = %v", update.args)
	}
	if inserts := fake.execsMatching("INSERT"); len(inserts) != 0 {
		t.Errorf("inserts = %v, want none", inserts)
	}
}

func TestPersistIOIUnknownSubtaskRollsBack(t *testing.T) {
	fake := newFakeDB()
	repo := NewResultRepository(fake, NewSubmissionRepository(fake))

	result := ioiSuccessResult()
	testing_ := result.Testing["sol.cpp"]
	testing_.SubtaskScores = map[string]float64{"5": 10.0}
	testing_.TestcaseResults = nil
	result.Testing["sol.cpp"] = testing_

	_, err := repo.PersistIOI(context.Background(), evalSubmission(), result, evalSubtasks())
	if err == nil {
		t.Fatal("PersistIOI() with unknown subtask succeeded, want error")
	}
	if !errors.Is(err, errors.SubtaskUnknown) {
		t.Errorf("error code = %d, want SubtaskUnknown", errors.GetCode(err))
	}
	if fake.rollbacks != 1 || fake.commits != 0 {
		t.Errorf("rollbacks = %d, commits = %d, want 1/0", fake.rollbacks, fake.commits)
	}
}

func TestPersistIOIMissingRecords(t *testing.T) {
	fake := newFakeDB()
	repo := NewResultRepository(fake, NewSubmissionRepository(fake))

	_, err := repo.PersistIOI(context.Background(), evalSubmission(), &judge.IOIResult{}, evalSubtasks())
	if !errors.Is(err, errors.SolutionRecordMissing) {
		t.Errorf("missing compilation record: code = %d, want SolutionRecordMissing", errors.GetCode(err))
	}

	result := &judge.IOIResult{
		Solutions: map[string]judge.SolutionCompilation{
			"sol.cpp": {Status: judge.CompilationDone},
		},
	}
	_, err = repo.PersistIOI(context.Background(), evalSubmission(), result, evalSubtasks())
	if !errors.Is(err, errors.SolutionRecordMissing) {
		t.Errorf("missing testing record: code = %d, want SolutionRecordMissing", errors.GetCode(err))
	}
	if len(fake.execs) != 0 {
		t.Errorf("statements = %v, want none", fake.execs)
	}
}

func TestPersistOpenEndedUnsupported(t *testing.T) {
	fake := newFakeDB()
	repo := NewResultRepository(fake, NewSubmissionRepository(fake))

	_, err := repo.PersistOpenEnded(context.Background(), evalSubmission(), &judge.OpenEndedResult{})
	if !errors.Is(err, errors.UnsupportedResultFormat) {
		t.Errorf("error code = %d, want UnsupportedResultFormat", errors.GetCode(err))
	}
	if len(fake.execs) != 0 {
		t.Errorf("statements = %v, want none", fake.execs)
	}
}
