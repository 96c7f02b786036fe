package store

import "testing"

func sampleProcedure(id, pattern string, ptype ProcedureType, confidence float64) *Procedure {
	return &Procedure{
		ID:            id,
		TaskPattern:   pattern,
		Recipe:        []RecipeStep{{Tool: "run_tests"}},
		ProcedureType: ptype,
		Confidence:    confidence,
	}
}

func TestInsertAndGetProcedure(t *testing.T) {
	idx := openTestIndex(t)

	p := sampleProcedure("p1", "deploy staging", ProcedurePositive, 0.7)
	if err := idx.InsertProcedure(p); err != nil {
		t.Fatalf("insert procedure: %v", err)
	}

	got, err := idx.GetProcedure("p1")
	if err != nil {
		t.Fatalf("get procedure: %v", err)
	}
	if got.TaskPattern != p.TaskPattern || len(got.Recipe) != 1 {
		t.Errorf("got = %+v, want matching pattern+recipe", got)
	}
}

func TestSearchProceduresRanksByConfidence(t *testing.T) {
	idx := openTestIndex(t)

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("insert procedure: %v", err)
		}
	}
	must(idx.InsertProcedure(sampleProcedure("low", "deploy staging server", ProcedurePositive, 0.4)))
	must(idx.InsertProcedure(sampleProcedure("high", "deploy staging server fast", ProcedurePositive, 0.9)))

	results, err := idx.SearchProcedures("deploy staging", ProcedurePositive, 10, 0.1)
	if err != nil {
		t.Fatalf("search procedures: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %v, want 2 matches", results)
	}
	if results[0].ID != "high" {
		t.Errorf("top result = %s, want high (higher confidence)", results[0].ID)
	}
}

func TestSearchProceduresFiltersByType(t *testing.T) {
	idx := openTestIndex(t)

	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("insert procedure: %v", err)
		}
	}
	must(idx.InsertProcedure(sampleProcedure("good", "restart service", ProcedurePositive, 0.8)))
	must(idx.InsertProcedure(sampleProcedure("bad", "restart service", ProcedureNegative, 0.8)))

	results, err := idx.SearchProcedures("restart service", ProcedureNegative, 10, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != "bad" {
		t.Errorf("results = %v, want only the negative procedure", results)
	}
}

func TestUpdateProcedureReinforcement(t *testing.T) {
	idx := openTestIndex(t)

	p := sampleProcedure("p1", "deploy staging", ProcedurePositive, 0.5)
	if err := idx.InsertProcedure(p); err != nil {
		t.Fatalf("insert: %v", err)
	}

	p.ReinforcedCount = 1
	p.ReinforcedQuotes = []string{"worked great"}
	p.Confidence = 0.55
	if err := idx.UpdateProcedureReinforcement(p); err != nil {
		t.Fatalf("update reinforcement: %v", err)
	}

	got, err := idx.GetProcedure("p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ReinforcedCount != 1 || got.Confidence != 0.55 || len(got.ReinforcedQuotes) != 1 {
		t.Errorf("got = %+v, want reinforced state persisted", got)
	}
}
