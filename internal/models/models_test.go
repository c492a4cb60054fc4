package models

import "testing"

func TestParseEnums(t *testing.T) {
	for _, tt := range TaskTypes {
		got, err := ParseTaskType(string(tt))
		if err != nil || got != tt {
			t.Errorf("ParseTaskType(%q) = %q, %v", tt, got, err)
		}
	}
	for _, p := range Priorities {
		if got, err := ParsePriority(string(p)); err != nil || got != p {
			t.Errorf("ParsePriority(%q) = %q, %v", p, got, err)
		}
	}
	for _, s := range Statuses {
		if got, err := ParseStatus(string(s)); err != nil || got != s {
			t.Errorf("ParseStatus(%q) = %q, %v", s, got, err)
		}
	}

	invalid := []string{"", "todo", "BLOCKED", "URGENT", "ALL "}
	for _, v := range invalid {
		if _, err := ParseStatus(v); err == nil {
			t.Errorf("ParseStatus(%q) should fail", v)
		}
		if _, err := ParsePriority(v); err == nil {
			t.Errorf("ParsePriority(%q) should fail", v)
		}
		if _, err := ParseTaskType(v); err == nil {
			t.Errorf("ParseTaskType(%q) should fail", v)
		}
	}
}

func TestStatusFilter(t *testing.T) {
	if _, err := ParseStatusFilter("ALL"); err != nil {
		t.Errorf("ALL should parse: %v", err)
	}
	if _, err := ParseStatusFilter("IN_PROGRESS"); err != nil {
		t.Errorf("IN_PROGRESS should parse: %v", err)
	}
	if _, err := ParseStatusFilter("OPEN"); err == nil {
		t.Error("OPEN should not parse")
	}
	if len(StatusFilters) != len(Statuses)+1 {
		t.Errorf("expected one tab per status plus ALL, got %d", len(StatusFilters))
	}
}

func TestNextWraps(t *testing.T) {
	if got := StatusDone.Next(); got != StatusTodo {
		t.Errorf("DONE.Next() = %q, want TODO", got)
	}
	if got := PriorityLow.Next(); got != PriorityMedium {
		t.Errorf("LOW.Next() = %q, want MEDIUM", got)
	}
	if got := TypeOther.Next(); got != TypeSystem {
		t.Errorf("OTHER.Next() = %q, want SYSTEM", got)
	}
}

func TestDraftDefaults(t *testing.T) {
	d := TaskDraft{Title: "x"}.WithDefaults()
	if d.Type != TypeOther || d.Priority != PriorityMedium || d.Status != StatusTodo {
		t.Errorf("unexpected defaults: %+v", d)
	}

	d = TaskDraft{Title: "x", Status: StatusDone}.WithDefaults()
	if d.Status != StatusDone {
		t.Errorf("explicit status overwritten: %q", d.Status)
	}
}

func TestPatchEmpty(t *testing.T) {
	if !(TaskPatch{}).Empty() {
		t.Error("zero patch should be empty")
	}
	if (TaskPatch{AssignedTo: Ptr("")}).Empty() {
		t.Error("clearing the assignee is a change")
	}
}
