package domain

import "testing"

func TestDenylist(t *testing.T) {
	d := NewDenylist([]string{"COUNTY", "FOSTER", "STATE OF"})

	tests := []struct {
		guarantor string
		blocked   bool
	}{
		{"FRANKLIN COUNTY CHILDREN SERVICES", true},
		{"franklin county children services", true},
		{"Foster Care Network of Ohio", true},
		{"State of Ohio Custody", true},
		{"GARCIA, MARIA", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := d.Blocked(tt.guarantor); got != tt.blocked {
			t.Errorf("Blocked(%q) = %v, want %v", tt.guarantor, got, tt.blocked)
		}
	}
}

func TestDenylistIgnoresEmptyPatterns(t *testing.T) {
	d := NewDenylist([]string{"", "  ", "COUNTY"})
	if d.Blocked("GARCIA, MARIA") {
		t.Error("empty patterns must not match everything")
	}
}

func TestSubjectIndex(t *testing.T) {
	idx := NewSubjectIndex([]Subject{
		{PersonID: "p1", AppointmentID: "a1"},
		{PersonID: "p2", AppointmentID: "a2"},
	})

	if !idx.Has("p1") || !idx.Has("p2") {
		t.Error("index missing resolved subjects")
	}
	if idx.Has("p3") {
		t.Error("index reports unknown person")
	}
}

func TestGuardianTupleNormalization(t *testing.T) {
	a := GuardianLink{GuardianName: "  Garcia, Maria ", HomePhone: "(614) 555-0142", MobilePhone: ""}
	b := GuardianLink{GuardianName: "GARCIA, MARIA", HomePhone: "+16145550142", MobilePhone: ""}

	if a.Tuple("US") != b.Tuple("US") {
		t.Errorf("tuples differ: %+v vs %+v", a.Tuple("US"), b.Tuple("US"))
	}

	c := GuardianLink{GuardianName: "GARCIA, MARIA", HomePhone: "(614) 555-0143"}
	if a.Tuple("US") == c.Tuple("US") {
		t.Error("different phones must yield different tuples")
	}
}
