package model

import (
	"errors"
	"testing"
)

func TestRegistryRegisterLookup(t *testing.T) {
	reg := NewRegistry()
	cell := MustType("CellSpec", Field{Name: "voltage", Kind: Number()})

	if err := reg.Register(cell); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := reg.Lookup("CellSpec")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != cell {
		t.Errorf("Lookup returned %p, want %p", got, cell)
	}
}

func TestRegistryDuplicate(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(MustType("Battery")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	err := reg.Register(MustType("Battery", Field{Name: "x", Kind: String()}))
	var dup *DuplicateModelError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateModelError, got %v", err)
	}
	if dup.Name != "Battery" {
		t.Errorf("Name = %q, want %q", dup.Name, "Battery")
	}
	if reg.Len() != 1 {
		t.Errorf("Len = %d, want 1", reg.Len())
	}
}

func TestRegistryUnknown(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Lookup("Missing")
	var unknown *UnknownModelError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownModelError, got %v", err)
	}
}

func TestRegistryNamesOrder(t *testing.T) {
	reg := NewRegistry()
	names := []string{"Zeta", "Alpha", "Mid"}
	for _, n := range names {
		if err := reg.Register(MustType(n)); err != nil {
			t.Fatal(err)
		}
	}

	got := reg.Names()
	if len(got) != len(names) {
		t.Fatalf("Names = %v", got)
	}
	for i := range names {
		if got[i] != names[i] {
			t.Errorf("Names[%d] = %q, want %q", i, got[i], names[i])
		}
	}
}

func TestRegistriesAreIndependent(t *testing.T) {
	a := NewRegistry()
	b := NewRegistry()
	if err := a.Register(MustType("Battery")); err != nil {
		t.Fatal(err)
	}
	if err := b.Register(MustType("Battery")); err != nil {
		t.Errorf("second registry should accept the same name: %v", err)
	}
}

func TestNewTypeDuplicateField(t *testing.T) {
	_, err := NewType("Battery",
		Field{Name: "capacity_wh", Kind: Number()},
		Field{Name: "capacity_wh", Kind: String()},
	)
	var dup *DuplicateFieldError
	if !errors.As(err, &dup) {
		t.Fatalf("expected DuplicateFieldError, got %v", err)
	}
	if dup.Field != "capacity_wh" {
		t.Errorf("Field = %q", dup.Field)
	}
}

func TestNewTypeInvalid(t *testing.T) {
	tests := []struct {
		name   string
		model  string
		fields []Field
	}{
		{"empty model name", "", nil},
		{"empty field name", "M", []Field{{Name: "", Kind: Number()}}},
		{"nil kind", "M", []Field{{Name: "x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewType(tt.model, tt.fields...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFieldRequired(t *testing.T) {
	tests := []struct {
		kind Kind
		want bool
	}{
		{Number(), true},
		{Ref("CellSpec"), true},
		{ListOf(Number()), true},
		{OptionalOf(String()), false},
		{ListOf(OptionalOf(String())), true},
		{TableOf([]string{"a"}, Number()), true},
	}
	for _, tt := range tests {
		f := Field{Name: "f", Kind: tt.kind}
		if got := f.Required(); got != tt.want {
			t.Errorf("Required(%s) = %v, want %v", tt.kind, got, tt.want)
		}
	}
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{Number(), "number"},
		{ListOf(Ref("CellSpec")), "list<CellSpec>"},
		{OptionalOf(ListOf(Boolean())), "optional<list<boolean>>"},
		{TableOf([]string{"nominal", "safe"}, Number()), "table<nominal|safe, number>"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestTypeFieldsCopy(t *testing.T) {
	typ := MustType("M", Field{Name: "a", Kind: Number()})
	fields := typ.Fields()
	fields[0].Name = "mutated"

	if _, ok := typ.Field("a"); !ok {
		t.Error("mutating the returned slice changed the type")
	}
}
