package value

import "testing"

func TestEqualCrossNumeric(t *testing.T) {
	if !Int(5).Equal(Float(5.0)) {
		t.Fatalf("expected int(5) == float(5.0)")
	}
	if Int(5).Equal(Float(5.1)) {
		t.Fatalf("expected int(5) != float(5.1)")
	}
}

func TestEqualContainersStructural(t *testing.T) {
	a := List([]Value{Int(1), Str("x")})
	b := List([]Value{Int(1), Str("x")})
	c := List([]Value{Int(1), Str("y")})
	if !a.Equal(b) {
		t.Fatalf("expected structurally equal lists to be equal")
	}
	if a.Equal(c) {
		t.Fatalf("expected differing lists to be unequal")
	}
}

func TestCompareNullAlwaysUnordered(t *testing.T) {
	if _, ok := Compare(Null(), Int(1)); ok {
		t.Fatalf("null compared to anything must be unordered")
	}
	if _, ok := Compare(Null(), Null()); ok {
		t.Fatalf("null compared to null must be unordered")
	}
}

func TestCompareNumericCrossType(t *testing.T) {
	ord, ok := Compare(Int(3), Float(3.5))
	if !ok || ord != Less {
		t.Fatalf("expected 3 < 3.5, got ord=%v ok=%v", ord, ok)
	}
}

func TestCompareBooleanUnordered(t *testing.T) {
	if _, ok := Compare(Bool(true), Bool(false)); ok {
		t.Fatalf("booleans have no ordering per spec 4.1")
	}
}

func TestCompareContainerUnordered(t *testing.T) {
	if _, ok := Compare(List([]Value{Int(1)}), List([]Value{Int(2)})); ok {
		t.Fatalf("containers have no ordering")
	}
}

func TestCheckPersistableRejectsGraphRefs(t *testing.T) {
	if err := CheckPersistable(Vertex(VertexRef{GID: 1})); err == nil {
		t.Fatalf("expected vertex ref to be rejected as persistable")
	}
	if err := CheckPersistable(List([]Value{Edge(EdgeRef{GID: 1})})); err == nil {
		t.Fatalf("expected nested edge ref to be rejected as persistable")
	}
	if err := CheckPersistable(Int(1)); err != nil {
		t.Fatalf("plain scalar must be persistable: %v", err)
	}
}

func TestCloneDeepCopiesContainers(t *testing.T) {
	orig := List([]Value{Str("a")})
	clone := orig.Clone()
	clone.L[0] = Str("mutated")
	if orig.L[0].S != "a" {
		t.Fatalf("Clone must not alias the original backing array")
	}
}
