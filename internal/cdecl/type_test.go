// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package cdecl

import "testing"

func TestFallbackUsesResolvedForMissingName(t *testing.T) {
	i32 := PrimitiveT(I32)
	named := NamedT("off_t", &i32)

	got := named.Fallback()
	if got.Kind != KindPrimitive || got.Primitive != I32 {
		t.Fatalf("Fallback() = %v, want I32 primitive", got)
	}
}

func TestFallbackTerminatesForUnresolvedNamed(t *testing.T) {
	named := NamedT("Ghost", nil)
	got := named.Fallback()
	if got.Kind == KindNamed {
		t.Fatalf("Fallback() on a Named with nil Resolved must not stay Named, got %v", got)
	}
	if !got.IsVoid() {
		t.Fatalf("Fallback() on a Named with nil Resolved = %v, want Void", got)
	}
}

func TestFallbackTerminatesForNamedResolvedToNamed(t *testing.T) {
	inner := NamedT("StillGhost", nil)
	named := NamedT("Ghost", &inner)
	got := named.Fallback()
	if got.Kind == KindNamed {
		t.Fatalf("Fallback() must never hand back another Named, got %v", got)
	}
}

func TestFallbackIsIdentityForNonNamed(t *testing.T) {
	ptr := PtrT(PrimitiveT(Void), true)
	if got := ptr.Fallback(); got.Kind != KindPtr {
		t.Fatalf("Fallback() on non-Named = %v, want unchanged Ptr", got)
	}
}

func TestIsDelegateShaped(t *testing.T) {
	fn := FnPtrT(PrimitiveT(I32), []CType{PtrT(PrimitiveT(Void), true), PtrT(PrimitiveT(Void), true)}, CCDefault)

	cases := []struct {
		name string
		in   CType
		want bool
	}{
		{"bare FnPtr", fn, true},
		{"Ptr to FnPtr", PtrT(fn, false), true},
		{"plain struct reference", NamedT("Widget", nil), false},
		{"Ptr to non-FnPtr", PtrT(PrimitiveT(I32), false), false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, ok := c.in.IsDelegateShaped()
			if ok != c.want {
				t.Fatalf("IsDelegateShaped() = %v, want %v", ok, c.want)
			}
		})
	}
}

func TestIsVoid(t *testing.T) {
	if !PrimitiveT(Void).IsVoid() {
		t.Fatal("Void primitive should report IsVoid() == true")
	}
	if PrimitiveT(I32).IsVoid() {
		t.Fatal("I32 primitive should report IsVoid() == false")
	}
}
