package dag

import "testing"

func TestHashConsingDedupesIdenticalConstants(t *testing.T) {
	s := NewStore()
	a := s.NewConst("1010")
	b := s.NewConst("1010")
	if RealAddress(a) != RealAddress(b) {
		t.Error("two identical constants should hash-cons to the same node")
	}
	if s.RefCount(RealAddress(a)) != 2 {
		t.Errorf("expected refcount 2 after two NewConst calls, got %d", s.RefCount(RealAddress(a)))
	}
}

func TestNewBVVarNeverHashConses(t *testing.T) {
	s := NewStore()
	a := s.NewBVVar(8)
	b := s.NewBVVar(8)
	if RealAddress(a) == RealAddress(b) {
		t.Error("two fresh variables of the same width must remain distinct")
	}
}

func TestBuildBinaryCanonicalizesCommutativeOperands(t *testing.T) {
	s := NewStore()
	x := s.NewBVVar(8)
	y := s.NewBVVar(8)
	ab := s.BuildBinary(And, x, y)
	ba := s.BuildBinary(And, y, x)
	if RealAddress(ab) != RealAddress(ba) {
		t.Error("commutative And(x,y) and And(y,x) should hash-cons identically")
	}
}

func TestBuildBinaryNonCommutativeOrderMatters(t *testing.T) {
	s := NewStore()
	x := s.NewBVVar(8)
	y := s.NewBVVar(8)
	xy := s.BuildBinary(Ult, x, y)
	yx := s.BuildBinary(Ult, y, x)
	if RealAddress(xy) == RealAddress(yx) {
		t.Error("Ult(x,y) and Ult(y,x) must not hash-cons identically")
	}
}

func TestInvertNeverAllocatesAndPanicsOnArray(t *testing.T) {
	s := NewStore()
	x := s.NewBVVar(8)
	inv := Invert(x)
	if RealAddress(inv) != RealAddress(x) {
		t.Error("Invert must not change the underlying node")
	}
	if !IsInverted(inv) || IsInverted(x) {
		t.Error("Invert must flip only the tag")
	}

	defer func() {
		if recover() == nil {
			t.Error("expected Invert on an array-typed reference to panic")
		}
	}()
	arr := s.NewArrayVar(8, 8)
	Invert(arr)
}

func TestChaseFollowsForwardingAndComposesInversion(t *testing.T) {
	s := NewStore()
	x := s.NewBVVar(4)
	y := s.NewBVVar(4)
	s.Simplify(RealAddress(x), Invert(y))

	chased := s.Chase(x)
	if RealAddress(chased) != RealAddress(y) {
		t.Error("Chase should follow the forwarding pointer to y")
	}
	if !IsInverted(chased) {
		t.Error("Chase should compose x's (plain) tag with the forward's inverted tag")
	}

	chasedInv := s.Chase(Invert(x))
	if IsInverted(chasedInv) {
		t.Error("chasing an inverted reference through an inverted forward should cancel out")
	}
}

func TestReleaseBelowZeroPanics(t *testing.T) {
	s := NewStore()
	x := s.NewBVVar(4)
	s.Release(x)
	defer func() {
		if recover() == nil {
			t.Error("expected double-release to panic")
		}
	}()
	s.Release(x)
}

func TestBuildSlicePanicsOnSliceOfSlice(t *testing.T) {
	s := NewStore()
	x := s.NewBVVar(8)
	sl := s.BuildSlice(x, 3, 0)
	defer func() {
		if recover() == nil {
			t.Error("expected BuildSlice on a Slice child to panic")
		}
	}()
	s.BuildSlice(sl, 1, 0)
}
