package octree

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

type pt struct {
	id int
	p  mgl64.Vec3
}

func (x pt) Pos() mgl64.Vec3 { return x.p }

func randomPoints(rng *rand.Rand, n int, spread float64) []pt {
	out := make([]pt, n)
	for i := range out {
		out[i] = pt{id: i, p: mgl64.Vec3{
			(rng.Float64()*2 - 1) * spread,
			(rng.Float64()*2 - 1) * spread,
			(rng.Float64()*2 - 1) * spread,
		}}
	}
	return out
}

func ids(items []pt) []int {
	out := make([]int, len(items))
	for i, it := range items {
		out[i] = it.id
	}
	sort.Ints(out)
	return out
}

func bruteForce(items []pt, c mgl64.Vec3, r float64) []pt {
	var out []pt
	for _, it := range items {
		if it.p.Sub(c).LenSqr() <= r*r {
			out = append(out, it)
		}
	}
	return out
}

func equalInts(a, b []int) bool {
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

func TestBuild_InsertsEveryPoint(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	items := randomPoints(rng, 500, 1000)
	root, rejected := Build(items, DefaultCapacity, DefaultMaxDepth)
	if rejected != 0 {
		t.Fatalf("rejected %d points", rejected)
	}
	for _, it := range items {
		if !root.Contains(it.p) {
			t.Fatalf("root does not contain %v", it.p)
		}
	}
	if got := root.Shape().Items; got != len(items) {
		t.Fatalf("tree holds %d items, want %d", got, len(items))
	}
}

func TestBuild_ExtremePointsOnRootFaces(t *testing.T) {
	items := []pt{
		{0, mgl64.Vec3{-1e6, 3, 7}},
		{1, mgl64.Vec3{1e6 + 0.1, -3, 7}},
		{2, mgl64.Vec3{0.3, 1e5, -1e5}},
	}
	_, rejected := Build(items, 1, 3)
	if rejected != 0 {
		t.Fatalf("rejected %d boundary points", rejected)
	}
}

func TestInsert_OutsideCubeReturnsFalse(t *testing.T) {
	root := New[pt](mgl64.Vec3{}, 10, 8, 5)
	if root.Insert(pt{0, mgl64.Vec3{10.5, 0, 0}}) {
		t.Fatal("expected insert outside cube to fail")
	}
	if !root.Insert(pt{1, mgl64.Vec3{10, -10, 10}}) {
		t.Fatal("expected insert on the cube corner to succeed")
	}
}

func TestInsert_SubdividesIntoEightChildren(t *testing.T) {
	root := New[pt](mgl64.Vec3{}, 100, 2, 5)
	for i := 0; i < 3; i++ {
		root.Insert(pt{i, mgl64.Vec3{float64(i*10 + 1), 1, 1}})
	}
	if root.IsLeaf() {
		t.Fatal("expected root to subdivide after overflow")
	}
	if len(root.Items()) != 2 {
		t.Fatalf("root keeps %d items, want 2", len(root.Items()))
	}

	var kids []*Node[pt]
	root.Walk(func(n *Node[pt]) {
		if n.Depth() == 1 {
			kids = append(kids, n)
		}
	})
	if len(kids) != 8 {
		t.Fatalf("got %d children, want 8", len(kids))
	}
	for i, k := range kids {
		if k.HalfSize() != 50 {
			t.Fatalf("child %d half size %v, want 50", i, k.HalfSize())
		}
		c := k.Center()
		for a := 0; a < 3; a++ {
			want := -50.0
			if (i>>a)&1 == 1 {
				want = 50
			}
			if c[a] != want {
				t.Fatalf("child %d axis %d center %v, want %v", i, a, c[a], want)
			}
		}
	}
	// (21,1,1) is in the +x +y +z octant
	if len(kids[7].Items()) != 1 {
		t.Fatalf("octant 7 has %d items, want 1", len(kids[7].Items()))
	}
}

func TestInsert_MaxDepthAbsorbsOverflow(t *testing.T) {
	root := New[pt](mgl64.Vec3{}, 100, 1, 0)
	for i := 0; i < 20; i++ {
		if !root.Insert(pt{i, mgl64.Vec3{1, 1, 1}}) {
			t.Fatalf("insert %d failed", i)
		}
	}
	if !root.IsLeaf() {
		t.Fatal("depth-0 tree must never subdivide")
	}
	if s := root.Shape(); s.Items != 20 || s.Overfull != 1 {
		t.Fatalf("unexpected shape %+v", s)
	}
}

func TestContains_InclusiveFaces(t *testing.T) {
	n := New[pt](mgl64.Vec3{1, 2, 3}, 2, 8, 5)
	cases := []struct {
		p    mgl64.Vec3
		want bool
	}{
		{mgl64.Vec3{1, 2, 3}, true},
		{mgl64.Vec3{-1, 0, 1}, true},
		{mgl64.Vec3{3, 4, 5}, true},
		{mgl64.Vec3{3.0001, 2, 3}, false},
		{mgl64.Vec3{1, -0.0001, 3}, false},
		{mgl64.Vec3{1, 2, 5.5}, false},
	}
	for _, tc := range cases {
		if got := n.Contains(tc.p); got != tc.want {
			t.Errorf("Contains(%v) = %v, want %v", tc.p, got, tc.want)
		}
	}
}

func TestIntersectsSphere(t *testing.T) {
	n := New[pt](mgl64.Vec3{}, 1, 8, 5)
	cases := []struct {
		name string
		c    mgl64.Vec3
		r    float64
		want bool
	}{
		{"center inside", mgl64.Vec3{0.5, 0, 0}, 0.01, true},
		{"touching face", mgl64.Vec3{3, 0, 0}, 2, true},
		{"short of face", mgl64.Vec3{3, 0, 0}, 1.99, false},
		{"corner diagonal hit", mgl64.Vec3{2, 2, 2}, 1.75, true},
		{"corner diagonal miss", mgl64.Vec3{2, 2, 2}, 1.7, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := n.IntersectsSphere(tc.c, tc.r); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestQuerySphere_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for round := 0; round < 20; round++ {
		items := randomPoints(rng, 50+rng.Intn(300), 500)
		root, _ := Build(items, 1+rng.Intn(8), rng.Intn(6))
		for q := 0; q < 25; q++ {
			c := mgl64.Vec3{
				(rng.Float64()*2 - 1) * 700,
				(rng.Float64()*2 - 1) * 700,
				(rng.Float64()*2 - 1) * 700,
			}
			r := rng.Float64() * 400
			got := ids(root.QuerySphere(c, r, nil))
			want := ids(bruteForce(items, c, r))
			if !equalInts(got, want) {
				t.Fatalf("round %d query %d: got %v, want %v", round, q, got, want)
			}
		}
	}
}

func TestQuerySphere_PrunesDisjointNodes(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	items := randomPoints(rng, 400, 1000)
	root, _ := Build(items, 4, 5)

	c, r := mgl64.Vec3{900, 900, 900}, 50.0
	var st QueryStats
	root.QuerySphereStats(c, r, nil, &st)

	want := 0
	root.Walk(func(n *Node[pt]) {
		if n.IntersectsSphere(c, r) {
			want += len(n.Items())
		}
	})
	if st.Comparisons > want {
		t.Fatalf("compared %d items, only %d live in intersecting nodes", st.Comparisons, want)
	}
	if st.Comparisons >= len(items) {
		t.Fatalf("query compared every item (%d); nothing was pruned", st.Comparisons)
	}
	if st.NodesPruned == 0 {
		t.Fatal("expected at least one pruned node")
	}

	var far QueryStats
	got := root.QuerySphereStats(mgl64.Vec3{1e5, 0, 0}, 10, nil, &far)
	if len(got) != 0 || far.Comparisons != 0 || far.NodesVisited != 0 {
		t.Fatalf("query outside the root did work: %+v, %d results", far, len(got))
	}
}

func TestQuerySphere_StableOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	items := randomPoints(rng, 200, 100)
	root, _ := Build(items, 3, 4)
	a := root.QuerySphere(mgl64.Vec3{}, 80, nil)
	b := root.QuerySphere(mgl64.Vec3{}, 80, nil)
	if len(a) != len(b) {
		t.Fatalf("length changed between calls: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].id != b[i].id {
			t.Fatalf("order changed at %d: %d vs %d", i, a[i].id, b[i].id)
		}
	}
}

func TestQuerySphere_BuildOrderDoesNotChangeResults(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	items := randomPoints(rng, 300, 400)
	shuffled := append([]pt(nil), items...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	a, _ := Build(items, 2, 5)
	b, _ := Build(shuffled, 2, 5)
	for q := 0; q < 50; q++ {
		c := mgl64.Vec3{rng.Float64() * 400, rng.Float64() * 400, rng.Float64() * 400}
		r := rng.Float64() * 300
		if !equalInts(ids(a.QuerySphere(c, r, nil)), ids(b.QuerySphere(c, r, nil))) {
			t.Fatalf("query %d differs between build orders", q)
		}
	}
}

func TestRootFor(t *testing.T) {
	c, h := RootFor([]mgl64.Vec3{{0, 0, 0}, {100, 10, -20}})
	if c != (mgl64.Vec3{50, 5, -10}) {
		t.Fatalf("center = %v", c)
	}
	if h < 50 || h > 50.001 {
		t.Fatalf("half = %v, want ~50", h)
	}

	c, h = RootFor([]mgl64.Vec3{{4, 4, 4}, {4, 4, 4}})
	if c != (mgl64.Vec3{4, 4, 4}) || h != MinHalfSize {
		t.Fatalf("degenerate root = %v / %v", c, h)
	}

	_, h = RootFor(nil)
	if h != MinHalfSize {
		t.Fatalf("empty root half = %v", h)
	}
}

func TestBuild_EmptyTree(t *testing.T) {
	root, rejected := Build[pt](nil, 8, 5)
	if rejected != 0 {
		t.Fatalf("rejected = %d", rejected)
	}
	if got := root.QuerySphere(mgl64.Vec3{}, 1000, nil); len(got) != 0 {
		t.Fatalf("empty tree returned %d items", len(got))
	}
	if s := root.Shape(); s.Nodes != 1 || s.Items != 0 {
		t.Fatalf("shape = %+v", s)
	}
}

func TestBuild_CoincidentPoints(t *testing.T) {
	items := make([]pt, 40)
	for i := range items {
		items[i] = pt{i, mgl64.Vec3{5, 5, 5}}
	}
	root, rejected := Build(items, 4, 5)
	if rejected != 0 {
		t.Fatalf("rejected %d", rejected)
	}
	if got := root.QuerySphere(mgl64.Vec3{5, 5, 5}, 0, nil); len(got) != 40 {
		t.Fatalf("zero-radius query found %d, want 40", len(got))
	}
}
