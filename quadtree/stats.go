package quadtree

// Stats summarizes the shape of a tree.
type Stats struct {
	Nodes         int `json:"nodes"`
	Leaves        int `json:"leaves"`
	Depth         int `json:"depth"`
	Elements      int `json:"elements"`
	LargestBucket int `json:"largest_bucket"`
}

// Stats walks the tree and returns its statistics. Depth is relative to the
// receiver.
func (t *Tree[T, S]) Stats() Stats {
	var s Stats
	t.collectStats(&s, 0)
	return s
}

func (t *Tree[T, S]) collectStats(s *Stats, depth int) {
	s.Nodes++
	s.Elements += len(t.elements)
	s.LargestBucket = max(s.LargestBucket, len(t.elements))
	s.Depth = max(s.Depth, depth)

	if t.IsLeaf() {
		s.Leaves++
		return
	}

	for _, child := range t.children {
		child.collectStats(s, depth+1)
	}
}
