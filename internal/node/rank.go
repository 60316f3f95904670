package node

import "sort"

// Rank orders candidates best-first for dispatch: reliability score
// descending, then non-busy before busy, then latency ascending.
func Rank(nodes []*Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		ri, rj := nodes[i].ReliabilityScore(), nodes[j].ReliabilityScore()
		if ri != rj {
			return ri > rj
		}
		bi, bj := nodes[i].Status() == StatusBusy, nodes[j].Status() == StatusBusy
		if bi != bj {
			return !bi
		}
		return nodes[i].Latency() < nodes[j].Latency()
	})
}
