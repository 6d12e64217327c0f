package simulation

// CyclesFromLabels groups units into reading cycles from a per-unit cycle
// label vector. Each run of consecutive equal labels becomes one cycle, in
// order; units keep their index order within a cycle.
//
//	CyclesFromLabels([]int{0, 0, 1, 2, 2}) == [][]int{{0, 1}, {2}, {3, 4}}
func CyclesFromLabels(labels []int) [][]int {
	var cycles [][]int
	for unit, label := range labels {
		if unit == 0 || label != labels[unit-1] {
			cycles = append(cycles, nil)
		}
		last := len(cycles) - 1
		cycles[last] = append(cycles[last], unit)
	}
	return cycles
}

