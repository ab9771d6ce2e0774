package analysis

// DefaultMeasures are the Croydon OA adaptation measures.
func DefaultMeasures() []Measure {
	return []Measure{
		{Name: "Adapt_A", Fields: []string{"MaxAvLST_q", "VM5_q", "Poll_q", "VM1_q", "RENT_q", "VM7_q", "VM6_q", "Education_", "Nursing_5", "Hospital_5"}},
		{Name: "Adapt_B", Fields: []string{"MaxAvLST_q", "VM5_q", "Poll_q", "VM7_q", "VM6_q", "Education_"}},
		{Name: "Adapt_C", Fields: []string{"MaxAvLST_q", "VM5_q", "Poll_q", "VM1_q", "VM7_q", "VM6_q", "Education_"}},
		{Name: "Adapt_D", Fields: []string{"VM5_q", "VM1_q", "VM6_q", "Basement_5"}},
		{Name: "Adapt_E", Fields: []string{"MaxAvLST_q", "VM5_q", "VM1_q", "VM7_q", "VM6_q", "Q_CanopyOu", "Education_"}},
		{Name: "Adapt_F", Fields: []string{"MaxAvLST_q", "PU5_q", "PO75_q"}},
		{Name: "Adapt_G", Fields: []string{"MaxAvLST_q", "VM1_q", "PU5_q", "PO75_q"}},
		{Name: "Adapt_H", Fields: []string{"MaxAvLST_q", "VM5_q", "Q_Roof_Cou"}},
		{Name: "Adapt_I", Fields: []string{"MaxAvLST_q", "VM5_q", "VM1_q", "Q_Roof_Cou"}},
		{Name: "Adapt_J", Fields: []string{"MaxAvLST_q", "VM1_q", "RENT_q"}},
		{Name: "Adapt_K", Fields: []string{"VM1_q", "RENT_q", "PU5_q", "PO75_q"}},
		{Name: "Adapt_L", Fields: []string{"MaxAvLST_q", "PU5_q", "PO75_q", "VM6_q", "RailBuffer"}},
		{Name: "Adapt_M", Fields: []string{"MaxAvLST_q", "VM5_q", "PU5_q", "PO75_q", "Station_5"}},
		{Name: "Adapt_N", Fields: []string{"VM5_q", "VM6_q", "Q_CanopyOu", "Roads_comb"}},
		{Name: "Adapt_O", Fields: []string{"MaxAvLST_q", "VM6_q", "Roads_comb"}},
		{Name: "Adapt_P", Fields: []string{"MaxAvLST_q", "Poll_q", "VM6_q", "Roads_comb"}},
		{Name: "Adapt_Q", Fields: []string{"MaxAvLST_q", "VM5_q", "Poll_q", "VM1_q", "PU5_q", "Education_"}},
		{Name: "Adapt_R", Fields: []string{"MaxAvLST_q", "VM5_q", "Poll_q", "VM1_q", "PU5_q", "Education_", "Nursing_5"}},
		{Name: "Adapt_S", Fields: []string{"MaxAvLST_q", "VM5_q", "Poll_q", "VM1_q", "Education_"}},
		{Name: "Adapt_T", Fields: []string{"MaxAvLST_q", "VM5_q", "Poll_q", "VM1_q", "Education_", "Nursing_5"}},
		{Name: "Adapt_U", Fields: []string{"MaxAvLST_q", "VM1_q", "PO75_q", "Education_", "Nursing_5"}},
	}
}

// DefaultGroups are the four thematic adaptation groups and their map colours.
func DefaultGroups() []Group {
	return []Group{
		{Name: "AdaptiveSpaces", Color: "#f1c232", Measures: []string{"Adapt_A", "Adapt_B", "Adapt_C", "Adapt_D", "Adapt_E", "Adapt_F", "Adapt_G"}},
		{Name: "BuildingRetrofit", Color: "#cc0000", Measures: []string{"Adapt_H", "Adapt_I", "Adapt_J", "Adapt_K"}},
		{Name: "TransportInterventions", Color: "#9900ff", Measures: []string{"Adapt_L", "Adapt_M", "Adapt_N", "Adapt_O", "Adapt_P"}},
		{Name: "CommunityLearning", Color: "#3c78d8", Measures: []string{"Adapt_Q", "Adapt_R", "Adapt_S", "Adapt_T", "Adapt_U"}},
	}
}

// DefaultThresholds are the minimum scores for a measure selection.
func DefaultThresholds() map[string]int {
	return map[string]int{
		"Adapt_A": 31,
		"Adapt_B": 24,
		"Adapt_C": 28,
		"Adapt_D": 16,
		"Adapt_E": 25,
		"Adapt_F": 12,
		"Adapt_G": 16,
		"Adapt_H": 12,
		"Adapt_I": 16,
		"Adapt_J": 12,
		"Adapt_K": 14,
		"Adapt_L": 21,
		"Adapt_M": 21,
		"Adapt_N": 16,
		"Adapt_O": 11,
		"Adapt_P": 15,
		"Adapt_Q": 25,
		"Adapt_R": 22,
		"Adapt_S": 17,
		"Adapt_T": 18,
		"Adapt_U": 14,
	}
}

// DefaultHazard gates on land surface temperature, VM5 and pollution quintiles.
func DefaultHazard() Hazard {
	return Hazard{Fields: []string{"MaxAvLST_q", "VM5_q", "Poll_q"}, MinValue: DefaultHazardMin}
}

// DefaultTables returns the validated built-in tables.
func DefaultTables() *Tables {
	t, err := New(DefaultMeasures(), DefaultGroups(), DefaultThresholds(), DefaultHazard())
	if err != nil {
		panic(err) // built-in tables are static
	}
	return t
}
