package survey

import "testing"

func TestSurveyDeterministic(t *testing.T) {
	a, b := New(42), New(42)
	for sys := uint64(1); sys <= 5; sys++ {
		for p := uint64(1); p <= 5; p++ {
			if a.Survey(sys, p) != b.Survey(sys, p) {
				t.Fatalf("system %d planet %d differs between surveyors", sys, p)
			}
		}
	}
}

func TestSurveyRanges(t *testing.T) {
	s := New(7)
	for sys := uint64(0); sys < 20; sys++ {
		for p := uint64(0); p < 10; p++ {
			r := s.Survey(sys, p)
			if r.Habitability < MinHabitability || r.Habitability > 100 {
				t.Fatalf("habitability %d out of range", r.Habitability)
			}
			for _, v := range []float64{r.Temperature, r.Atmosphere, r.Water} {
				if v < 0 || v > 1 {
					t.Fatalf("field %v out of [0,1]", v)
				}
			}
			if r.Climate == "" || r.Capacity < 300 {
				t.Fatalf("report=%+v", r)
			}
		}
	}
}

func TestSeedsDiffer(t *testing.T) {
	a, b := New(1), New(2)
	for p := uint64(1); p < 50; p++ {
		if a.Survey(3, p).Habitability != b.Survey(3, p).Habitability {
			return
		}
	}
	t.Fatalf("different seeds produced identical surveys")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		temp, atmo, water float64
		want              Climate
	}{
		{0.5, 0.1, 0.5, ClimateBarren},
		{0.9, 0.5, 0.5, ClimateVolcanic},
		{0.1, 0.5, 0.5, ClimateFrozen},
		{0.5, 0.5, 0.1, ClimateArid},
		{0.5, 0.5, 0.9, ClimateOceanic},
		{0.5, 0.5, 0.5, ClimateTemperate},
	}
	for _, tt := range tests {
		if got := classify(tt.temp, tt.atmo, tt.water); got != tt.want {
			t.Errorf("classify(%v,%v,%v)=%v want %v", tt.temp, tt.atmo, tt.water, got, tt.want)
		}
	}
}
