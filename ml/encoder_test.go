package ml

import "testing"

func TestLabelEncoderSortsClasses(t *testing.T) {
	encoder := &LabelEncoder{}
	y, err := encoder.FitTransform([]string{"Live", "Die", "Live", "Die", "Live"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(encoder.Classes) != 2 || encoder.Classes[0] != "Die" || encoder.Classes[1] != "Live" {
		t.Fatalf("unexpected classes %v", encoder.Classes)
	}
	want := []int{1, 0, 1, 0, 1}
	for i := range want {
		if y[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, y)
		}
	}

	label, err := encoder.InverseTransform(1)
	if err != nil || label != "Live" {
		t.Fatalf("expected Live, got %q (%v)", label, err)
	}
	if _, err := encoder.InverseTransform(2); err == nil {
		t.Fatalf("expected out of range error")
	}
	if _, err := encoder.Transform([]string{"Unknown"}); err == nil {
		t.Fatalf("expected unknown label error")
	}
}

func TestLabelEncoderEmpty(t *testing.T) {
	encoder := &LabelEncoder{}
	if err := encoder.Fit(nil); err == nil {
		t.Fatalf("expected error for empty labels")
	}
}
