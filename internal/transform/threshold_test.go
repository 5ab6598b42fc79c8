package transform

import "testing"

func TestNiblackThresholdOnHalfSplitGrid(t *testing.T) {
	src := halfSplitGray(10, 10)

	out, err := LocalThreshold(src, LocalThresholdParams{Window: 15, K: 0.2, R: 15, Method: MethodNiblack})
	if err != nil {
		t.Fatalf("LocalThreshold returned error: %v", err)
	}
	assertSize(t, out, 10, 10)
	assertBinary(t, out)

	for i := range src.Pix {
		if out.Pix[i] != src.Pix[i] {
			t.Fatalf("expected output to match the split grid at index %d, got %d", i, out.Pix[i])
		}
	}
}

func TestNiblackThresholdFlatGridIsBackground(t *testing.T) {
	out, err := LocalThreshold(filledGray(8, 8, 120), LocalThresholdParams{Window: 15, K: 0.2, Method: MethodNiblack})
	if err != nil {
		t.Fatalf("LocalThreshold returned error: %v", err)
	}
	assertUniform(t, out, 0)
}

func TestNegativeKLowersThreshold(t *testing.T) {
	// A faint dot 10 levels above a flat field of 100.
	src := impulseGray(15, 15, 7, 7, 100, 110)

	positive, err := LocalThreshold(src, LocalThresholdParams{Window: 15, K: 0.2, Method: MethodNiblack})
	if err != nil {
		t.Fatalf("LocalThreshold returned error: %v", err)
	}
	negative, err := LocalThreshold(src, LocalThresholdParams{Window: 15, K: -0.2, Method: MethodNiblack})
	if err != nil {
		t.Fatalf("LocalThreshold returned error: %v", err)
	}

	countPositive, countNegative := 0, 0
	for i := range src.Pix {
		if positive.Pix[i] == 255 {
			countPositive++
		}
		if negative.Pix[i] == 255 {
			countNegative++
		}
	}
	if countNegative < countPositive {
		t.Fatalf("expected negative k to keep at least as many pixels, got %d < %d", countNegative, countPositive)
	}
	if positive.GrayAt(7, 7).Y != 255 {
		t.Fatal("expected the dot to survive positive k")
	}
}

func TestSauvolaRequiresRange(t *testing.T) {
	_, err := LocalThreshold(filledGray(4, 4, 10), LocalThresholdParams{Window: 3, K: 0.5, Method: MethodSauvola})
	if err == nil {
		t.Fatal("expected error for sauvola without r")
	}
}

func TestLocalThresholdRejectsEvenWindow(t *testing.T) {
	if _, err := LocalThreshold(filledGray(4, 4, 10), LocalThresholdParams{Window: 4}); err == nil {
		t.Fatal("expected error for even window")
	}
}

func TestAdaptiveThresholdOnHalfSplitGrid(t *testing.T) {
	src := halfSplitGray(10, 10)

	out, err := AdaptiveThreshold(src, 11, 2)
	if err != nil {
		t.Fatalf("AdaptiveThreshold returned error: %v", err)
	}
	assertSize(t, out, 10, 10)
	assertBinary(t, out)

	for i := range src.Pix {
		if out.Pix[i] != src.Pix[i] {
			t.Fatalf("expected output to match the split grid at index %d, got %d", i, out.Pix[i])
		}
	}
}

func TestAdaptiveThresholdFlatGridIsForeground(t *testing.T) {
	out, err := AdaptiveThreshold(filledGray(6, 6, 40), 11, 2)
	if err != nil {
		t.Fatalf("AdaptiveThreshold returned error: %v", err)
	}
	assertUniform(t, out, 255)
}

func TestAdaptiveThresholdRejectsTinyBlock(t *testing.T) {
	if _, err := AdaptiveThreshold(filledGray(6, 6, 40), 1, 2); err == nil {
		t.Fatal("expected error for block size 1")
	}
}

func TestSauvolaFlatGridScalesMean(t *testing.T) {
	// stddev is zero, so the threshold is mean*(1-k) = 50 and every pixel clears it.
	out, err := LocalThreshold(filledGray(5, 5, 100), LocalThresholdParams{Window: 3, K: 0.5, R: 128, Method: MethodSauvola})
	if err != nil {
		t.Fatalf("sauvola: %v", err)
	}
	assertUniform(t, out, 255)
}
