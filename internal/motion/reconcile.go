package motion

// Reconcile aligns an intent mask onto the motion stream's frame count, which is always
// authoritative. Longer masks are truncated; shorter masks hold their last value.
// A nil or empty mask reconciles to nil.
func Reconcile(mask []float64, target int) []float64 {
	if len(mask) == 0 {
		return nil
	}

	if target < 0 {
		target = 0
	}

	if len(mask) == target {
		return mask
	}

	aligned := make([]float64, target)
	copied := copy(aligned, mask)

	last := mask[len(mask)-1]
	for i := copied; i < target; i++ {
		aligned[i] = last
	}

	return aligned
}

// ReconcileFrames drops frame indices that fall outside [0, target).
func ReconcileFrames(frames []int, target int) []int {
	if len(frames) == 0 {
		return nil
	}

	kept := make([]int, 0, len(frames))

	for _, frame := range frames {
		if frame >= 0 && frame < target {
			kept = append(kept, frame)
		}
	}

	return kept
}
