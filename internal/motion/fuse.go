package motion

// Fuse combines the reconciled audio and script masks by element-wise product, so
// either channel voting pause forces a pause and emphasis survives only where both
// channels agree on speech. A missing channel is ignored; two missing channels give nil.
func Fuse(audioMask, scriptMask []float64) []float64 {
	switch {
	case audioMask == nil && scriptMask == nil:
		return nil
	case audioMask == nil:
		return scriptMask
	case scriptMask == nil:
		return audioMask
	}

	n := min(len(audioMask), len(scriptMask))

	fused := make([]float64, n)
	for i := range n {
		fused[i] = audioMask[i] * scriptMask[i]
	}

	return fused
}
