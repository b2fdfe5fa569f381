package analysis

// OnsetEnvelope computes spectral flux from a [frames][bands] dB
// spectrogram: the positive difference against the frame lag steps back,
// averaged over bands. The result is shifted right by lag plus the STFT
// centering offset so that onsets line up with the frames that produced
// them, and has one value per input frame.
func OnsetEnvelope(melDB [][]float64, lag int, cfg STFTConfig) []float64 {
	numFrames := len(melDB)
	env := make([]float64, numFrames)
	if numFrames == 0 || lag < 1 {
		return env
	}

	shift := lag + cfg.FFTSize/(2*cfg.HopSize)
	for t := lag; t < numFrames; t++ {
		dst := t - lag + shift
		if dst >= numFrames {
			break
		}
		cur, prev := melDB[t], melDB[t-lag]
		var sum float64
		for b := range cur {
			if d := cur[b] - prev[b]; d > 0 {
				sum += d
			}
		}
		env[dst] = sum / float64(len(cur))
	}
	return env
}
