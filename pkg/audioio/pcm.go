package audioio

import "math"

// DecodePCM16 converts little-endian PCM16 bytes to samples. A trailing odd
// byte is ignored.
func DecodePCM16(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
	}
	return samples
}

// EncodePCM16 converts samples to little-endian PCM16 bytes.
func EncodePCM16(samples []int16) []byte {
	data := make([]byte, 2*len(samples))
	for i, s := range samples {
		data[2*i] = byte(s)
		data[2*i+1] = byte(uint16(s) >> 8)
	}
	return data
}

// Downmix averages interleaved frames of n channels into mono.
func Downmix(samples []int16, n int) []int16 {
	if n <= 1 {
		return samples
	}
	mono := make([]int16, len(samples)/n)
	for i := range mono {
		var sum int32
		for _, s := range samples[i*n : i*n+n] {
			sum += int32(s)
		}
		mono[i] = int16(sum / int32(n))
	}
	return mono
}

// Resample converts mono samples between rates by linear interpolation.
// Browsers capture at 44.1k or 48k; recognition wants 16k.
func Resample(samples []int16, from, to int) []int16 {
	if from == to || from <= 0 || to <= 0 || len(samples) == 0 {
		return samples
	}

	step := float64(from) / float64(to)
	out := make([]int16, int(float64(len(samples))/step))
	last := len(samples) - 1
	for i := range out {
		pos := float64(i) * step
		j := int(pos)
		if j >= last {
			out[i] = samples[last]
			continue
		}
		a, b := float64(samples[j]), float64(samples[j+1])
		out[i] = int16(a + (pos-float64(j))*(b-a))
	}
	return out
}

// Convert downmixes interleaved samples and resamples them to rate.
func Convert(samples []int16, channels, from, to int) []int16 {
	return Resample(Downmix(samples, channels), from, to)
}

// Level is the normalized signal power of samples, 0 for silence and 1 for
// a full-scale square wave.
func Level(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return sum / float64(len(samples)) / (math.MaxInt16 * math.MaxInt16)
}
