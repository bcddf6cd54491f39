package beep

import "math"

func (t tone) render(rate int) []int16 {
	tick := generateTick(rate, t.freq, t.dur, t.volume, t.decay)
	if t.repeat <= 1 {
		return tick
	}
	gap := make([]int16, int(float64(rate)*t.gap))
	out := make([]int16, 0, len(tick)*t.repeat+len(gap)*(t.repeat-1))
	for i := 0; i < t.repeat; i++ {
		if i > 0 {
			out = append(out, gap...)
		}
		out = append(out, tick...)
	}
	return out
}

func generateTick(rate int, freq, duration, volume, decay float64) []int16 {
	n := int(float64(rate) * duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / float64(rate)
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func int16Bytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return buf
}
