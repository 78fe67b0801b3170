package audioio

import (
	"encoding/binary"
	"testing"
)

func TestEncodeWAV(t *testing.T) {
	samples := []int16{1, -1, 2, -2}
	wav := EncodeWAV(samples, 16000, 1)

	if len(wav) != 44+8 {
		t.Fatalf("len = %d, want 52", len(wav))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" || string(wav[36:40]) != "data" {
		t.Errorf("bad chunk ids: %q %q %q", wav[0:4], wav[8:12], wav[36:40])
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != 16000 {
		t.Errorf("sample rate = %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != 32000 {
		t.Errorf("byte rate = %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != 8 {
		t.Errorf("data len = %d", got)
	}
	if got := int16(binary.LittleEndian.Uint16(wav[46:48])); got != -1 {
		t.Errorf("second sample = %d", got)
	}
}
