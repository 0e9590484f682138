package s2lp

import (
	"testing"
)

func TestDigitalFrequency(t *testing.T) {
	tests := []struct {
		xtal uint32
		want uint32
	}{
		{24_000_000, 24_000_000},
		{26_000_000, 26_000_000},
		{30_000_000, 30_000_000},
		{32_000_000, 16_000_000},
		{50_000_000, 25_000_000},
		{52_000_000, 26_000_000},
	}
	for _, tc := range tests {
		if got := digitalFrequency(tc.xtal); got != tc.want {
			t.Errorf("digitalFrequency(%d) expected %d, got %d", tc.xtal, tc.want, got)
		}
	}
}

func TestMaxDatarate(t *testing.T) {
	tests := []struct {
		fdig uint32
		want uint32
	}{
		{25_000_000, 500_000},
		{26_000_000, 500_000},
		{3_000_000, 375_000},
	}
	for _, tc := range tests {
		if got := maxDatarate(tc.fdig); got != tc.want {
			t.Errorf("maxDatarate(%d) expected %d, got %d", tc.fdig, tc.want, got)
		}
	}
}

func TestDatarateFit(t *testing.T) {
	rates := []uint32{
		100, 300, 400, 700, 1_111, 1_200, 2_400, 4_800, 5_555, 9_600,
		19_200, 33_333, 38_400, 57_600, 76_800, 100_000, 125_000,
		152_000, 250_000, 333_333, 500_000,
	}
	for _, fdig := range []uint32{24_000_000, 25_000_000, 26_000_000} {
		for _, target := range rates {
			m, e := fitDatarate(fdig, target)
			got := datarateFromRegisters(fdig, m, e)
			if got > target {
				t.Errorf("fdig %d target %d: encoded rate %d overshoots", fdig, target, got)
			}
			// one Hz for the integer decode plus 0.01% fitting error
			if target-got > 1+target/10_000 {
				t.Errorf("fdig %d target %d: encoded rate %d (m=%d e=%d) is too far off",
					fdig, target, got, m, e)
			}
		}
	}
}

func TestDeviationFit(t *testing.T) {
	targets := []uint32{1_000, 4_800, 10_000, 20_000, 25_000, 50_000, 100_000, 150_000, 200_000}
	for _, xtal := range []uint32{26_000_000, 50_000_000} {
		for _, target := range targets {
			m, e := fitDeviation(xtal, target)
			got := deviationFromRegisters(xtal, m, e)
			step := uint32(uint64(xtal) >> 22)
			if e > 0 {
				step = uint32(uint64(xtal) << (e - 1) >> 22)
			}
			var diff uint32
			if got > target {
				diff = got - target
			} else {
				diff = target - got
			}
			// nearest match leaves at most half a mantissa step
			if diff*2 > step+2 {
				t.Errorf("xtal %d target %d: got %d (m=%d e=%d), off by %d with step %d",
					xtal, target, got, m, e, diff, step)
			}
		}
	}
}

func TestDeviationLimits(t *testing.T) {
	if got := minDeviation(50_000_000); got != 11 {
		t.Errorf("minDeviation(50 MHz) expected 11, got %d", got)
	}
	if got := maxDeviation(26_000_000); got != 20_464_834 {
		t.Errorf("maxDeviation(26 MHz) expected 20464834, got %d", got)
	}
}

func TestChannelFilterFit(t *testing.T) {
	// at a 26 MHz digital clock the table entries are exact hundreds of Hz
	tests := []struct {
		target uint32
		m, e   uint8
	}{
		{800_100, 0, 0}, // widest entry, 8001
		{100_000, 2, 3}, // 1005 is nearer than 950
		{56_100, 0, 4},  // exact match on 561
		{1_100, 8, 9},   // narrowest entry, 11
		{1_150, 7, 9},   // tie between 11 and 12 goes to the lower index
		{2_000_000, 0, 0},
		{500, 8, 9},
	}
	for _, tc := range tests {
		m, e := fitChannelFilter(26_000_000, tc.target)
		if m != tc.m || e != tc.e {
			t.Errorf("target %d: expected m=%d e=%d, got m=%d e=%d", tc.target, tc.m, tc.e, m, e)
		}
	}
}

func TestChannelFilterBounds(t *testing.T) {
	lo, hi := channelFilterBounds(26_000_000)
	if lo != 1_100 || hi != 800_100 {
		t.Errorf("expected bounds 1100-800100 at 26 MHz, got %d-%d", lo, hi)
	}
	// other digital clocks scale the whole table linearly
	lo25, hi25 := channelFilterBounds(25_000_000)
	if lo25 >= lo || hi25 >= hi {
		t.Errorf("expected a slower clock to narrow the filter range, got %d-%d", lo25, hi25)
	}
}

func TestIfOffsets(t *testing.T) {
	anaTests := []struct {
		xtal uint32
		want uint8
	}{
		{50_000_000, 47},
		{26_000_000, 183},
	}
	for _, tc := range anaTests {
		if got := ifOffsetAna(tc.xtal); got != tc.want {
			t.Errorf("ifOffsetAna(%d) expected %d, got %d", tc.xtal, tc.want, got)
		}
	}
	digTests := []struct {
		fdig uint32
		want uint8
	}{
		{25_000_000, 194},
		{26_000_000, 183},
		{24_000_000, 207},
	}
	for _, tc := range digTests {
		if got := ifOffsetDig(tc.fdig); got != tc.want {
			t.Errorf("ifOffsetDig(%d) expected %d, got %d", tc.fdig, tc.want, got)
		}
	}
}

func TestBandOf(t *testing.T) {
	tests := []struct {
		fc   uint32
		band rfBand
		ok   bool
	}{
		{859_999_999, 0, false},
		{860_000_000, bandHigh, true},
		{868_000_000, bandHigh, true},
		{940_000_000, bandHigh, true},
		{940_000_001, 0, false},
		{429_999_999, 0, false},
		{430_000_000, bandMiddle, true},
		{470_000_000, bandMiddle, true},
		{470_000_001, 0, false},
		{0, 0, false},
	}
	for _, tc := range tests {
		band, ok := bandOf(tc.fc)
		if ok != tc.ok || (ok && band != tc.band) {
			t.Errorf("bandOf(%d) expected (%v, %v), got (%v, %v)", tc.fc, tc.band, tc.ok, band, ok)
		}
	}
	if bandFactor(bandHigh) != 4 || bandFactor(bandMiddle) != 8 {
		t.Error("band factors expected 4 for high and 8 for middle")
	}
}

func TestSynthesizerWord(t *testing.T) {
	tests := []struct {
		xtal, fc uint32
	}{
		{50_000_000, 868_000_000},
		{26_000_000, 868_000_000},
		{50_000_000, 433_000_000},
		{26_000_000, 433_000_000},
		{24_000_000, 915_000_000},
	}
	for _, tc := range tests {
		refdiv := refDivider(tc.xtal)
		synt := fitSynthesizer(tc.xtal, tc.fc, refdiv)
		if synt >= 1<<28 {
			t.Errorf("xtal %d fc %d: word %#x does not fit 28 bits", tc.xtal, tc.fc, synt)
			continue
		}
		band, _ := bandOf(tc.fc)
		d := uint64(1)
		if refdiv {
			d = 2
		}
		den := (bandFactor(band) / 2) * d << 20
		back := uint64(synt) * uint64(tc.xtal) / den
		step := uint64(tc.xtal)/den + 1
		if back > uint64(tc.fc) || uint64(tc.fc)-back > step {
			t.Errorf("xtal %d fc %d: word decodes to %d Hz", tc.xtal, tc.fc, back)
		}
	}
}

func TestChargePump(t *testing.T) {
	tests := []struct {
		xtal, fc uint32
		refdiv   bool
		isel     uint8
		split    bool
	}{
		{50_000_000, 868_000_000, true, 0x02, true},  // VCO low, fref 25 MHz
		{50_000_000, 915_000_000, true, 0x01, true},  // VCO high, fref 25 MHz
		{26_000_000, 868_000_000, false, 0x02, true}, // VCO low, fref 26 MHz
		{26_000_000, 915_000_000, false, 0x01, true},
		{26_000_000, 450_000_000, false, 0x01, true}, // 450*8 reaches the VCO split
		{50_000_000, 868_000_000, false, 0x03, false}, // fref above 30 MHz
		{50_000_000, 915_000_000, false, 0x02, false},
	}
	for _, tc := range tests {
		isel, split := chargePump(tc.xtal, tc.fc, tc.refdiv)
		if isel != tc.isel || split != tc.split {
			t.Errorf("chargePump(%d, %d, %v) expected (%#02x, %v), got (%#02x, %v)",
				tc.xtal, tc.fc, tc.refdiv, tc.isel, tc.split, isel, split)
		}
	}
}

func TestChannelSpacing(t *testing.T) {
	if got := fitChannelSpacing(26_000_000, 100_000); got != 126 {
		t.Errorf("expected register 126 for 100 kHz at 26 MHz, got %d", got)
	}
	// round trip stays within one register step
	for _, xtal := range []uint32{26_000_000, 50_000_000} {
		step := xtal >> 15
		for _, spacing := range []uint32{25_000, 100_000, 200_000} {
			reg := fitChannelSpacing(xtal, spacing)
			back := channelSpacingFromRegisters(xtal, reg)
			var diff uint32
			if back > spacing {
				diff = back - spacing
			} else {
				diff = spacing - back
			}
			if diff > step {
				t.Errorf("xtal %d spacing %d: register %d decodes to %d", xtal, spacing, reg, back)
			}
		}
	}
	if got := fitChannelSpacing(26_000_000, 10_000_000); got != 255 {
		t.Errorf("expected the spacing clamped to 255, got %d", got)
	}
	if got := fitChannelSpacing(26_000_000, 0); got != 0 {
		t.Errorf("expected zero spacing to stay zero, got %d", got)
	}
}
