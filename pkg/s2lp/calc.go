package s2lp

// RF parameter fitting. Everything here is pure integer arithmetic so the
// register values match the hardware-verified reference computations bit
// for bit; floats only appear in the tests as an independent cross check.

// Crystals above this threshold run the digital domain at half the crystal
// rate and divide the PLL reference by two.
const digDomainXtalThresh = 30_000_000

// vcoCenterFreq divides the two VCO tuning ranges of the synthesizer.
const vcoCenterFreq uint64 = 3_600_000_000

// Documented operating bands.
const (
	highBandLower   = 860_000_000
	highBandUpper   = 940_000_000
	middleBandLower = 430_000_000
	middleBandUpper = 470_000_000
)

const (
	minDatarate    = 100
	maxDatarateCap = 500_000
)

// digitalFrequency derives the digital domain clock from the crystal.
func digitalFrequency(xtal uint32) uint32 {
	if xtal > digDomainXtalThresh {
		return xtal / 2
	}
	return xtal
}

func divRound(a, b uint64) uint64 { return (a + b/2) / b }

func divCeil(a, b uint64) uint64 { return (a + b - 1) / b }

// maxDatarate is the upper validation bound for the air datarate.
func maxDatarate(fdig uint32) uint32 {
	if c := fdig / 8; c < maxDatarateCap {
		return c
	}
	return maxDatarateCap
}

// datarateFromRegisters decodes a mantissa/exponent pair back to bps.
//
//	e = 0:      rate = fdig * m / 2^32
//	e = 1..14:  rate = fdig * (2^16 + m) * 2^e / 2^33
//	e = 15:     rate = fdig / (8 * m)
func datarateFromRegisters(fdig uint32, m uint16, e uint8) uint32 {
	f := uint64(fdig)
	switch {
	case e == 0:
		return uint32(f * uint64(m) >> 32)
	case e < 15:
		return uint32((f * (1<<16 + uint64(m)) << e) >> 33)
	default:
		return uint32(f / (8 * uint64(m)))
	}
}

// datarateExponentMax is the highest rate an exponent can express.
func datarateExponentMax(fdig uint32, e uint8) uint64 {
	f := uint64(fdig)
	switch {
	case e == 0:
		return f * 65535 >> 32
	case e < 15:
		return (f * (1<<16 + 65535) << e) >> 33
	default:
		return f / 8
	}
}

// fitDatarate encodes the target rate as the mantissa/exponent pair that
// comes closest without going over. The smallest exponent able to express
// the target wins because resolution improves as the exponent shrinks.
func fitDatarate(fdig, target uint32) (m uint16, e uint8) {
	for e = 0; e < 15; e++ {
		if datarateExponentMax(fdig, e) >= uint64(target) {
			break
		}
	}
	f := uint64(fdig)
	switch {
	case e == 0:
		v := divRound(uint64(target)<<32, f)
		for v > 0 && f*v>>32 > uint64(target) {
			v--
		}
		if v > 65535 {
			v = 65535
		}
		return uint16(v), 0
	case e < 15:
		v := divRound(uint64(target)<<(33-e), f)
		for v > 0 && (f*v<<e)>>33 > uint64(target) {
			v--
		}
		if v < 1<<16 {
			// the target sits in the gap below this exponent's mantissa
			// floor; the top of the previous exponent is the closest value
			// that does not overshoot
			return 65535, e - 1
		}
		if v > 1<<16+65535 {
			v = 1<<16 + 65535
		}
		return uint16(v - 1<<16), e
	default:
		v := divCeil(f, 8*uint64(target))
		if v > 65535 {
			v = 65535
		}
		if v == 0 {
			v = 1
		}
		return uint16(v), 15
	}
}

// Deviation limits, tied to the crystal per the reference implementation.
func minDeviation(xtal uint32) uint32 { return xtal >> 22 }

func maxDeviation(xtal uint32) uint32 {
	return uint32(787109 * uint64(xtal) / 1_000_000)
}

// deviationFromRegisters decodes a deviation mantissa/exponent pair to Hz.
// The deviation runs off the crystal, not the digital clock.
//
//	e = 0:      dev = xtal * m / 2^22
//	e = 1..15:  dev = xtal * (256 + m) * 2^(e-1) / 2^22
func deviationFromRegisters(xtal uint32, m uint8, e uint8) uint32 {
	f := uint64(xtal)
	if e == 0 {
		return uint32(f * uint64(m) >> 22)
	}
	return uint32((f * (256 + uint64(m)) << (e - 1)) >> 22)
}

func deviationExponentMax(xtal uint32, e uint8) uint64 {
	f := uint64(xtal)
	if e == 0 {
		return f * 255 >> 22
	}
	return (f * 511 << (e - 1)) >> 22
}

// fitDeviation encodes the target deviation. The mantissa is found with a
// descending scan; of the two candidates bracketing the target the one
// with the smaller absolute error wins, the lower mantissa on a tie.
func fitDeviation(xtal, target uint32) (m uint8, e uint8) {
	for e = 0; e < 15; e++ {
		if deviationExponentMax(xtal, e) >= uint64(target) {
			break
		}
	}
	for mi := 255; mi >= 1; mi-- {
		below := deviationFromRegisters(xtal, uint8(mi), e)
		if below > target {
			continue
		}
		if mi == 255 {
			return 255, e
		}
		above := deviationFromRegisters(xtal, uint8(mi+1), e)
		if above-target < target-below {
			return uint8(mi + 1), e
		}
		return uint8(mi), e
	}
	return 0, e
}

// channelFilterWords is the set of channel filter bandwidths the chip can
// realize, in units of 100 Hz at a 26 MHz digital clock. Row i covers
// exponent i, column j mantissa j; other digital clocks scale the whole
// table linearly.
var channelFilterWords = [90]uint16{
	8001, 7951, 7684, 7368, 7051, 6709, 6423, 5867, 5414,
	4509, 4259, 4032, 3808, 3621, 3417, 3254, 2945, 2703,
	2247, 2124, 2015, 1900, 1807, 1706, 1624, 1471, 1350,
	1123, 1062, 1005, 950, 903, 853, 812, 735, 675,
	561, 530, 502, 474, 451, 426, 406, 367, 337,
	280, 265, 251, 237, 226, 213, 203, 184, 169,
	140, 133, 126, 119, 113, 106, 101, 92, 84,
	70, 66, 63, 59, 56, 53, 51, 46, 42,
	35, 33, 31, 30, 28, 27, 25, 23, 21,
	18, 17, 16, 15, 14, 13, 13, 12, 11,
}

// channelFilterImplied is the bandwidth in Hz that table index i realizes
// at the given digital clock.
func channelFilterImplied(fdig uint32, i int) uint32 {
	return uint32(uint64(channelFilterWords[i]) * 100 * uint64(fdig) / 26_000_000)
}

func channelFilterBounds(fdig uint32) (lo, hi uint32) {
	return channelFilterImplied(fdig, len(channelFilterWords)-1),
		channelFilterImplied(fdig, 0)
}

// fitChannelFilter picks the table entry nearest to the target bandwidth.
// Ties go to the lower index. The index splits into the two CHFLT fields.
func fitChannelFilter(fdig, target uint32) (m uint8, e uint8) {
	best := 0
	bestDiff := uint32(1<<32 - 1)
	for i := range channelFilterWords {
		implied := channelFilterImplied(fdig, i)
		var diff uint32
		if implied >= target {
			diff = implied - target
		} else {
			diff = target - implied
		}
		if diff < bestDiff {
			bestDiff = diff
			best = i
		}
	}
	return uint8(best % 9), uint8(best / 9)
}

// channelFilterFromRegisters decodes CHFLT fields back to the bandwidth.
func channelFilterFromRegisters(fdig uint32, m, e uint8) uint32 {
	return channelFilterImplied(fdig, int(e)*9+int(m))
}

// ifOffsetAna and ifOffsetDig place the intermediate frequency at 300 kHz
// in the analog and digital domains.
func ifOffsetAna(xtal uint32) uint8 {
	return uint8(7_372_800_000/uint64(xtal) - 100)
}

func ifOffsetDig(fdig uint32) uint8 {
	return uint8(7_372_800_000/uint64(fdig) - 100)
}

type rfBand int

const (
	bandHigh rfBand = iota
	bandMiddle
)

// bandOf places a carrier in one of the two documented bands.
func bandOf(fc uint32) (rfBand, bool) {
	switch {
	case fc >= highBandLower && fc <= highBandUpper:
		return bandHigh, true
	case fc >= middleBandLower && fc <= middleBandUpper:
		return bandMiddle, true
	default:
		return 0, false
	}
}

// bandFactor is the synthesizer multiplier B for a band.
func bandFactor(b rfBand) uint64 {
	if b == bandMiddle {
		return 8
	}
	return 4
}

// refDivider reports whether the PLL reference must be halved for this
// crystal. It follows the same threshold as the digital domain divider.
func refDivider(xtal uint32) bool { return xtal > digDomainXtalThresh }

// fitSynthesizer computes the 28 bit synthesizer word:
//
//	SYNT = fc * (B/2) * D * 2^20 / xtal
//
// with D = 2 when the reference divider is active.
func fitSynthesizer(xtal, fc uint32, refdiv bool) uint32 {
	b, _ := bandOf(fc)
	d := uint64(1)
	if refdiv {
		d = 2
	}
	return uint32((uint64(fc) << 20) * (bandFactor(b) / 2) * d / uint64(xtal))
}

// chargePump selects the PLL charge pump current code and the PFD split
// setting from the VCO frequency and the PLL reference frequency.
func chargePump(xtal, fc uint32, refdiv bool) (isel uint8, pfdSplit bool) {
	b, _ := bandOf(fc)
	vco := uint64(fc) * bandFactor(b)
	fref := xtal
	if refdiv {
		fref = xtal / 2
	}
	if vco >= vcoCenterFreq {
		if fref > digDomainXtalThresh {
			return 0x02, false
		}
		return 0x01, true
	}
	if fref > digDomainXtalThresh {
		return 0x03, false
	}
	return 0x02, true
}

// channelSpacingFromRegisters and fitChannelSpacing convert between the
// CHSPACE register and Hz. One register step is xtal/2^15.
func fitChannelSpacing(xtal, spacing uint32) uint8 {
	v := divRound(uint64(spacing)<<15, uint64(xtal))
	if v > 255 {
		v = 255
	}
	return uint8(v)
}

func channelSpacingFromRegisters(xtal uint32, reg uint8) uint32 {
	return uint32(uint64(xtal) * uint64(reg) >> 15)
}
