package logic

// Nominal timings used when synthesizing frames, in microseconds.
const (
	NominalPulse    Sample = 500
	NominalPreamble Sample = 4000
	NominalEnd      Sample = 4000
	NominalOne      Sample = 1900
	NominalZero     Sample = 950
)

// fixedNibble occupies bits 24-27; real sensors always send 1111 there.
const fixedNibble = 0xF

// EncodeBits packs a reading into the 36-bit frame layout. Values are not
// validated: Humidity above 100 is encoded as given, which is how tests
// reproduce out-of-range sensor output.
func EncodeBits(r Reading) uint64 {
	temp := r.TempTenths
	if temp < 0 {
		temp += tempModulus
	}

	var bits uint64
	bits |= uint64(r.ID) << (PayloadLen - idOffset - idWidth)
	if r.BatteryOK {
		bits |= 1 << (PayloadLen - batteryOffset - batteryWidth)
	}
	bits |= uint64((r.Channel-1)&0x3) << (PayloadLen - channelOffset - channelWidth)
	bits |= uint64(temp&0xFFF) << (PayloadLen - tempOffset - tempWidth)
	bits |= fixedNibble << (PayloadLen - tempOffset - tempWidth - 4)
	bits |= uint64(r.Humidity) << (PayloadLen - humidityOffset - humidityWidth)
	return bits
}

// FrameFromBits converts the low PayloadLen bits into nominal gap samples.
func FrameFromBits(bits uint64) Frame {
	frame := make(Frame, PayloadLen)
	for i := range frame {
		if bits>>(PayloadLen-1-i)&1 == 1 {
			frame[i] = NominalOne
		} else {
			frame[i] = NominalZero
		}
	}
	return frame
}

// Encode synthesizes the frame a sensor would send for r.
func Encode(r Reading) Frame {
	return FrameFromBits(EncodeBits(r))
}
