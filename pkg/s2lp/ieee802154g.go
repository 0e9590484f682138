package s2lp

import (
	"encoding/binary"
)

// IEEE802154G frames packets per IEEE 802.15.4g: an 11 bit PHR carrying
// the frame length, mandatory CRC choice of none, 16 bit 0x1021 or
// 32 bit 0x04C011BB7, and optional data whitening. The chip derives the
// RX whitening setting from the received PHR, so DataWhitening only
// shapes transmissions.
type IEEE802154G struct {
	// PreambleLength is the number of preamble bit pairs, 0 to 2046.
	PreambleLength uint16
	// PreamblePattern selects the bit pair the preamble repeats.
	PreamblePattern PreamblePattern
	// SyncLength is the number of sync word bits used, 0 to 32.
	SyncLength uint8
	// SyncPattern is the sync word. The low byte lands in SYNC3.
	SyncPattern uint32
	// CrcMode must be CrcNone, CrcPoly0x1021 or CrcPoly0x04C011BB7;
	// anything else panics in SetFormat.
	CrcMode CrcMode
	// DataWhitening enables whitening on transmitted frames.
	DataWhitening bool
}

// IEEE802154GTxMetaData exists for symmetry; the format has no per
// packet transmit fields.
type IEEE802154GTxMetaData struct{}

func (IEEE802154GTxMetaData) txMetaData() {}

// IEEE802154GRxMetaData exists for symmetry; the format recovers no
// fields after a reception.
type IEEE802154GRxMetaData struct{}

func (IEEE802154GRxMetaData) rxMetaData() {}

func (f IEEE802154G) applyConfig(r *Radio) error {
	switch f.CrcMode {
	case CrcNone, CrcPoly0x1021, CrcPoly0x04C011BB7:
	default:
		panic("s2lp: unsupported CRC mode for IEEE 802.15.4g")
	}

	ll := &r.ll

	ctrl6 := [2]byte{
		f.SyncLength<<PCKTCTRL6_SYNC_LEN_SHIFT | uint8(f.PreambleLength>>8)&PCKTCTRL6_PREAMBLE_LEN_9_8,
		uint8(f.PreambleLength),
	}
	if err := ll.Write(PCKTCTRL6, ctrl6[:]); err != nil {
		return err
	}

	// The PHR length field is always 11 bits wide.
	if err := ll.Write8(PCKTCTRL4, PCKTCTRL4_LEN_WID|PCKTCTRL4_ADDRESS_LEN); err != nil {
		return err
	}

	ctrl3 := PCKT_FRMT_15_4G<<PCKTCTRL3_PCKT_FRMT_SHIFT | uint8(f.PreamblePattern)&PCKTCTRL3_PREAMBLE_SEL
	if err := ll.Write8(PCKTCTRL3, ctrl3); err != nil {
		return err
	}

	if err := ll.Write8(PCKTCTRL2, PCKTCTRL2_FIX_VAR_LEN); err != nil {
		return err
	}

	ctrl1 := uint8(f.CrcMode) << PCKTCTRL1_CRC_MODE_SHIFT
	if f.DataWhitening {
		ctrl1 |= PCKTCTRL1_WHIT_EN
	}
	if err := ll.Write8(PCKTCTRL1, ctrl1); err != nil {
		return err
	}

	var sync [4]byte
	binary.LittleEndian.PutUint32(sync[:], f.SyncPattern)
	if err := ll.Write(SYNC3, sync[:]); err != nil {
		return err
	}

	return DefaultPacketFilter().apply(ll)
}

func (f IEEE802154G) prepareSend(r *Radio, meta TxMetaData, payloadLen int) error {
	if meta != nil {
		if _, ok := meta.(IEEE802154GTxMetaData); !ok {
			return &ConfigError{Field: "TxMetaData", Reason: "metadata does not belong to the IEEE 802.15.4g format"}
		}
	}

	ctrl1, err := r.ll.Read8(PCKTCTRL1)
	if err != nil {
		return err
	}
	crcLen := CrcMode(ctrl1 >> PCKTCTRL1_CRC_MODE_SHIFT).numBytes()

	// The 11 bit PHR length field counts the CRC bytes too.
	if payloadLen+crcLen >= 2048 {
		return ErrBufferTooLarge
	}

	var pcktLen [2]byte
	binary.BigEndian.PutUint16(pcktLen[:], uint16(payloadLen+crcLen))
	return r.ll.Write(PCKTLEN1, pcktLen[:])
}

func (f IEEE802154G) readRxMetaData(r *Radio) (RxMetaData, error) {
	return IEEE802154GRxMetaData{}, nil
}
