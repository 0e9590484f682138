package s2lp

import (
	"encoding/binary"
)

// Basic is the chip's native framing scheme: programmable preamble and
// sync word, an optional one byte destination address, a one or two byte
// length field, CRC and postamble. The zero value is a packet with no
// preamble, no sync, no address, a one byte length field, no CRC and no
// filtering; real links want at least a preamble, a sync word and
// DefaultPacketFilter.
type Basic struct {
	// PreambleLength is the number of preamble bit pairs, 0 to 2046.
	PreambleLength uint16
	// PreamblePattern selects the bit pair the preamble repeats.
	PreamblePattern PreamblePattern
	// SyncLength is the number of sync word bits used, 0 to 32.
	SyncLength uint8
	// SyncPattern is the sync word. The low byte lands in SYNC3.
	SyncPattern uint32
	// IncludeAddress adds a destination address byte to every packet.
	// SendPacket then requires a BasicTxMetaData carrying the address.
	IncludeAddress bool
	// PacketLengthEncoding selects the in-air length field width, which
	// bounds the payload at 255 or 65535 bytes.
	PacketLengthEncoding LengthWidth
	// PostambleLength is the postamble length in pairs of 01 bits.
	PostambleLength uint8
	// CrcMode selects the CRC appended to and checked on each packet.
	CrcMode CrcMode
	// PacketFilter configures the automatic RX packet filter.
	PacketFilter PacketFilteringOptions
}

// BasicTxMetaData carries the per packet fields of the Basic format.
type BasicTxMetaData struct {
	// DestinationAddress must be set exactly when the format was
	// configured with IncludeAddress.
	DestinationAddress *uint8
}

func (BasicTxMetaData) txMetaData() {}

// BasicRxMetaData is recovered from the chip after a Basic reception.
type BasicRxMetaData struct {
	// DestinationAddress of the received packet, nil when the format
	// carries no address field.
	DestinationAddress *uint8
}

func (BasicRxMetaData) rxMetaData() {}

func (b Basic) applyConfig(r *Radio) error {
	ll := &r.ll

	ctrl6 := [2]byte{
		b.SyncLength<<PCKTCTRL6_SYNC_LEN_SHIFT | uint8(b.PreambleLength>>8)&PCKTCTRL6_PREAMBLE_LEN_9_8,
		uint8(b.PreambleLength),
	}
	if err := ll.Write(PCKTCTRL6, ctrl6[:]); err != nil {
		return err
	}

	var ctrl4 uint8
	if b.IncludeAddress {
		ctrl4 |= PCKTCTRL4_ADDRESS_LEN
	}
	if b.PacketLengthEncoding == LengthWidth2Bytes {
		ctrl4 |= PCKTCTRL4_LEN_WID
	}
	if err := ll.Write8(PCKTCTRL4, ctrl4); err != nil {
		return err
	}

	ctrl3 := PCKT_FRMT_BASIC<<PCKTCTRL3_PCKT_FRMT_SHIFT | uint8(b.PreamblePattern)&PCKTCTRL3_PREAMBLE_SEL
	if err := ll.Write8(PCKTCTRL3, ctrl3); err != nil {
		return err
	}

	if err := ll.Write8(PCKTCTRL2, PCKTCTRL2_FIX_VAR_LEN); err != nil {
		return err
	}

	if err := ll.Write8(PCKTCTRL1, uint8(b.CrcMode)<<PCKTCTRL1_CRC_MODE_SHIFT); err != nil {
		return err
	}

	var sync [4]byte
	binary.LittleEndian.PutUint32(sync[:], b.SyncPattern)
	if err := ll.Write(SYNC3, sync[:]); err != nil {
		return err
	}

	if err := ll.Write8(PCKT_PSTMBL, b.PostambleLength); err != nil {
		return err
	}

	return b.PacketFilter.apply(ll)
}

func (b Basic) prepareSend(r *Radio, meta TxMetaData, payloadLen int) error {
	var m BasicTxMetaData
	if meta != nil {
		var ok bool
		if m, ok = meta.(BasicTxMetaData); !ok {
			return &ConfigError{Field: "TxMetaData", Reason: "metadata does not belong to the Basic format"}
		}
	}

	ctrl4, err := r.ll.Read8(PCKTCTRL4)
	if err != nil {
		return err
	}
	addrLen := 0
	if ctrl4&PCKTCTRL4_ADDRESS_LEN != 0 {
		addrLen = 1
	}
	maxPacketLen := LengthWidth(0).maxPacketLen()
	if ctrl4&PCKTCTRL4_LEN_WID != 0 {
		maxPacketLen = LengthWidth2Bytes.maxPacketLen()
	}

	if payloadLen > maxPacketLen-addrLen {
		return ErrBufferTooLarge
	}
	if (addrLen == 1) != (m.DestinationAddress != nil) {
		return &ConfigError{Field: "DestinationAddress", Reason: "given address different from the format config"}
	}

	var pcktLen [2]byte
	binary.BigEndian.PutUint16(pcktLen[:], uint16(payloadLen+addrLen))
	if err := r.ll.Write(PCKTLEN1, pcktLen[:]); err != nil {
		return err
	}

	if m.DestinationAddress != nil {
		if err := r.ll.Write8(PCKT_FLT_GOALS3, *m.DestinationAddress); err != nil {
			return err
		}
	}
	return nil
}

func (b Basic) readRxMetaData(r *Radio) (RxMetaData, error) {
	ctrl4, err := r.ll.Read8(PCKTCTRL4)
	if err != nil {
		return nil, err
	}
	var meta BasicRxMetaData
	if ctrl4&PCKTCTRL4_ADDRESS_LEN != 0 {
		dest, err := r.ll.Read8(RX_ADDRE_FIELD0)
		if err != nil {
			return nil, err
		}
		meta.DestinationAddress = Addr(dest)
	}
	return meta, nil
}
