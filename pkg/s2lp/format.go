package s2lp

// PacketFormat programs the packet engine for one framing scheme and
// encodes the per packet fields that scheme needs. Basic and Ieee802154G
// are the provided implementations; the interface is sealed because the
// register sequences are format specific and not useful to extend from
// outside the package.
type PacketFormat interface {
	// applyConfig programs the format registers, called once by SetFormat.
	applyConfig(r *Radio) error
	// prepareSend validates payloadLen against the configured length
	// field and writes PCKTLEN plus any per packet metadata.
	prepareSend(r *Radio, meta TxMetaData, payloadLen int) error
	// readRxMetaData pulls the format specific fields of the packet that
	// was just received out of the chip.
	readRxMetaData(r *Radio) (RxMetaData, error)
}

// TxMetaData carries the per packet transmit fields of a format, such as
// the destination address of a Basic packet. Passing a metadata value of
// the wrong format to SendPacket is a configuration error.
type TxMetaData interface {
	txMetaData()
}

// RxMetaData carries the format specific fields recovered from the chip
// after a reception. Callers type assert to the concrete metadata of the
// format they configured.
type RxMetaData interface {
	rxMetaData()
}

// PreamblePattern selects the bit pattern the preamble repeats.
type PreamblePattern uint8

const (
	// PreamblePattern0 is 0101 for 2(G)FSK or OOK/ASK, 0010 for 4(G)FSK.
	PreamblePattern0 PreamblePattern = 0
	// PreamblePattern1 is 1010 for 2(G)FSK or OOK/ASK, 0111 for 4(G)FSK.
	PreamblePattern1 PreamblePattern = 1
	// PreamblePattern2 is 1100 for 2(G)FSK or OOK/ASK, 1101 for 4(G)FSK.
	PreamblePattern2 PreamblePattern = 2
	// PreamblePattern3 is 0011 for 2(G)FSK or OOK/ASK, 1000 for 4(G)FSK.
	PreamblePattern3 PreamblePattern = 3
)

// CrcMode selects the CRC the chip appends to and checks on each packet.
// The values match the CRC_MODE field of PCKTCTRL1.
type CrcMode uint8

const (
	CrcNone            CrcMode = 0x0
	CrcPoly0x07        CrcMode = 0x1 // 8 bit
	CrcPoly0x8005      CrcMode = 0x2 // 16 bit
	CrcPoly0x1021      CrcMode = 0x3 // 16 bit
	CrcPoly0x864CFB    CrcMode = 0x4 // 24 bit
	CrcPoly0x04C011BB7 CrcMode = 0x5 // 32 bit
)

// numBytes reports how many CRC bytes the mode adds to a packet.
func (c CrcMode) numBytes() int {
	switch c {
	case CrcPoly0x07:
		return 1
	case CrcPoly0x8005, CrcPoly0x1021:
		return 2
	case CrcPoly0x864CFB:
		return 3
	case CrcPoly0x04C011BB7:
		return 4
	default:
		return 0
	}
}

// LengthWidth selects how many bytes the in-air length field occupies,
// which bounds the payload size a packet can carry.
type LengthWidth uint8

const (
	LengthWidth1Byte  LengthWidth = 0
	LengthWidth2Bytes LengthWidth = 1
)

func (w LengthWidth) maxPacketLen() int {
	if w == LengthWidth2Bytes {
		return 65535
	}
	return 255
}

// Addr turns an address literal into the optional pointer form the
// filtering options and Basic metadata use.
func Addr(v uint8) *uint8 { return &v }

// PacketFilteringOptions controls the automatic packet filter. Each
// non-nil address both supplies the comparison value and enables that
// filter category; with no address filters set every packet is accepted.
type PacketFilteringOptions struct {
	// DiscardBadCrc drops packets whose CRC check fails. Ignored when the
	// format runs without CRC.
	DiscardBadCrc bool
	// SourceAddress is the address of this device. If non-nil only
	// packets destined to it pass the source filter.
	SourceAddress *uint8
	// MulticastAddress is the multicast group this device is part of.
	MulticastAddress *uint8
	// BroadcastAddress is the broadcast address this device answers to.
	BroadcastAddress *uint8
}

// DefaultPacketFilter discards bad CRC packets and filters no addresses.
func DefaultPacketFilter() PacketFilteringOptions {
	return PacketFilteringOptions{DiscardBadCrc: true}
}

func (o PacketFilteringOptions) apply(ll *Registers) error {
	const filterBits = PCKT_FLT_CRC_FLT | PCKT_FLT_DEST_VS_SOURCE_ADDR |
		PCKT_FLT_DEST_VS_MULTICAST_ADDR | PCKT_FLT_DEST_VS_BROADCAST_ADDR
	var set uint8
	if o.DiscardBadCrc {
		set |= PCKT_FLT_CRC_FLT
	}
	if o.BroadcastAddress != nil {
		set |= PCKT_FLT_DEST_VS_BROADCAST_ADDR
	}
	if o.MulticastAddress != nil {
		set |= PCKT_FLT_DEST_VS_MULTICAST_ADDR
	}
	if o.SourceAddress != nil {
		set |= PCKT_FLT_DEST_VS_SOURCE_ADDR
	}
	if err := ll.Modify8(PCKT_FLT_OPTIONS, filterBits, set); err != nil {
		return err
	}
	if err := ll.Write8(PCKT_FLT_GOALS2, addrValue(o.BroadcastAddress)); err != nil {
		return err
	}
	if err := ll.Write8(PCKT_FLT_GOALS1, addrValue(o.MulticastAddress)); err != nil {
		return err
	}
	if err := ll.Write8(PCKT_FLT_GOALS0, addrValue(o.SourceAddress)); err != nil {
		return err
	}
	return ll.Modify8(PROTOCOL1, 0, PROTOCOL1_AUTO_PCKT_FLT)
}

func addrValue(a *uint8) uint8 {
	if a == nil {
		return 0
	}
	return *a
}
