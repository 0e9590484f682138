package s2lp

// Register addresses, command codes and field masks for the S2-LP.
// Names follow the datasheet so they can be cross checked against it.

// Register addresses.
const (
	GPIO0_CONF uint8 = 0x00
	GPIO1_CONF uint8 = 0x01
	GPIO2_CONF uint8 = 0x02
	GPIO3_CONF uint8 = 0x03
	SYNT3      uint8 = 0x05
	SYNT2      uint8 = 0x06
	SYNT1      uint8 = 0x07
	SYNT0      uint8 = 0x08

	IF_OFFSET_ANA uint8 = 0x09
	IF_OFFSET_DIG uint8 = 0x0A
	CHSPACE       uint8 = 0x0C
	CHNUM         uint8 = 0x0D

	MOD4  uint8 = 0x0E // datarate mantissa [15:8]
	MOD3  uint8 = 0x0F // datarate mantissa [7:0]
	MOD2  uint8 = 0x10 // modulation type | datarate exponent
	MOD1  uint8 = 0x11 // deviation exponent
	MOD0  uint8 = 0x12 // deviation mantissa
	CHFLT uint8 = 0x13 // channel filter mantissa | exponent

	AFC2     uint8 = 0x14
	AFC1     uint8 = 0x15
	AFC0     uint8 = 0x16
	RSSI_FLT uint8 = 0x17
	RSSI_TH  uint8 = 0x18

	AGCCTRL4        uint8 = 0x1A
	AGCCTRL3        uint8 = 0x1B
	AGCCTRL2        uint8 = 0x1C
	AGCCTRL1        uint8 = 0x1D
	AGCCTRL0        uint8 = 0x1E
	ANT_SELECT_CONF uint8 = 0x1F
	CLOCKREC2       uint8 = 0x20
	CLOCKREC1       uint8 = 0x21

	PCKTCTRL6 uint8 = 0x2B // sync length | preamble length [9:8]
	PCKTCTRL5 uint8 = 0x2C // preamble length [7:0]
	PCKTCTRL4 uint8 = 0x2D // length field width, address field
	PCKTCTRL3 uint8 = 0x2E // packet format, rx mode, byte swap, preamble pattern
	PCKTCTRL2 uint8 = 0x2F // 802.15.4g FCS/FEC, fixed/variable length
	PCKTCTRL1 uint8 = 0x30 // CRC mode, whitening, TX source, FEC
	PCKTLEN1  uint8 = 0x31 // packet length [15:8]
	PCKTLEN0  uint8 = 0x32 // packet length [7:0]

	SYNC3       uint8 = 0x33 // sync word, pattern LSB goes here
	SYNC2       uint8 = 0x34
	SYNC1       uint8 = 0x35
	SYNC0       uint8 = 0x36
	QI          uint8 = 0x37
	PCKT_PSTMBL uint8 = 0x38

	PROTOCOL2 uint8 = 0x39
	PROTOCOL1 uint8 = 0x3A
	PROTOCOL0 uint8 = 0x3B

	FIFO_CONFIG3 uint8 = 0x3C // RX FIFO almost full threshold
	FIFO_CONFIG2 uint8 = 0x3D // RX FIFO almost empty threshold
	FIFO_CONFIG1 uint8 = 0x3E // TX FIFO almost full threshold
	FIFO_CONFIG0 uint8 = 0x3F // TX FIFO almost empty threshold

	PCKT_FLT_OPTIONS uint8 = 0x40
	PCKT_FLT_GOALS4  uint8 = 0x41 // RX source address mask
	PCKT_FLT_GOALS3  uint8 = 0x42 // RX source address / TX destination address
	PCKT_FLT_GOALS2  uint8 = 0x43 // broadcast address
	PCKT_FLT_GOALS1  uint8 = 0x44 // multicast address
	PCKT_FLT_GOALS0  uint8 = 0x45 // source address of this node

	TIMERS5 uint8 = 0x46 // RX timer counter
	TIMERS4 uint8 = 0x47 // RX timer prescaler

	CSMA_CONF3 uint8 = 0x4C // backoff counter seed [15:8]
	CSMA_CONF2 uint8 = 0x4D // backoff counter seed [7:0]
	CSMA_CONF1 uint8 = 0x4E // backoff prescaler | CCA period
	CSMA_CONF0 uint8 = 0x4F // CCA length | max backoffs

	IRQ_MASK3 uint8 = 0x50 // interrupt mask [31:24]
	IRQ_MASK2 uint8 = 0x51
	IRQ_MASK1 uint8 = 0x52
	IRQ_MASK0 uint8 = 0x53

	SYNTH_CONFIG2 uint8 = 0x65
	XO_RCO_CONF1  uint8 = 0x6F
	XO_RCO_CONF0  uint8 = 0x70

	PM_CONF4 uint8 = 0x75
	PM_CONF3 uint8 = 0x76
	PM_CONF2 uint8 = 0x77
	PM_CONF1 uint8 = 0x78
	PM_CONF0 uint8 = 0x79

	MC_STATE1 uint8 = 0x8D
	MC_STATE0 uint8 = 0x8E

	RX_PCKT_LEN1    uint8 = 0xA5
	RX_PCKT_LEN0    uint8 = 0xA6
	RX_ADDRE_FIELD1 uint8 = 0xAB
	RX_ADDRE_FIELD0 uint8 = 0xAC
	RSSI_LEVEL      uint8 = 0xA4
	RSSI_LEVEL_RUN  uint8 = 0xEF

	DEVICE_INFO1 uint8 = 0xF0 // part number
	DEVICE_INFO0 uint8 = 0xF1 // version

	IRQ_STATUS3 uint8 = 0xFA // reading 0xFA..0xFD clears the whole status
	IRQ_STATUS2 uint8 = 0xFB
	IRQ_STATUS1 uint8 = 0xFC
	IRQ_STATUS0 uint8 = 0xFD
)

// Command codes, strobed through RegisterBus.DispatchCommand.
const (
	CMD_TX              uint8 = 0x60
	CMD_RX              uint8 = 0x61
	CMD_READY           uint8 = 0x62
	CMD_STANDBY         uint8 = 0x63
	CMD_SLEEP           uint8 = 0x64
	CMD_LOCKRX          uint8 = 0x65
	CMD_LOCKTX          uint8 = 0x66
	CMD_SABORT          uint8 = 0x67
	CMD_LDC_RELOAD      uint8 = 0x68
	CMD_SRES            uint8 = 0x70
	CMD_FLUSHRXFIFO     uint8 = 0x71
	CMD_FLUSHTXFIFO     uint8 = 0x72
	CMD_SEQUENCE_UPDATE uint8 = 0x73
)

// Field masks and shifts for the registers the driver touches.
const (
	SYNT3_BS          uint8 = 0x10 // 1 selects the middle band
	SYNT3_PLL_CP_ISEL uint8 = 0xE0
	PLL_CP_ISEL_SHIFT       = 5

	MOD2_MOD_TYPE_SHIFT       = 4
	MOD2_DATARATE_E     uint8 = 0x0F
	MOD1_FDEV_E         uint8 = 0x0F
	CHFLT_M_SHIFT             = 4
	CHFLT_E             uint8 = 0x0F

	RSSI_FLT_SHIFT         = 4
	RSSI_FLT_CS_MODE uint8 = 0x0C

	ANT_SELECT_CS_BLANKING uint8 = 0x10

	PCKTCTRL6_SYNC_LEN_SHIFT         = 2
	PCKTCTRL6_PREAMBLE_LEN_9_8 uint8 = 0x03
	PCKTCTRL4_LEN_WID          uint8 = 0x80
	PCKTCTRL4_ADDRESS_LEN      uint8 = 0x08
	PCKTCTRL3_PCKT_FRMT_SHIFT        = 6
	PCKTCTRL3_RX_MODE_SHIFT          = 4
	PCKTCTRL3_BYTE_SWAP        uint8 = 0x04
	PCKTCTRL3_PREAMBLE_SEL     uint8 = 0x03
	PCKTCTRL2_FCS_TYPE_4G      uint8 = 0x20
	PCKTCTRL2_FEC_TYPE_4G      uint8 = 0x10
	PCKTCTRL2_INT_EN_4G        uint8 = 0x08
	PCKTCTRL2_FIX_VAR_LEN      uint8 = 0x01
	PCKTCTRL1_CRC_MODE_SHIFT         = 5
	PCKTCTRL1_WHIT_EN          uint8 = 0x10
	PCKTCTRL1_FEC_EN           uint8 = 0x01

	PROTOCOL2_CS_TIMEOUT_MASK  uint8 = 0x80
	PROTOCOL2_SQI_TIMEOUT_MASK uint8 = 0x40
	PROTOCOL2_PQI_TIMEOUT_MASK uint8 = 0x20

	PROTOCOL1_LDC_MODE      uint8 = 0x80
	PROTOCOL1_FAST_CS_TERM  uint8 = 0x10
	PROTOCOL1_SEED_RELOAD   uint8 = 0x08
	PROTOCOL1_CSMA_ON       uint8 = 0x04
	PROTOCOL1_CSMA_PERS_ON  uint8 = 0x02
	PROTOCOL1_AUTO_PCKT_FLT uint8 = 0x01

	PCKT_FLT_CRC_FLT                uint8 = 0x01
	PCKT_FLT_DEST_VS_SOURCE_ADDR    uint8 = 0x02
	PCKT_FLT_DEST_VS_MULTICAST_ADDR uint8 = 0x04
	PCKT_FLT_DEST_VS_BROADCAST_ADDR uint8 = 0x08
	PCKT_FLT_RX_TIMEOUT_AND_OR_SEL  uint8 = 0x40

	CSMA_CONF1_BU_PRSC_SHIFT       = 2
	CSMA_CONF1_CCA_PERIOD    uint8 = 0x03
	CSMA_CONF0_CCA_LEN_SHIFT       = 4
	CSMA_CONF0_NBACKOFF_MAX  uint8 = 0x07

	SYNTH_CONFIG2_PLL_PFD_SPLIT_EN uint8 = 0x04

	XO_RCO_CONF1_PD_CLKDIV       uint8 = 0x10
	XO_RCO_CONF0_REFDIV          uint8 = 0x08
	XO_RCO_CONF0_RCO_CALIBRATION uint8 = 0x01

	PM_CONF1_SMPS_LVL_MODE  uint8 = 0x20
	PM_CONF0_SLEEP_MODE_SEL uint8 = 0x01

	MC_STATE1_RCCAL_OK   uint8 = 0x10
	MC_STATE1_ERROR_LOCK uint8 = 0x01

	FIFO_THRESHOLD_DEFAULT uint8 = 0x30
)

// Packet format codes for the PCKTCTRL3 PCKT_FRMT field.
const (
	PCKT_FRMT_BASIC uint8 = 0x0
	PCKT_FRMT_15_4G uint8 = 0x1
	PCKT_FRMT_UART  uint8 = 0x2
	PCKT_FRMT_STACK uint8 = 0x3
)

// Identity of the supported silicon.
const (
	devicePartNumber uint8 = 0x03
	deviceVersion    uint8 = 0xC1
)

// ChipState is the state field of MC_STATE0, datasheet coded.
type ChipState uint8

const (
	ChipStateReady       ChipState = 0x00
	ChipStateSleepNoFifo ChipState = 0x01
	ChipStateStandby     ChipState = 0x02
	ChipStateSleep       ChipState = 0x03
	ChipStateLockOn      ChipState = 0x0C
	ChipStateLockSt      ChipState = 0x14
	ChipStateRx          ChipState = 0x30
	ChipStateSynthSetup  ChipState = 0x50
	ChipStateTx          ChipState = 0x5C
)

// chipStateFromMcState0 extracts the state code; bit 0 of MC_STATE0 is the
// XO ready flag, the state sits above it.
func chipStateFromMcState0(b uint8) ChipState {
	return ChipState(b >> 1)
}

func (s ChipState) String() string {
	switch s {
	case ChipStateReady:
		return "READY"
	case ChipStateSleepNoFifo:
		return "SLEEP_A"
	case ChipStateStandby:
		return "STANDBY"
	case ChipStateSleep:
		return "SLEEP_B"
	case ChipStateLockOn:
		return "LOCKON"
	case ChipStateLockSt:
		return "LOCK_ST"
	case ChipStateRx:
		return "RX"
	case ChipStateSynthSetup:
		return "SYNTH_SETUP"
	case ChipStateTx:
		return "TX"
	default:
		return "UNKNOWN"
	}
}

// IrqStatus is the 32 bit interrupt status and mask word. Reading the
// status registers returns and clears it atomically.
type IrqStatus uint32

const (
	IrqRxDataReady       IrqStatus = 1 << 0
	IrqRxDataDisc        IrqStatus = 1 << 1
	IrqTxDataSent        IrqStatus = 1 << 2
	IrqMaxReTxReach      IrqStatus = 1 << 3
	IrqCrcError          IrqStatus = 1 << 4
	IrqTxFifoError       IrqStatus = 1 << 5
	IrqRxFifoError       IrqStatus = 1 << 6
	IrqTxFifoAlmostFull  IrqStatus = 1 << 7
	IrqTxFifoAlmostEmpty IrqStatus = 1 << 8
	IrqRxFifoAlmostFull  IrqStatus = 1 << 9
	IrqRxFifoAlmostEmpty IrqStatus = 1 << 10
	IrqMaxBoCcaReach     IrqStatus = 1 << 11
	IrqValidPreamble     IrqStatus = 1 << 12
	IrqSyncWord          IrqStatus = 1 << 13
	IrqRssiAboveTh       IrqStatus = 1 << 14
	IrqWkupToutLdc       IrqStatus = 1 << 15
	IrqReady             IrqStatus = 1 << 16
	IrqLowBattLvl        IrqStatus = 1 << 18
	IrqPor               IrqStatus = 1 << 19
	IrqBor               IrqStatus = 1 << 20
	IrqLock              IrqStatus = 1 << 21
	IrqRxTimeout         IrqStatus = 1 << 28
	IrqRxSniffTimeout    IrqStatus = 1 << 29
)

// Has reports whether every bit of mask is set.
func (s IrqStatus) Has(mask IrqStatus) bool { return s&mask == mask }

// Any reports whether at least one bit of mask is set.
func (s IrqStatus) Any(mask IrqStatus) bool { return s&mask != 0 }

// Modulation selects the MOD_TYPE field of MOD2.
type Modulation uint8

const (
	Modulation2FSK        Modulation = 0x0
	Modulation4FSK        Modulation = 0x1
	Modulation2GFSKBT1    Modulation = 0x2
	Modulation4GFSKBT1    Modulation = 0x3
	ModulationASKOOK      Modulation = 0x5
	ModulationUnmodulated Modulation = 0x7
	Modulation2GFSKBT05   Modulation = 0xA
	Modulation4GFSKBT05   Modulation = 0xB
)

func (m Modulation) String() string {
	switch m {
	case Modulation2FSK:
		return "2-FSK"
	case Modulation4FSK:
		return "4-FSK"
	case Modulation2GFSKBT1:
		return "2-GFSK BT=1"
	case Modulation4GFSKBT1:
		return "4-GFSK BT=1"
	case ModulationASKOOK:
		return "ASK/OOK"
	case ModulationUnmodulated:
		return "CW"
	case Modulation2GFSKBT05:
		return "2-GFSK BT=0.5"
	case Modulation4GFSKBT05:
		return "4-GFSK BT=0.5"
	default:
		return "UNKNOWN"
	}
}

// GpioNumber identifies one of the four chip GPIO pins. The value doubles
// as the GPIOx_CONF register address.
type GpioNumber uint8

const (
	Gpio0 GpioNumber = 0
	Gpio1 GpioNumber = 1
	Gpio2 GpioNumber = 2
	Gpio3 GpioNumber = 3
)

// GpioMode is the GPIO_MODE field of GPIOx_CONF.
type GpioMode uint8

const (
	GpioModeAnalog          GpioMode = 0x0
	GpioModeInput           GpioMode = 0x1
	GpioModeOutputLowPower  GpioMode = 0x2
	GpioModeOutputHighPower GpioMode = 0x3
)

// GpioSelect is the GPIO_SELECT field of GPIOx_CONF. The full signal list
// is in the datasheet; only the selections the driver itself needs are
// named here.
type GpioSelect uint8

const (
	GpioSelectNirq        GpioSelect = 0
	GpioSelectPorInverted GpioSelect = 1
)

func gpioConfValue(mode GpioMode, sel GpioSelect) uint8 {
	return uint8(sel)<<3 | uint8(mode)&0x03
}
