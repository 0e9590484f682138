package main

import (
	"context"
	"log"
	"time"

	"github.com/mbalug7/go-s2lp/pkg/hal"
	"github.com/mbalug7/go-s2lp/pkg/rpi"
	"github.com/mbalug7/go-s2lp/pkg/s2lp"
)

// Quick wiring check: bring the radio up, print its identity and listen for
// a single packet. The examples directory holds the full demos.
func main() {
	// SDN -> GPIO 23
	// GPIO0 (interrupt) -> GPIO 24
	// CS -> CE0, SPI0 on /dev/spidev0.0
	hw, err := rpi.Open(rpi.Config{
		SdnPin:  23,
		IrqPin:  24,
		SpiPort: "/dev/spidev0.0",
	})
	if err != nil {
		log.Fatal(err)
	}
	defer hw.Close()

	radio := s2lp.New(hw.Bus(), hw.Sdn(), hw.Irq(), s2lp.Gpio0, hal.StdDelay{})
	if err := radio.Init(context.Background(), s2lp.DefaultRadioConfig()); err != nil {
		log.Fatal(err)
	}
	defer radio.Shutdown()

	part, version, err := radio.DeviceInfo()
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("found S2-LP, part number 0x%02X, version 0x%02X", part, version)

	err = radio.SetFormat(s2lp.Basic{
		PreambleLength:       128,
		PreamblePattern:      s2lp.PreamblePattern0,
		SyncLength:           32,
		SyncPattern:          0x12345678,
		IncludeAddress:       true,
		PacketLengthEncoding: s2lp.LengthWidth1Byte,
		CrcMode:              s2lp.CrcPoly0x1021,
		PacketFilter:         s2lp.DefaultPacketFilter(),
	})
	if err != nil {
		log.Fatal(err)
	}

	buf := make([]byte, 128)
	rx, err := radio.StartReceive(buf, s2lp.RxMode{
		Timeout: &s2lp.RxTimeout{Timeout: 5 * time.Second},
	})
	if err != nil {
		log.Fatal(err)
	}
	result, err := rx.Wait(context.Background())
	if err != nil {
		rx.Abort()
		log.Fatal(err)
	}
	if err := rx.Finish(); err != nil {
		log.Fatal(err)
	}

	if result.Status == s2lp.RxOk {
		log.Printf("received %d bytes at %d dBm: %q", result.PacketSize, result.RSSI, buf[:result.PacketSize])
	} else {
		log.Printf("nothing received: %s", result.Status)
	}
}
