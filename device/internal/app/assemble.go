package app

import (
	"context"
	"net"
	"time"

	"labmonitor/device/internal/sensor"
	"labmonitor/shared/types"
)

// readings is the part of sensor.Engine the assembler needs.
type readings interface {
	ReadAll(ctx context.Context) ([]sensor.SensorReading, error)
	Slots() []*sensor.Slot
}

// Assembler folds one poll of every slot and the device metadata into a
// flat record.
type Assembler struct {
	engine     readings
	deviceName string
	version    string

	ip  func() string
	now func() time.Time
}

func NewAssembler(engine readings, deviceName, version string) *Assembler {
	return &Assembler{
		engine:     engine,
		deviceName: deviceName,
		version:    version,
		ip:         localIP,
		now:        time.Now,
	}
}

// Record polls every slot. The record is complete even when err is
// non-nil: faulty slots carry their die-temperature estimate.
func (a *Assembler) Record(ctx context.Context) (types.Record, error) {
	rs, err := a.engine.ReadAll(ctx)
	slots := a.engine.Slots()

	rec := types.Record{
		DeviceName: a.deviceName,
		IP:         a.ip(),
		Version:    a.version,
		LibVersion: sensor.DriverVersion,
		UTC:        a.now().UnixNano(),
		Slots:      make([]types.SlotFields, 0, len(rs)),
	}
	for i, r := range rs {
		name := "none"
		if i < len(slots) && slots[i].Config.String() != "" {
			name = slots[i].Config.String()
		}
		if r.DriverVersion != "" {
			rec.LibVersion = r.DriverVersion
		}
		rec.Slots = append(rec.Slots, slotFields(name, r))
	}
	return rec, err
}

func slotFields(name string, r sensor.SensorReading) types.SlotFields {
	return types.SlotFields{
		Name: name,
		Type: string(r.Source),
		Temp: r.Temperature.String(),
		RH:   r.Humidity.String(),
		P:    r.Pressure.String(),
		Gas:  r.GasResistance.String(),
		IAQ:  r.AirQualityIndex.String(),
		TVOC: r.TVOC.String(),
		ECO2: r.ECO2.String(),
		HI:   r.HeatIndex.String(),
	}
}

// localIP returns the first global unicast IPv4 address, or 0.0.0.0.
func localIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "0.0.0.0"
	}
	for _, a := range addrs {
		ipn, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		if ip4 := ipn.IP.To4(); ip4 != nil && ip4.IsGlobalUnicast() {
			return ip4.String()
		}
	}
	return "0.0.0.0"
}
