package hub

// LWP3 wire details for the Technic Move hub. All commands go over a single
// GATT characteristic as WriteCommand port output messages.
const (
	legoServiceUUID        = "00001623-1212-efde-1623-785feabcd123"
	legoCharacteristicUUID = "00001624-1212-efde-1623-785feabcd123"
)

// Light codes carried in the drive frame's lights byte.
const (
	lightsOn       = 0x00
	lightsOff      = 0x04
	lightsBrakeOn  = 0x01
	lightsBrakeOff = 0x05
)

// lightCode selects the lights byte for the current brake/headlight state.
func lightCode(braking, headlightsOn bool) byte {
	switch {
	case braking && headlightsOn:
		return lightsBrakeOn
	case braking:
		return lightsBrakeOff
	case headlightsOn:
		return lightsOn
	default:
		return lightsOff
	}
}

// driveFrame encodes one combined speed/steering/lights command. speed and
// angle are signed percents in [-100, 100].
func driveFrame(speed, angle int, lights byte) []byte {
	return []byte{
		0x0d, 0x00, 0x81, 0x36, 0x11, 0x51, 0x00, 0x03, 0x00,
		byte(speed), byte(angle), lights, 0x00,
	}
}

// calibrationFrames is the steering calibration sequence sent once after
// connecting, with a short pause between the two writes.
var calibrationFrames = [][]byte{
	{0x0d, 0x00, 0x81, 0x36, 0x11, 0x51, 0x00, 0x03, 0x00, 0x00, 0x00, 0x10, 0x00},
	{0x0d, 0x00, 0x81, 0x36, 0x11, 0x51, 0x00, 0x03, 0x00, 0x00, 0x00, 0x08, 0x00},
}
