package domain

type Kind string

const (
	KindSetup              Kind = "setup"
	KindStart              Kind = "start"
	KindAnalogSensorRead   Kind = "analog_sensor_read"
	KindAnalogRead         Kind = "analog_read"
	KindDigitalRead        Kind = "digital_read"
	KindDigitalInputRead   Kind = "digital_input_read"
	KindSetInputMode       Kind = "set_input_mode"
	KindSetOutputMode      Kind = "set_output_mode"
	KindDigitalWriteHigh   Kind = "digital_write_high"
	KindDigitalWriteLow    Kind = "digital_write_low"
	KindDigitalOutputWrite Kind = "digital_output_write"
	KindPWMWrite           Kind = "pwm_write"
	KindTemperatureRead    Kind = "temperature_read"
	KindHumidityRead       Kind = "humidity_read"
	KindDistanceRead       Kind = "distance_read"
	KindDisplayColor       Kind = "display_color"
	KindDisplayText        Kind = "display_text"
	KindInfraredRead       Kind = "infrared_read"
	KindCameraCapture      Kind = "camera_capture"
	KindUnrecognized       Kind = "unrecognized"
)

type PinMode string

const (
	PinModeInput  PinMode = "INPUT"
	PinModeOutput PinMode = "OUTPUT"
)

// Command is the classified form of one inbound message. Only the fields
// relevant to Kind are set.
type Command struct {
	Kind      Kind
	Pin       int
	Token     string
	On        bool
	Intensity int
	Color     [3]uint8
	Text      string
}

// Value update keys reported back to the remote runtime.
const (
	KeyAnalogRead  = "analogRead"
	KeyDigitalRead = "digitalRead"
	KeyTemperature = "temp"
	KeyHumidity    = "humidity"
	KeyDistance    = "distance"
	KeyInfrared    = "read_ir"
	KeyCamera      = "camera"
)

// EventReady is broadcast after every successful (re)connect.
const EventReady = "READY"

const (
	CameraTaken = "Picture Taken"
	CameraError = "Error"
)
