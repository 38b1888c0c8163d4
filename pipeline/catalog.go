package pipeline

import (
	"fmt"
	"net"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// The catalog is the closed set of node kinds the engine understands. Each
// kind's required settings are described by a struct below; CheckSettings
// decodes a raw settings map into it and runs the field rules. Extra keys are
// tolerated since the engine ignores what it does not know.

type tunDeviceSettings struct {
	DeviceName string `mapstructure:"device-name" validate:"required"`
	DeviceIP   string `mapstructure:"device-ip" validate:"required,hostcidr4"`
}

type ipOverriderSettings struct {
	Direction string `mapstructure:"direction" validate:"required,oneof=up down"`
	Mode      string `mapstructure:"mode" validate:"required,oneof=source-ip dest-ip"`
	IPv4      string `mapstructure:"ipv4" validate:"required,ipv4"`
}

type ipManipulatorSettings struct {
	ProtoSwap int `mapstructure:"protoswap" validate:"min=1,max=255"`
}

type rawSocketSettings struct {
	CaptureFilterMode string `mapstructure:"capture-filter-mode" validate:"required,eq=source-ip"`
	CaptureIP         string `mapstructure:"capture-ip" validate:"required,ipv4"`
}

type tcpListenerSettings struct {
	Address string `mapstructure:"address" validate:"required,ipv4"`
	Port    int    `mapstructure:"port" validate:"min=1,max=65535"`
	Nodelay *bool  `mapstructure:"nodelay" validate:"required"`
}

type tcpConnectorSettings struct {
	Address string `mapstructure:"address" validate:"required,ipv4"`
	Port    int    `mapstructure:"port" validate:"min=1,max=65535"`
	Nodelay *bool  `mapstructure:"nodelay" validate:"required"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	// Report wire keys (device-ip), not Go field names (DeviceIP).
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		tag := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return fld.Name
		}
		return tag
	})
	// The builtin cidrv4 rule wants host bits zeroed, but device-ip is an
	// interface address with its prefix length, e.g. 10.10.0.1/24.
	validate.RegisterValidation("hostcidr4", func(fl validator.FieldLevel) bool {
		ip, _, err := net.ParseCIDR(fl.Field().String())
		return err == nil && ip.To4() != nil
	})
}

// CheckSettings verifies that settings carries the required keys with
// correctly typed values for the given kind. It holds no graph-level state.
func CheckSettings(kind Kind, settings map[string]any) error {
	schema, err := schemaFor(kind)
	if err != nil {
		return err
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: schema})
	if err != nil {
		return err
	}
	if err := dec.Decode(settings); err != nil {
		return fmt.Errorf("%s settings: %v", kind, err)
	}
	if err := validate.Struct(schema); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			return fmt.Errorf("%s settings: %s", kind, describeFieldErrors(fieldErrs))
		}
		return err
	}
	return nil
}

func schemaFor(kind Kind) (any, error) {
	switch kind {
	case KindTunDevice:
		return &tunDeviceSettings{}, nil
	case KindIpOverrider:
		return &ipOverriderSettings{}, nil
	case KindIpManipulator:
		return &ipManipulatorSettings{}, nil
	case KindRawSocket:
		return &rawSocketSettings{}, nil
	case KindTcpListener:
		return &tcpListenerSettings{}, nil
	case KindTcpConnector:
		return &tcpConnectorSettings{}, nil
	default:
		return nil, fmt.Errorf("unknown node kind %q", string(kind))
	}
}

func describeFieldErrors(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		case "oneof":
			parts = append(parts, fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param()))
		case "eq":
			parts = append(parts, fmt.Sprintf("%s must be %q", fe.Field(), fe.Param()))
		case "ipv4":
			parts = append(parts, fmt.Sprintf("%s must be an IPv4 address", fe.Field()))
		case "hostcidr4":
			parts = append(parts, fmt.Sprintf("%s must be an IPv4 CIDR", fe.Field()))
		case "min":
			parts = append(parts, fmt.Sprintf("%s must be %s or greater", fe.Field(), fe.Param()))
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be %s or less", fe.Field(), fe.Param()))
		default:
			parts = append(parts, fmt.Sprintf("%s fails %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, ", ")
}
