package env

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config is read from XCPFLASH_* variables. Command line flags take precedence
// over it. Timeouts are in milliseconds.
type Config struct {
	T1 int `env:"XCPFLASH_T1,default=1000"`
	T2 int `env:"XCPFLASH_T2,default=1000"`
	T3 int `env:"XCPFLASH_T3,default=2000"`
	T4 int `env:"XCPFLASH_T4,default=10000"`
	T5 int `env:"XCPFLASH_T5,default=1000"`
	T6 int `env:"XCPFLASH_T6,default=50"`
	T7 int `env:"XCPFLASH_T7,default=2000"`

	ConnectMode int `env:"XCPFLASH_CONNECT_MODE,default=0"`

	SeedKey       string `env:"XCPFLASH_SEEDKEY,default=decrement"`
	SeedKeySecret string `env:"XCPFLASH_SEEDKEY_SECRET"`

	Transport string `env:"XCPFLASH_TRANSPORT,default=xcp_rs232"`

	Device   string `env:"XCPFLASH_DEVICE,default=/dev/ttyUSB0"`
	Baudrate int    `env:"XCPFLASH_BAUDRATE,default=57600"`

	Host string `env:"XCPFLASH_HOST,default=127.0.0.1"`
	Port int    `env:"XCPFLASH_PORT,default=1000"`

	CANInterface  string `env:"XCPFLASH_CAN_INTERFACE,default=can0"`
	CANTransmitID uint32 `env:"XCPFLASH_CAN_TX_ID,default=1639"`
	CANReceiveID  uint32 `env:"XCPFLASH_CAN_RX_ID,default=2017"`
	CANExtended   bool   `env:"XCPFLASH_CAN_EXTENDED"`

	Trace     bool   `env:"XCPFLASH_TRACE"`
	LogLevel  string `env:"XCPFLASH_LOG_LEVEL,default=info"`
	LogFormat string `env:"XCPFLASH_LOG_FORMAT,default=console"`
	DebugHTTP bool   `env:"XCPFLASH_DEBUG_HTTP"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}

	return &config, nil
}
