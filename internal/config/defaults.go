package config

import (
	"math"

	"github.com/spf13/viper"
)

const (
	DefaultBufferSize    = 1024
	DefaultReservedBytes = 2
	DefaultMaxAllocation = math.MaxInt32
)

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()

	v.SetDefault("buffer_size", d.BufferSize)
	v.SetDefault("reserved_bytes", d.ReservedBytes)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("utf8_suffix", d.UTF8Suffix)
	v.SetDefault("unicode_suffix", d.UnicodeSuffix)
	v.SetDefault("roundtrip_suffix", d.RoundTripSuffix)
	v.SetDefault("hex_dump", d.HexDump)
	v.SetDefault("write_round_trip", d.WriteRoundTrip)
	v.SetDefault("fail_on_unknown", d.FailOnUnknown)
	v.SetDefault("expect_encoding", d.ExpectEncoding)
	v.SetDefault("max_allocation", d.MaxAllocation)
	v.SetDefault("debug", d.Debug)
}
