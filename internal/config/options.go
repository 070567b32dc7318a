package config

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/alecthomas/kong"
)

// Options is the command-line model. Numeric effect options are kept as strings so
// an invalid value is reported and skipped instead of failing the whole parse.
type Options struct {
	Path   string `short:"p" placeholder:"FILE|URL" help:"Media file or http(s) URL to play"`
	Source string `arg:"" optional:"" name:"source" placeholder:"FILE|URL" help:"Media file or URL, when --path is not given"`

	Audio bool `short:"a" xor:"mode" group:"Media" help:"Play the audio stream only"`
	Video bool `short:"v" xor:"mode" group:"Media" help:"Play audio and video"`

	Volume  string `type:"number" placeholder:"0..1" group:"Audio" help:"Volume level"`
	Balance string `type:"number" placeholder:"-1..1" group:"Audio" help:"Stereo balance, left to right"`

	LowPass  bool   `name:"lowpass" xor:"pass" group:"Audio" help:"Chebyshev low-pass filter"`
	HighPass bool   `name:"highpass" xor:"pass" group:"Audio" help:"Chebyshev high-pass filter"`
	Cutoff   string `type:"number" placeholder:"0..100000" group:"Audio" help:"Pass filter cutoff frequency in Hz"`

	HumNotch bool   `name:"humnotch" group:"Audio" help:"Remove mains hum"`
	Mains    string `type:"number" placeholder:"50|60" group:"Audio" help:"Mains frequency in Hz (default: detected from the timezone)"`

	Delay     string `type:"number" placeholder:"NS" group:"Echo" help:"Echo delay in nanoseconds"`
	Feedback  string `type:"number" placeholder:"0..1" group:"Echo" help:"Echo feedback"`
	Intensity string `type:"number" placeholder:"0..1" group:"Echo" help:"Echo intensity"`

	Speed          string `type:"number" placeholder:"RATE" group:"Audio" help:"Playback speed, applied once playback starts"`
	Pitch          string `type:"number" placeholder:"0.1..10" group:"Audio" help:"Pitch shift factor"`
	NoiseThreshold string `type:"number" name:"noisethreshold" placeholder:"0..1" group:"Audio" help:"Noise reduction voice activity threshold"`

	Grayscale   string `type:"number" placeholder:"0..2" group:"Video" help:"Colour saturation, 0 is grayscale"`
	ColorInvert bool   `name:"colorinvert" group:"Video" help:"Colour inversion preset"`

	Config   kong.ConfigFlag `placeholder:"FILE" help:"Load option values from a YAML preset"`
	Logs     bool            `help:"Write a session report after playback"`
	LogLevel string          `default:"warn" enum:"trace,debug,info,warn,error" help:"Diagnostic log level (${enum})"`
	Version  bool            `help:"Show version information"`
}

// Location returns the source: --path wins over the positional argument.
func (o *Options) Location() string {
	if o.Path != "" {
		return o.Path
	}
	return o.Source
}

// NewParser returns the kong parser for opts with YAML preset support.
func NewParser(opts *Options, extra ...kong.Option) (*kong.Kong, error) {
	base := []kong.Option{
		kong.Name("fxplay"),
		kong.Description("Media player with audio and video effects"),
		kong.Configuration(YAMLLoader),
		kong.NamedMapper("number", numberMapper{}),
	}
	return kong.New(opts, append(base, extra...)...)
}

// numberMapper decodes a numeric option as text. A separate value token that
// starts with a hyphen is taken when it reads as a number, so "--balance -0.5"
// works; anything else hyphenated is still a flag and leaves the option without
// a value.
type numberMapper struct{}

func (numberMapper) Decode(ctx *kong.DecodeContext, target reflect.Value) error {
	t := ctx.Scan.Peek()
	if s, ok := t.Value.(string); ok && t.Type == kong.UntypedToken && negativeNumber(s) {
		ctx.Scan.Pop()
		target.SetString(s)
		return nil
	}
	return ctx.Scan.PopValueInto("number", target.Addr().Interface())
}

func negativeNumber(s string) bool {
	if !strings.HasPrefix(s, "-") || strings.HasPrefix(s, "--") {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// Parse parses args into the parser's options. Any parse failure is returned as
// an *ArgumentError.
func Parse(parser *kong.Kong, args []string) (*kong.Context, error) {
	ctx, err := parser.Parse(args)
	if err != nil {
		return ctx, &ArgumentError{Err: err}
	}
	return ctx, nil
}
